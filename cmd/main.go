package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Developer-AbhinavAF/msg/config"
	"github.com/Developer-AbhinavAF/msg/internal/chat"
	"github.com/Developer-AbhinavAF/msg/internal/entity"
	"github.com/Developer-AbhinavAF/msg/internal/history"
	"github.com/Developer-AbhinavAF/msg/internal/notify"
	"github.com/Developer-AbhinavAF/msg/internal/presence"
	"github.com/Developer-AbhinavAF/msg/internal/store"
	"github.com/Developer-AbhinavAF/msg/internal/transport"
	"github.com/Developer-AbhinavAF/msg/state"
)

var (
	flagUsername string
	flagPassword string
	flagRoom     string
)

// eventForwarder breaks the construction cycle between the transport (needs
// a handler) and the session (needs the transport as emitter). The target is
// set before Connect, so no event ever races the nil check.
type eventForwarder struct {
	target transport.EventHandler
}

func (f *eventForwarder) HandleEvent(event string, data json.RawMessage) {
	if f.target != nil {
		f.target.HandleEvent(event, data)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "msg",
		Short: "Two-party private chat client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&flagUsername, "username", "u", "", "login username")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "login password")
	rootCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room id (overrides config)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("msg exited")
	}
}

func run(ctx context.Context) error {
	if err := config.LoadConfig(); err != nil {
		return err
	}

	appState := state.InitAppState(ctx)
	defer appState.Close()

	sess, err := resolveSession()
	if err != nil {
		return err
	}
	appState.Session = sess

	roomID := flagRoom
	if roomID == "" {
		roomID = config.Conf.Room.ID
	}
	if roomID == "" {
		return fmt.Errorf("no room id configured, set MSG_ROOM_ID or pass --room")
	}

	msgStore := store.NewStore(config.Conf.Chat.PageSize)
	tracker := presence.NewTracker(time.Duration(config.Conf.Chat.TypingDecaySec) * time.Second)
	fetcher := history.NewFetcher(config.Conf.Server.APIURL, sess.Token)

	fwd := &eventForwarder{}
	tr := transport.New(transport.Options{
		URL:               config.Conf.Server.SocketURL,
		RoomID:            roomID,
		UserID:            sess.User.UserID,
		ReconnectInitial:  time.Duration(config.Conf.Reconnect.InitialDelayMs) * time.Millisecond,
		ReconnectMax:      time.Duration(config.Conf.Reconnect.MaxDelayMs) * time.Millisecond,
		ReconnectAttempts: config.Conf.Reconnect.MaxAttempts,
	}, fwd)
	tr.OnStateChange(func(s transport.State) {
		log.Info().Str("state", s.String()).Msg("connection state changed")
	})

	lines := readLines(os.Stdin)

	var chatSession *chat.Session
	chatSession = chat.NewSession(chat.Config{
		RoomID:       roomID,
		UserID:       sess.User.UserID,
		SenderName:   sess.User.SenderName,
		Store:        msgStore,
		Presence:     tracker,
		Emitter:      tr,
		Conn:         tr,
		History:      fetcher.PageFunc(roomID),
		Notifier:     notify.LogNotifier{},
		TypingIdle:   time.Duration(config.Conf.Chat.TypingIdleSec) * time.Second,
		ReadSettle:   time.Duration(config.Conf.Chat.ReadSettleMs) * time.Millisecond,
		InitialLimit: config.Conf.Chat.InitialLimit,
		Confirm:      confirmFromLines(lines),
		OnMessage: func(m entity.Message) {
			renderMessage(sess.User.UserID, m)
			// Rendering is the terminal's "visible in viewport".
			chatSession.MarkRead(m.MessageID)
		},
	})
	fwd.target = chatSession
	defer chatSession.Close()

	if err := tr.Connect(ctx); err != nil {
		return err
	}

	chatSession.Start(ctx)
	for _, m := range msgStore.Messages() {
		renderMessage(sess.User.UserID, m)
		chatSession.MarkRead(m.MessageID)
	}

	return repl(ctx, lines, chatSession, sess.User.UserID)
}

func resolveSession() (*state.SessionState, error) {
	sess, err := state.LoadSession()
	if err != nil {
		log.Warn().Err(err).Msg("could not read stored session")
	}
	if sess != nil && !sess.TokenExpired() {
		return sess, nil
	}
	if flagUsername == "" || flagPassword == "" {
		return nil, fmt.Errorf("no valid session, login with --username and --password")
	}
	return state.Login(config.Conf.Server.APIURL, flagUsername, flagPassword)
}

// readLines pumps the input line by line into a channel, closed on EOF.
// Exactly one goroutine ever touches the reader; every consumer of user
// input (the intent loop, the confirm gate) receives from this channel.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}
	}()
	return lines
}

// confirmFromLines builds the destructive-action gate on top of the shared
// line stream: the next line the user types is the answer. Reading stdin
// directly here would race the intent loop for the same reader and the
// answer would land as a chat message instead.
func confirmFromLines(lines <-chan string) func(string) bool {
	return func(prompt string) bool {
		fmt.Printf("%s [y/N] ", prompt)
		line, ok := <-lines
		if !ok {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func repl(ctx context.Context, lines <-chan string, sess *chat.Session, selfID string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := command(ctx, sess, selfID, line); quit {
					return nil
				}
				continue
			}
			sess.InputActivity()
			if err := sess.SendText(line); err != nil {
				log.Error().Err(err).Msg("send failed")
			}
		}
	}
}

func command(ctx context.Context, sess *chat.Session, selfID, line string) (quit bool) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit":
		return true

	case "/history":
		before := sess.Store().Len()
		if !sess.LoadOlder(ctx) {
			fmt.Println("no more history")
			return
		}
		msgs := sess.Store().Messages()
		for _, m := range msgs[:sess.Store().Len()-before] {
			renderMessage(selfID, m)
		}

	case "/who":
		snap := sess.Presence().Snapshot()
		// The counterpart is listed even before any presence event lands.
		if other := config.Conf.Counterpart(selfID); other != "" {
			if _, ok := snap[other]; !ok {
				snap[other] = presence.Status{}
			}
		}
		for userID, status := range snap {
			name := config.Conf.MemberName(userID)
			line := name
			switch {
			case status.Typing:
				line += " (typing...)"
			case status.Online:
				line += " (online)"
			case status.LastSeen != nil:
				line += " (last seen " + status.LastSeen.Format(time.Kitchen) + ")"
			default:
				line += " (offline)"
			}
			fmt.Println(line)
		}

	case "/reply":
		if len(args) < 1 {
			fmt.Println("usage: /reply <message-id>")
			return
		}
		if err := sess.ReplyTo(args[0]); err != nil {
			log.Error().Err(err).Msg("reply failed")
		}

	case "/react":
		if len(args) < 2 {
			fmt.Println("usage: /react <message-id> <emoji>")
			return
		}
		if err := sess.React(args[0], args[1]); err != nil {
			log.Error().Err(err).Msg("react failed")
		}

	case "/edit":
		if len(args) < 2 {
			fmt.Println("usage: /edit <message-id> <new text>")
			return
		}
		if err := sess.Edit(args[0], strings.Join(args[1:], " ")); err != nil {
			log.Error().Err(err).Msg("edit failed")
		}

	case "/del":
		if len(args) < 1 {
			fmt.Println("usage: /del <message-id> [all]")
			return
		}
		forEveryone := len(args) > 1 && args[1] == "all"
		if err := sess.Delete(args[0], forEveryone); err != nil {
			log.Error().Err(err).Msg("delete failed")
		}

	case "/poll":
		// /poll Question? | option one | option two
		parts := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "/poll")), "|")
		if len(parts) < 3 {
			fmt.Println("usage: /poll <question> | <option> | <option> [| ...]")
			return
		}
		question := strings.TrimSpace(parts[0])
		options := make([]string, 0, len(parts)-1)
		for _, opt := range parts[1:] {
			options = append(options, strings.TrimSpace(opt))
		}
		if err := sess.CreatePoll(question, options); err != nil {
			log.Error().Err(err).Msg("poll failed")
		}

	case "/file":
		if len(args) < 1 {
			fmt.Println("usage: /file <path>")
			return
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Error().Err(err).Msg("read file failed")
			return
		}
		name := filepath.Base(args[0])
		mimeType := mime.TypeByExtension(filepath.Ext(name))
		encoded := base64.StdEncoding.EncodeToString(data)
		if err := sess.SendAttachment(name, encoded, mimeType, int64(len(data))); err != nil {
			log.Error().Err(err).Msg("attachment failed")
		}

	case "/voice":
		if len(args) < 2 {
			fmt.Println("usage: /voice <path> <seconds>")
			return
		}
		secs, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("duration must be a number of seconds")
			return
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Error().Err(err).Msg("read file failed")
			return
		}
		if err := sess.SendVoice(base64.StdEncoding.EncodeToString(data), secs); err != nil {
			log.Error().Err(err).Msg("voice failed")
		}

	case "/vote":
		if len(args) < 2 {
			fmt.Println("usage: /vote <message-id> <option-index>")
			return
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println("option index must be a number")
			return
		}
		if err := sess.Vote(args[0], idx); err != nil {
			log.Error().Err(err).Msg("vote failed")
		}

	default:
		fmt.Println("commands: /history /reply /react /edit /del /poll /vote /file /voice /who /quit")
	}
	return false
}

func renderMessage(selfID string, m entity.Message) {
	ts := m.Timestamp.Format("15:04")
	name := m.SenderName
	if m.SenderID == selfID {
		name = "you"
	}

	var body string
	switch {
	case m.IsDeletedForEveryone:
		body = entity.DeletedPlaceholder
	case m.EffectiveType() == entity.TypePoll:
		poll, err := m.PollData()
		if err != nil {
			body = m.Content
			break
		}
		var b strings.Builder
		b.WriteString("[poll] " + poll.Question)
		for i, opt := range poll.Options {
			fmt.Fprintf(&b, "\n  %d. %s (%d)", i, opt.Text, len(opt.Votes))
		}
		body = b.String()
	case m.EffectiveType() == entity.TypeVoice:
		body = fmt.Sprintf("[voice %ds]", m.Duration)
	case m.EffectiveType() == entity.TypeImage:
		body = "[image]"
	case m.EffectiveType() == entity.TypeFile:
		body = "[file] " + m.Content
	default:
		body = m.Content
	}

	prefix := ""
	if m.ReplyTo != nil {
		prefix = fmt.Sprintf("(reply to %s: %q) ", m.ReplyTo.SenderName, m.ReplyTo.Content)
	}
	suffix := ""
	if m.IsEdited {
		suffix = " (edited)"
	}
	if len(m.Reactions) > 0 {
		emojis := make([]string, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			emojis = append(emojis, r.Emoji)
		}
		suffix += " [" + strings.Join(emojis, " ") + "]"
	}

	fmt.Printf("%s <%s> %s%s%s  (%s)\n", ts, name, prefix, body, suffix, m.MessageID)
}
