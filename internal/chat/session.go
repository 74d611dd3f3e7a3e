package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"
	"github.com/Developer-AbhinavAF/msg/internal/entity"
	"github.com/Developer-AbhinavAF/msg/internal/notify"
	"github.com/Developer-AbhinavAF/msg/internal/presence"
	"github.com/Developer-AbhinavAF/msg/internal/store"
)

const (
	defaultTypingIdle   = 3 * time.Second
	defaultReadSettle   = 500 * time.Millisecond
	defaultInitialLimit = 1000
	notifyPreviewLen    = 50
)

// Emitter is the outbound half of the transport, as the session sees it.
type Emitter interface {
	SendMessage(chat_dto.SendMessageRequest) error
	UpdateTyping(chat_dto.TypingUpdateRequest) error
	AddReaction(chat_dto.ReactionAddRequest) error
	MarkRead(chat_dto.MessagesReadRequest) error
	SendVoice(chat_dto.VoiceSendRequest) error
	SendAttachment(chat_dto.AttachmentSendRequest) error
	CreatePoll(chat_dto.PollCreateRequest) error
	VotePoll(chat_dto.PollVoteRequest) error
	EditMessage(chat_dto.MessageEditRequest) error
	DeleteMessage(chat_dto.MessageDeleteRequest) error
}

// Conn is the lifecycle half, released on teardown.
type Conn interface {
	Close()
}

type Config struct {
	RoomID     string
	UserID     string
	SenderName string

	Store    *store.Store
	Presence *presence.Tracker
	Emitter  Emitter
	Conn     Conn
	History  store.FetchPage
	Notifier notify.Notifier

	TypingIdle   time.Duration
	ReadSettle   time.Duration
	InitialLimit int
	ReadRate     *rate.Limiter

	// Confirm gates destructive actions. A nil gate declines everything.
	Confirm func(prompt string) bool
	// OnMessage fires after a live message lands in the store (render hook).
	OnMessage func(entity.Message)
}

// Session wires the store, pager, presence tracker and transport together
// for one login. It is created on room entry and discarded on logout; Close
// cancels every timer the session scheduled and releases the connection.
type Session struct {
	cfg Config

	store    *store.Store
	presence *presence.Tracker
	emit     Emitter
	notifier notify.Notifier

	mu     sync.Mutex
	closed bool

	// typing debounce (outbound)
	typingActive bool
	typingTimer  *time.Timer

	// reply capture
	reply *entity.ReplyRef

	// read receipts: settle batching + pacing
	readPending map[string]struct{}
	readSent    map[string]struct{}
	readFlush   *time.Timer
	readLimiter *rate.Limiter
}

func NewSession(cfg Config) *Session {
	if cfg.TypingIdle <= 0 {
		cfg.TypingIdle = defaultTypingIdle
	}
	if cfg.ReadSettle <= 0 {
		cfg.ReadSettle = defaultReadSettle
	}
	if cfg.InitialLimit <= 0 {
		cfg.InitialLimit = defaultInitialLimit
	}
	if cfg.Store == nil {
		cfg.Store = store.NewStore(store.DefaultPageSize)
	}
	if cfg.Presence == nil {
		cfg.Presence = presence.NewTracker(presence.DefaultTypingDecay)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogNotifier{}
	}
	limiter := cfg.ReadRate
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	}

	return &Session{
		cfg:         cfg,
		store:       cfg.Store,
		presence:    cfg.Presence,
		emit:        cfg.Emitter,
		notifier:    cfg.Notifier,
		readPending: make(map[string]struct{}),
		readSent:    make(map[string]struct{}),
		readLimiter: limiter,
	}
}

func (s *Session) Store() *store.Store         { return s.store }
func (s *Session) Presence() *presence.Tracker { return s.presence }

// Start performs the one-shot initial history load: the full backlog in a
// single request, appended in order. Distinct from the paginated loader.
func (s *Session) Start(ctx context.Context) {
	if s.cfg.History == nil {
		return
	}
	backlog, err := s.cfg.History(ctx, 0, s.cfg.InitialLimit)
	if err != nil {
		log.Error().Err(err).Str("roomId", s.cfg.RoomID).Msg("session: initial history load failed")
		return
	}
	for _, msg := range backlog {
		s.store.Append(msg)
	}
	log.Info().Str("roomId", s.cfg.RoomID).Int("count", len(backlog)).Msg("session: backlog loaded")
}

// LoadOlder requests one more page of history. Debounced by the pager's own
// loading state; callers may invoke it on every boundary hit.
func (s *Session) LoadOlder(ctx context.Context) bool {
	if s.cfg.History == nil {
		return false
	}
	return s.store.LoadMore(ctx, s.cfg.History)
}

// Close tears the session down: every pending timer is canceled, the store
// is cleared (any in-flight page resolves into the void), presence decay
// stops, and the connection is released.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if s.readFlush != nil {
		s.readFlush.Stop()
		s.readFlush = nil
	}
	s.mu.Unlock()

	s.presence.Close()
	s.store.Clear()
	if s.cfg.Conn != nil {
		s.cfg.Conn.Close()
	}
	log.Info().Str("roomId", s.cfg.RoomID).Msg("session: closed")
}
