package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"
	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

var (
	ErrUnknownMessage = errors.New("chat: unknown message id")
	ErrMessageDeleted = errors.New("chat: message was deleted")
)

// SendText emits a text message, carrying the pending reply snapshot if one
// is set. Sending always stops the typing indicator.
func (s *Session) SendText(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	reply := s.reply
	s.reply = nil
	s.mu.Unlock()

	err := s.emit.SendMessage(chat_dto.SendMessageRequest{
		Content:    content,
		Type:       string(entity.TypeText),
		ReplyTo:    reply,
		SenderName: s.cfg.SenderName,
	})
	s.stopTyping(true)
	return err
}

// ReplyTo captures a denormalized snapshot of the quoted message for the
// next SendText. The snapshot survives later edits or deletion.
func (s *Session) ReplyTo(messageID string) error {
	m, ok := s.store.Get(messageID)
	if !ok {
		return ErrUnknownMessage
	}
	senderName := m.SenderName
	if senderName == "" {
		senderName = "Unknown"
	}
	s.mu.Lock()
	s.reply = &entity.ReplyRef{
		MessageID:  m.MessageID,
		Content:    m.Content,
		SenderName: senderName,
		Type:       m.EffectiveType(),
		MediaURL:   m.MediaURL,
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) ClearReply() {
	s.mu.Lock()
	s.reply = nil
	s.mu.Unlock()
}

// InputActivity marks a keystroke: the first one starts the typing
// indicator, and the stop fires automatically once input has been idle for
// the debounce window.
func (s *Session) InputActivity() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	start := !s.typingActive
	s.typingActive = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.cfg.TypingIdle, func() { s.stopTyping(false) })
	s.mu.Unlock()

	if start {
		_ = s.emit.UpdateTyping(chat_dto.TypingUpdateRequest{IsTyping: true})
	}
}

// stopTyping cancels the debounce and emits the stop if one is due. When
// force is set (message sent) the stop is emitted even if the indicator was
// never started, matching the server contract.
func (s *Session) stopTyping(force bool) {
	s.mu.Lock()
	wasActive := s.typingActive
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	if wasActive || force {
		_ = s.emit.UpdateTyping(chat_dto.TypingUpdateRequest{IsTyping: false})
	}
}

func (s *Session) React(messageID, emoji string) error {
	return s.emit.AddReaction(chat_dto.ReactionAddRequest{MessageID: messageID, Emoji: emoji})
}

func (s *Session) CreatePoll(question string, options []string) error {
	return s.emit.CreatePoll(chat_dto.PollCreateRequest{Question: question, Options: options})
}

func (s *Session) Vote(messageID string, optionIndex int) error {
	return s.emit.VotePoll(chat_dto.PollVoteRequest{MessageID: messageID, OptionIndex: optionIndex})
}

func (s *Session) SendVoice(audioBase64 string, durationSec int) error {
	return s.emit.SendVoice(chat_dto.VoiceSendRequest{
		AudioBase64: audioBase64,
		Duration:    durationSec,
		SenderName:  s.cfg.SenderName,
	})
}

func (s *Session) SendAttachment(filename, fileBase64, fileType string, fileSize int64) error {
	return s.emit.SendAttachment(chat_dto.AttachmentSendRequest{
		Filename:   filename,
		FileBase64: fileBase64,
		FileType:   fileType,
		FileSize:   fileSize,
		SenderName: s.cfg.SenderName,
	})
}

// Edit emits an edit only when the trimmed new content actually differs from
// the current one. Editing is unrestricted in time.
func (s *Session) Edit(messageID, newContent string) error {
	m, ok := s.store.Get(messageID)
	if !ok {
		return ErrUnknownMessage
	}
	if m.IsDeletedForEveryone {
		return ErrMessageDeleted
	}
	newContent = strings.TrimSpace(newContent)
	if newContent == "" || newContent == m.Content {
		return nil
	}
	return s.emit.EditMessage(chat_dto.MessageEditRequest{MessageID: messageID, NewContent: newContent})
}

// Delete emits a delete after the explicit confirmation gate passes. A nil
// gate declines: destructive intents never fire implicitly.
func (s *Session) Delete(messageID string, forEveryone bool) error {
	prompt := "Delete from your chat?"
	if forEveryone {
		prompt = "Delete for everyone?"
	}
	if s.cfg.Confirm == nil || !s.cfg.Confirm(prompt) {
		log.Debug().Str("messageId", messageID).Msg("session: delete not confirmed")
		return nil
	}
	return s.emit.DeleteMessage(chat_dto.MessageDeleteRequest{
		MessageID:         messageID,
		DeleteForEveryone: forEveryone,
	})
}

// MarkRead queues a read receipt for a counterpart message that has not
// been acknowledged yet. Receipts settle briefly so rapid scroll batches
// into one emission, at most once per message id, paced by the limiter.
func (s *Session) MarkRead(messageID string) {
	m, ok := s.store.Get(messageID)
	if !ok {
		return
	}
	if m.SenderID == s.cfg.UserID || m.IsReadBy(s.cfg.UserID) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, sent := s.readSent[messageID]; sent {
		return
	}
	if _, pending := s.readPending[messageID]; pending {
		return
	}
	s.readPending[messageID] = struct{}{}
	if s.readFlush == nil {
		s.readFlush = time.AfterFunc(s.cfg.ReadSettle, s.flushReads)
	}
}

func (s *Session) flushReads() {
	s.mu.Lock()
	s.readFlush = nil
	if s.closed || len(s.readPending) == 0 {
		s.mu.Unlock()
		return
	}
	// Paced: when the limiter has no token, wait another settle period
	// rather than spamming receipts during fast scroll.
	if !s.readLimiter.Allow() {
		s.readFlush = time.AfterFunc(s.cfg.ReadSettle, s.flushReads)
		s.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(s.readPending))
	for id := range s.readPending {
		ids = append(ids, id)
		s.readSent[id] = struct{}{}
	}
	s.readPending = make(map[string]struct{})
	s.mu.Unlock()

	_ = s.emit.MarkRead(chat_dto.MessagesReadRequest{MessageIDs: ids})
}
