package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"
	"github.com/Developer-AbhinavAF/msg/internal/entity"
	"github.com/Developer-AbhinavAF/msg/internal/store"
	"github.com/Developer-AbhinavAF/msg/internal/transport"
)

// HandleEvent maps an inbound transport event onto store and presence
// operations. Called on the read goroutine in delivery order; each case
// completes its mutation before returning.
func (s *Session) HandleEvent(event string, data json.RawMessage) {
	switch event {
	case transport.EventMessageReceived:
		s.onMessageReceived(data)
	case transport.EventTypingUpdate:
		s.onTypingUpdate(data)
	case transport.EventReactionUpdated:
		s.onReactionUpdated(data)
	case transport.EventPollUpdated:
		s.onPollUpdated(data)
	case transport.EventMessageEdited:
		s.onMessageEdited(data)
	case transport.EventMessageDeleted:
		s.onMessageDeleted(data)
	case transport.EventMessageRead:
		s.onMessagesRead(data)
	case transport.EventUserOnline:
		s.onUserOnline(data)
	case transport.EventUserOffline:
		s.onUserOffline(data)
	default:
		log.Debug().Str("event", event).Msg("session: unknown event ignored")
	}
}

func (s *Session) onMessageReceived(data json.RawMessage) {
	var evt chat_dto.MessageReceivedEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.Message.MessageID == "" {
		// Unparseable payload degrades to an opaque text body instead of
		// failing the handler.
		log.Warn().Msg("session: malformed message payload, storing as text")
		evt.Message = entity.Message{
			MessageID: uuid.NewString(),
			Type:      entity.TypeText,
			Content:   string(data),
			Timestamp: time.Now(),
		}
	}

	if !s.store.Append(evt.Message) {
		return
	}
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(evt.Message)
	}
	if evt.Message.SenderID != "" && evt.Message.SenderID != s.cfg.UserID {
		name := evt.Message.SenderName
		if name == "" {
			name = "User"
		}
		s.notifier.Notify(name, evt.Message.Preview(notifyPreviewLen))
	}
}

func (s *Session) onTypingUpdate(data json.RawMessage) {
	var evt chat_dto.TypingUpdateEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.UserID == "" {
		return
	}
	s.presence.SetTyping(evt.UserID, evt.IsTyping)
}

func (s *Session) onReactionUpdated(data json.RawMessage) {
	var evt chat_dto.ReactionUpdatedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	s.store.Patch(evt.MessageID, store.Patch{Reactions: evt.Reactions})
}

func (s *Session) onPollUpdated(data json.RawMessage) {
	var evt chat_dto.PollUpdatedEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.Poll == nil {
		return
	}
	s.store.Patch(evt.MessageID, store.Patch{Poll: evt.Poll})
}

func (s *Session) onMessageEdited(data json.RawMessage) {
	var evt chat_dto.MessageEditedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	edited := evt.IsEdited
	s.store.Patch(evt.MessageID, store.Patch{
		Content:  &evt.Content,
		IsEdited: &edited,
		EditedAt: evt.EditedAt,
	})
}

func (s *Session) onMessageDeleted(data json.RawMessage) {
	var evt chat_dto.MessageDeletedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	if evt.DeletedFor == "everyone" {
		s.store.Patch(evt.MessageID, store.Patch{Tombstone: true})
		return
	}
	s.store.Remove(evt.MessageID)
}

func (s *Session) onMessagesRead(data json.RawMessage) {
	var evt chat_dto.MessagesReadEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	read := entity.StatusRead
	for _, id := range evt.MessageIDs {
		s.store.Patch(id, store.Patch{Status: &read})
	}
}

func (s *Session) onUserOnline(data json.RawMessage) {
	var evt chat_dto.UserOnlineEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.UserID == "" {
		return
	}
	s.presence.SetOnline(evt.UserID)
}

func (s *Session) onUserOffline(data json.RawMessage) {
	var evt chat_dto.UserOfflineEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.UserID == "" {
		return
	}
	s.presence.SetOffline(evt.UserID, evt.LastSeen)
}
