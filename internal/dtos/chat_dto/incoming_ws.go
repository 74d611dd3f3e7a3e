package chat_dto

import (
	"time"

	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

// Payloads received over the socket, server -> client.

type MessageReceivedEvent struct {
	Message entity.Message `json:"message"`
}

type TypingUpdateEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ReactionUpdatedEvent struct {
	MessageID string            `json:"messageId"`
	Reactions []entity.Reaction `json:"reactions"`
}

type PollUpdatedEvent struct {
	MessageID string       `json:"messageId"`
	Poll      *entity.Poll `json:"poll"`
}

type MessageEditedEvent struct {
	MessageID string     `json:"messageId"`
	Content   string     `json:"content"`
	IsEdited  bool       `json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// DeletedFor is "everyone" for a broadcast tombstone; anything else is a
// local-view removal for the requesting user only.
type MessageDeletedEvent struct {
	MessageID  string `json:"messageId"`
	DeletedFor string `json:"deletedFor"`
}

type MessagesReadEvent struct {
	MessageIDs []string `json:"messageIds"`
}

type UserOnlineEvent struct {
	UserID string `json:"userId"`
}

type UserOfflineEvent struct {
	UserID   string     `json:"userId"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
