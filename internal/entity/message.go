package entity

import "time"

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeVoice MessageType = "voice"
	TypeFile  MessageType = "file"
	TypePoll  MessageType = "poll"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// DeletedPlaceholder replaces the content of a message deleted for everyone.
// The row itself stays in the sequence.
const DeletedPlaceholder = "[This message was deleted]"

// Rank orders statuses so that a patch can never regress one.
// Unknown statuses rank lowest.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// ReplyRef is a denormalized snapshot of the quoted message, captured at
// reply time. It survives later edits or deletion of the original.
type ReplyRef struct {
	MessageID  string      `json:"messageId"`
	Content    string      `json:"content"`
	SenderName string      `json:"senderName"`
	Type       MessageType `json:"type,omitempty"`
	MediaURL   string      `json:"mediaUrl,omitempty"`
}

type Message struct {
	MessageID            string        `json:"messageId"`
	SenderID             string        `json:"senderId"`
	SenderName           string        `json:"senderName,omitempty"`
	Type                 MessageType   `json:"type"`
	Content              string        `json:"content"`
	Timestamp            time.Time     `json:"timestamp"`
	Status               MessageStatus `json:"status,omitempty"`
	IsEdited             bool          `json:"isEdited,omitempty"`
	EditedAt             *time.Time    `json:"editedAt,omitempty"`
	IsDeletedForEveryone bool          `json:"isDeletedForEveryone,omitempty"`
	Reactions            []Reaction    `json:"reactions,omitempty"`
	ReplyTo              *ReplyRef     `json:"replyTo,omitempty"`
	ReadBy               []string      `json:"readBy,omitempty"`
	Duration             int           `json:"duration,omitempty"`
	MediaURL             string        `json:"mediaUrl,omitempty"`
	Poll                 *Poll         `json:"poll,omitempty"`
}

// EffectiveType returns the explicit type when present. Only untyped
// historical rows fall back to legacy classification.
func (m *Message) EffectiveType() MessageType {
	if m.Type != "" {
		return m.Type
	}
	return ClassifyLegacy(m.Content)
}

func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Preview returns the leading characters of the content for notifications.
func (m *Message) Preview(max int) string {
	if m.Content == "" {
		return "New message"
	}
	runes := []rune(m.Content)
	if len(runes) <= max {
		return m.Content
	}
	return string(runes[:max])
}
