package chat_dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/Developer-AbhinavAF/msg/internal/entity"
)

// Payloads emitted over the socket, client -> server. Shapes follow the
// server contract one to one.

type SendMessageRequest struct {
	Content    string           `json:"content" validate:"required,min=1"`
	Type       string           `json:"type" validate:"required,oneof=text image video voice file poll"`
	ReplyTo    *entity.ReplyRef `json:"replyTo,omitempty"`
	SenderName string           `json:"senderName,omitempty"`
}

type TypingUpdateRequest struct {
	IsTyping bool `json:"isTyping"`
}

type ReactionAddRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type MessagesReadRequest struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,dive,required"`
}

type VoiceSendRequest struct {
	AudioBase64 string `json:"audioBase64" validate:"required,base64"`
	Duration    int    `json:"duration" validate:"min=0"`
	SenderName  string `json:"senderName,omitempty"`
}

type AttachmentSendRequest struct {
	Filename   string `json:"filename" validate:"required"`
	FileBase64 string `json:"fileBase64" validate:"required,base64"`
	FileType   string `json:"fileType,omitempty"`
	FileSize   int64  `json:"fileSize" validate:"min=0"`
	SenderName string `json:"senderName,omitempty"`
}

type PollCreateRequest struct {
	Question string   `json:"question" validate:"required,min=1"`
	Options  []string `json:"options" validate:"required,min=2,dive,required"`
}

type PollVoteRequest struct {
	MessageID   string `json:"messageId" validate:"required"`
	OptionIndex int    `json:"optionIndex" validate:"min=0"`
}

type MessageEditRequest struct {
	MessageID  string `json:"messageId" validate:"required"`
	NewContent string `json:"newContent" validate:"required,min=1"`
}

type MessageDeleteRequest struct {
	MessageID         string `json:"messageId" validate:"required"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
}

var validate = validator.New()

// ValidateRequest checks a wire payload against its struct tags before it is
// emitted.
func ValidateRequest(req any) error {
	return validate.Struct(req)
}
