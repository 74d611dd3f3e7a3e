package chat_dto

import "github.com/Developer-AbhinavAF/msg/internal/entity"

type GetMessagesResponse struct {
	Messages []entity.Message `json:"messages"`
}

type UserRecord struct {
	UserID     string `json:"userId"`
	SenderName string `json:"senderName,omitempty"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  UserRecord `json:"user"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
