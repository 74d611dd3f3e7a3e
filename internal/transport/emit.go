package transport

import "github.com/Developer-AbhinavAF/msg/internal/dtos/chat_dto"

// Typed emissions. Each validates the payload, then fires EventName over the
// socket. No acknowledgment is tracked; delivery while disconnected fails
// with ErrNotConnected and the payload is dropped.

func (t *Transport) SendMessage(req chat_dto.SendMessageRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventMessageSend, req)
}

func (t *Transport) UpdateTyping(req chat_dto.TypingUpdateRequest) error {
	return t.Emit(EventTypingUpdate, req)
}

func (t *Transport) AddReaction(req chat_dto.ReactionAddRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventReactionAdd, req)
}

func (t *Transport) MarkRead(req chat_dto.MessagesReadRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventMessageRead, req)
}

func (t *Transport) SendVoice(req chat_dto.VoiceSendRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventVoiceSend, req)
}

func (t *Transport) SendAttachment(req chat_dto.AttachmentSendRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventAttachmentSend, req)
}

func (t *Transport) CreatePoll(req chat_dto.PollCreateRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventPollCreate, req)
}

func (t *Transport) VotePoll(req chat_dto.PollVoteRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventPollVote, req)
}

func (t *Transport) EditMessage(req chat_dto.MessageEditRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventMessageEdit, req)
}

func (t *Transport) DeleteMessage(req chat_dto.MessageDeleteRequest) error {
	if err := chat_dto.ValidateRequest(&req); err != nil {
		return err
	}
	return t.Emit(EventMessageDelete, req)
}
