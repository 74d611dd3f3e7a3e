package transport

import "encoding/json"

// Outbound event names (client -> server).
const (
	EventMessageSend    = "message:send"
	EventTypingUpdate   = "typing:update"
	EventReactionAdd    = "reaction:add"
	EventMessageRead    = "message:read"
	EventVoiceSend      = "voice:send"
	EventAttachmentSend = "attachment:send"
	EventPollCreate     = "poll:create"
	EventPollVote       = "poll:vote"
	EventMessageEdit    = "message:edit"
	EventMessageDelete  = "message:delete"
)

// Inbound event names (server -> client). typing:update and message:read
// share their names with the outbound direction.
const (
	EventMessageReceived = "message:received"
	EventReactionUpdated = "reaction:updated"
	EventPollUpdated     = "poll:updated"
	EventMessageEdited   = "message:edited"
	EventMessageDeleted  = "message:deleted"
	EventUserOnline      = "user:online"
	EventUserOffline     = "user:offline"
)

// Envelope is the wire frame: an event name plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EventHandler receives inbound events in transport-delivery order. Calls are
// made from the read goroutine, one at a time.
type EventHandler interface {
	HandleEvent(event string, data json.RawMessage)
}

// State is the connection lifecycle surfaced to the presentation layer.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
