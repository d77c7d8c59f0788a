package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"skillswap/internal/models"
)

// Inbound event names.
const (
	EventPresenceList     = "presence:list"
	EventPresenceUpdate   = "presence:update"
	EventMessageNew       = "message:new"
	EventMessageSent      = "message:sent"
	EventMessageDelivered = "message:delivered"
	EventMessageRead      = "message:read"
	EventMessageReaction  = "message:reaction"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
)

// Frame is a single named event on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is anything the Manager delivers to subscribers. Server pushes and
// connection lifecycle changes share one type so subscribers need a single
// handler.
type Event interface {
	EventName() string
}

type PresenceList struct {
	Users []string `json:"users"`
}

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

type PresenceUpdate struct {
	UserID   string         `json:"userId"`
	Status   PresenceStatus `json:"status"`
	LastSeen *time.Time     `json:"lastSeen,omitempty"`
}

// MessageNew is a message pushed to the receiver.
type MessageNew struct {
	Message models.Message
}

// MessageSent acknowledges a message the current user sent over the socket.
type MessageSent struct {
	Message models.Message
}

type MessageDelivered struct {
	MessageID string `json:"messageId"`
}

// MessageRead carries either a single message id or a whole conversation.
type MessageRead struct {
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}

type MessageReaction struct {
	MessageID string            `json:"messageId"`
	Reactions []models.Reaction `json:"reactions"`
}

type TypingStart struct {
	FromUserID     string `json:"fromUserId"`
	ConversationID string `json:"conversationId"`
}

type TypingStop struct {
	FromUserID     string `json:"fromUserId"`
	ConversationID string `json:"conversationId"`
}

// Connected is delivered after every successful (re)connect.
type Connected struct{}

// Disconnected is delivered when the socket drops or fails to dial.
// TornDown is set when the connection was closed on purpose (logout or
// session change) rather than lost.
type Disconnected struct {
	Err      error
	TornDown bool
}

func (PresenceList) EventName() string     { return EventPresenceList }
func (PresenceUpdate) EventName() string   { return EventPresenceUpdate }
func (MessageNew) EventName() string       { return EventMessageNew }
func (MessageSent) EventName() string      { return EventMessageSent }
func (MessageDelivered) EventName() string { return EventMessageDelivered }
func (MessageRead) EventName() string      { return EventMessageRead }
func (MessageReaction) EventName() string  { return EventMessageReaction }
func (TypingStart) EventName() string      { return EventTypingStart }
func (TypingStop) EventName() string       { return EventTypingStop }
func (Connected) EventName() string        { return "connect" }
func (Disconnected) EventName() string     { return "disconnect" }

// DecodeEvent turns a frame into its typed event.
func DecodeEvent(f Frame) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch f.Event {
	case EventPresenceList:
		var e PresenceList
		err = unmarshal(f.Data, &e)
		ev = e
	case EventPresenceUpdate:
		var e PresenceUpdate
		err = unmarshal(f.Data, &e)
		ev = e
	case EventMessageNew:
		var e MessageNew
		err = unmarshal(f.Data, &e.Message)
		ev = e
	case EventMessageSent:
		var e MessageSent
		err = unmarshal(f.Data, &e.Message)
		ev = e
	case EventMessageDelivered:
		var e MessageDelivered
		err = unmarshal(f.Data, &e)
		ev = e
	case EventMessageRead:
		var e MessageRead
		err = unmarshal(f.Data, &e)
		ev = e
	case EventMessageReaction:
		var e MessageReaction
		err = unmarshal(f.Data, &e)
		ev = e
	case EventTypingStart:
		var e TypingStart
		err = unmarshal(f.Data, &e)
		ev = e
	case EventTypingStop:
		var e TypingStop
		err = unmarshal(f.Data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event %q", f.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.Event, err)
	}
	return ev, nil
}

// EncodeEvent builds the wire frame for a server event. It is the inverse of
// DecodeEvent and is used by fakes that play the server side.
func EncodeEvent(ev Event) (Frame, error) {
	var payload any = ev
	switch e := ev.(type) {
	case MessageNew:
		payload = e.Message
	case MessageSent:
		payload = e.Message
	case Connected, Disconnected:
		return Frame{}, fmt.Errorf("%s is not a wire event", ev.EventName())
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: ev.EventName(), Data: data}, nil
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
