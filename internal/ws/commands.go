package ws

import (
	"encoding/json"
	"fmt"
)

// Outbound command names.
const (
	CommandPresenceQuery        = "presence:query"
	CommandConversationActive   = "conversation:active"
	CommandConversationInactive = "conversation:inactive"
	CommandTypingStart          = "typing:start"
	CommandTypingStop           = "typing:stop"
	CommandMessageSend          = "message:send"
	CommandMessageReact         = "message:react"
	CommandMessagesRead         = "messages:read"
)

// Command is an outbound request to the server.
type Command interface {
	CommandName() string
}

type PresenceQuery struct{}

type ConversationActive struct {
	ConversationID string `json:"conversationId"`
}

type ConversationInactive struct {
	ConversationID string `json:"conversationId"`
}

type StartTyping struct {
	ToUserID       string `json:"toUserId"`
	ConversationID string `json:"conversationId"`
}

type StopTyping struct {
	ToUserID       string `json:"toUserId"`
	ConversationID string `json:"conversationId"`
}

type SendMessage struct {
	ConversationID string `json:"conversationId"`
	ToUserID       string `json:"toUserId"`
	Text           string `json:"text"`
}

type React struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type MarkRead struct {
	ConversationID string `json:"conversationId"`
}

func (PresenceQuery) CommandName() string        { return CommandPresenceQuery }
func (ConversationActive) CommandName() string   { return CommandConversationActive }
func (ConversationInactive) CommandName() string { return CommandConversationInactive }
func (StartTyping) CommandName() string          { return CommandTypingStart }
func (StopTyping) CommandName() string           { return CommandTypingStop }
func (SendMessage) CommandName() string          { return CommandMessageSend }
func (React) CommandName() string                { return CommandMessageReact }
func (MarkRead) CommandName() string             { return CommandMessagesRead }

// EncodeCommand builds the wire frame for a command. PresenceQuery has no
// payload.
func EncodeCommand(cmd Command) (Frame, error) {
	if _, ok := cmd.(PresenceQuery); ok {
		return Frame{Event: cmd.CommandName()}, nil
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to encode %s: %w", cmd.CommandName(), err)
	}
	return Frame{Event: cmd.CommandName(), Data: data}, nil
}

// DecodeCommand is the server-side inverse of EncodeCommand.
func DecodeCommand(f Frame) (Command, error) {
	var (
		cmd Command
		err error
	)
	switch f.Event {
	case CommandPresenceQuery:
		cmd = PresenceQuery{}
	case CommandConversationActive:
		var c ConversationActive
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandConversationInactive:
		var c ConversationInactive
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandTypingStart:
		var c StartTyping
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandTypingStop:
		var c StopTyping
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandMessageSend:
		var c SendMessage
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandMessageReact:
		var c React
		err = unmarshal(f.Data, &c)
		cmd = c
	case CommandMessagesRead:
		var c MarkRead
		err = unmarshal(f.Data, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("unknown command %q", f.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.Event, err)
	}
	return cmd, nil
}
