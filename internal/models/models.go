package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Session is the authenticated identity the messaging core runs under.
// It is owned by the auth collaborator and only read here.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// SameIdentity reports whether two sessions carry the same (token, user) pair.
// A nil session never matches a non-nil one.
func (s *Session) SameIdentity(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Token == other.Token && s.UserID == other.UserID
}

// Participant is the public profile of the other side of a conversation.
type Participant struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"profilePic,omitempty"`
}

// Preview is the last message shown in the conversation list.
type Preview struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation represents a two-party thread.
type Conversation struct {
	ID          string      `json:"_id"`
	Participant Participant `json:"participant"`
	LastMessage *Preview    `json:"lastMessage,omitempty"`
	UnreadCount int         `json:"unreadCount"`
}

// Reaction is a single emoji left on a message by a user.
type Reaction struct {
	Emoji  string `json:"emoji"`
	UserID string `json:"user"`
}

// Message represents a chat message.
type Message struct {
	ID             string        `json:"_id"`
	ConversationID string        `json:"conversation"`
	SenderID       string        `json:"sender"`
	ReceiverID     string        `json:"receiver"`
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"createdAt"`
	Status         MessageStatus `json:"status"`
	Reactions      []Reaction    `json:"reactions,omitempty"`
}

// Preview returns the conversation list preview for the message.
func (m Message) Preview() *Preview {
	return &Preview{Text: m.Text, CreatedAt: m.CreatedAt}
}

// Clone returns a copy that does not share the reactions slice.
func (m Message) Clone() Message {
	if m.Reactions != nil {
		m.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	return m
}

// Clone returns a copy that does not share the preview pointer.
func (c Conversation) Clone() Conversation {
	if c.LastMessage != nil {
		p := *c.LastMessage
		c.LastMessage = &p
	}
	return c
}
