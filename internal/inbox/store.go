package inbox

import (
	"strings"

	"skillswap/internal/models"

	"github.com/c-pro/geche"
)

// seenSize bounds how many applied message ids are remembered.
const seenSize = 1024

// Store is the ordered conversation list. Entries keep their position: new
// conversations are prepended and updates happen in place.
//
// Store is not safe for concurrent use; Inbox serializes access.
type Store struct {
	order  []string
	byID   map[string]*models.Conversation
	active string
	// ids of messages already counted, so a redelivered message is not
	// counted twice.
	seen *geche.RingBuffer[string, struct{}]
}

func NewStore() *Store {
	return &Store{
		byID: make(map[string]*models.Conversation),
		seen: geche.NewRingBuffer[string, struct{}](seenSize),
	}
}

// Replace swaps the contents for a freshly loaded list. The active
// conversation survives if it is still present.
func (s *Store) Replace(conversations []models.Conversation) {
	s.order = s.order[:0]
	s.byID = make(map[string]*models.Conversation, len(conversations))
	for _, c := range conversations {
		if _, dup := s.byID[c.ID]; dup || c.ID == "" {
			continue
		}
		conv := c.Clone()
		s.byID[c.ID] = &conv
		s.order = append(s.order, c.ID)
	}
	if _, ok := s.byID[s.active]; !ok {
		s.active = ""
	}
}

// Prepend puts a new conversation on top. An existing one is updated in
// place instead.
func (s *Store) Prepend(c models.Conversation) {
	if c.ID == "" {
		return
	}
	conv := c.Clone()
	if _, ok := s.byID[c.ID]; ok {
		s.byID[c.ID] = &conv
		return
	}
	s.byID[c.ID] = &conv
	s.order = append([]string{c.ID}, s.order...)
}

// Select marks the conversation active and zeroes its unread counter.
func (s *Store) Select(id string) bool {
	c, ok := s.byID[id]
	if !ok {
		return false
	}
	s.active = id
	c.UnreadCount = 0
	return true
}

func (s *Store) Deselect(id string) {
	if s.active == id {
		s.active = ""
	}
}

func (s *Store) ActiveID() string {
	return s.active
}

func (s *Store) Active() (models.Conversation, bool) {
	return s.Get(s.active)
}

func (s *Store) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Store) Get(id string) (models.Conversation, bool) {
	c, ok := s.byID[id]
	if !ok {
		return models.Conversation{}, false
	}
	return c.Clone(), true
}

// ApplyMessage routes an incoming message to its conversation: the preview
// is always updated and the unread counter grows unless the conversation is
// active or the message was applied before. It reports whether the
// conversation is known.
func (s *Store) ApplyMessage(m models.Message) bool {
	c, ok := s.byID[m.ConversationID]
	if !ok {
		return false
	}
	if s.Applied(m.ID) {
		return true
	}
	s.MarkApplied(m.ID)
	c.LastMessage = m.Preview()
	if m.ConversationID != s.active {
		c.UnreadCount++
	}
	return true
}

// Applied reports whether a message with this id was already applied.
func (s *Store) Applied(messageID string) bool {
	if messageID == "" {
		return false
	}
	_, err := s.seen.Get(messageID)
	return err == nil
}

// MarkApplied records a message as already reflected in the counters, e.g.
// when a freshly fetched snapshot includes it.
func (s *Store) MarkApplied(messageID string) {
	if messageID != "" {
		s.seen.Set(messageID, struct{}{})
	}
}

// UpdatePreview sets the preview without touching unread counters. Used for
// messages the current user sent.
func (s *Store) UpdatePreview(m models.Message) {
	if c, ok := s.byID[m.ConversationID]; ok {
		c.LastMessage = m.Preview()
	}
}

func (s *Store) MarkRead(id string) {
	if c, ok := s.byID[id]; ok {
		c.UnreadCount = 0
	}
}

// Merge adds conversations that are not known yet, on top of the list, and
// leaves known ones untouched. It returns the ids that were added.
func (s *Store) Merge(conversations []models.Conversation) []string {
	var added []string
	for i := len(conversations) - 1; i >= 0; i-- {
		c := conversations[i]
		if c.ID == "" || s.Has(c.ID) {
			continue
		}
		s.Prepend(c)
		added = append(added, c.ID)
	}
	return added
}

// List returns a copy of all conversations in display order.
func (s *Store) List() []models.Conversation {
	result := make([]models.Conversation, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.byID[id].Clone())
	}
	return result
}

// Filter returns conversations whose participant name contains term, case
// insensitive. A blank term matches everything.
func (s *Store) Filter(term string) []models.Conversation {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.List()
	}
	var result []models.Conversation
	for _, id := range s.order {
		c := s.byID[id]
		if strings.Contains(strings.ToLower(c.Participant.Name), term) {
			result = append(result, c.Clone())
		}
	}
	return result
}

func (s *Store) Len() int {
	return len(s.order)
}
