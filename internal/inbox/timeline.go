package inbox

import (
	"skillswap/internal/models"
)

// Timeline is the message list of the open conversation. Messages are keyed
// by id so the REST history and socket pushes can arrive in any order
// without producing duplicates.
//
// Timeline is not safe for concurrent use; Inbox serializes access.
type Timeline struct {
	selfID         string
	conversationID string
	order          []string
	byID           map[string]*models.Message
}

func NewTimeline(selfID string) *Timeline {
	return &Timeline{
		selfID: selfID,
		byID:   make(map[string]*models.Message),
	}
}

// Reset discards the current messages and binds the timeline to a
// conversation. An empty id leaves it unbound.
func (t *Timeline) Reset(conversationID string) {
	t.conversationID = conversationID
	t.order = nil
	t.byID = make(map[string]*models.Message)
}

func (t *Timeline) ConversationID() string {
	return t.conversationID
}

// Load merges the REST history into the timeline. History comes first in
// server order; messages pushed over the socket while the request was in
// flight keep their place after it. Messages addressed to the current user
// are marked read, since opening the history means seeing them.
func (t *Timeline) Load(messages []models.Message) {
	pushed := t.order
	byID := t.byID

	t.order = make([]string, 0, len(messages)+len(pushed))
	t.byID = make(map[string]*models.Message, len(messages)+len(pushed))

	for _, m := range messages {
		if m.ConversationID != "" && m.ConversationID != t.conversationID {
			continue
		}
		if prev, ok := byID[m.ID]; ok {
			m.Status = prev.Status.Advance(m.Status)
		}
		t.insert(m)
	}
	for _, id := range pushed {
		if _, ok := t.byID[id]; !ok {
			t.insert(*byID[id])
		}
	}
}

// Append adds a message unless one with the same id is already present, in
// which case only its status may move forward. It reports whether the
// message was new.
func (t *Timeline) Append(m models.Message) bool {
	if m.ID == "" || m.ConversationID != t.conversationID {
		return false
	}
	if prev, ok := t.byID[m.ID]; ok {
		prev.Status = prev.Status.Advance(m.Status.Normalize())
		return false
	}
	t.insert(m)
	return true
}

func (t *Timeline) insert(m models.Message) {
	if m.ID == "" {
		return
	}
	if _, dup := t.byID[m.ID]; dup {
		return
	}
	m = m.Clone()
	m.Status = m.Status.Normalize()
	if m.ReceiverID == t.selfID {
		m.Status = m.Status.Advance(models.StatusRead)
	}
	t.byID[m.ID] = &m
	t.order = append(t.order, m.ID)
}

// ApplyDelivered moves a sent message to delivered. Any other status is left
// alone.
func (t *Timeline) ApplyDelivered(messageID string) bool {
	m, ok := t.byID[messageID]
	if !ok || m.Status != models.StatusSent {
		return false
	}
	m.Status = models.StatusDelivered
	return true
}

func (t *Timeline) ApplyRead(messageID string) bool {
	m, ok := t.byID[messageID]
	if !ok || m.Status == models.StatusRead {
		return false
	}
	m.Status = m.Status.Advance(models.StatusRead)
	return true
}

// ApplyReadAll marks every loaded message read.
func (t *Timeline) ApplyReadAll() bool {
	changed := false
	for _, m := range t.byID {
		if m.Status != models.StatusRead {
			m.Status = m.Status.Advance(models.StatusRead)
			changed = true
		}
	}
	return changed
}

// ApplyReactions replaces the reaction list of a message. The server sends
// the full set, not deltas.
func (t *Timeline) ApplyReactions(messageID string, reactions []models.Reaction) bool {
	m, ok := t.byID[messageID]
	if !ok {
		return false
	}
	m.Reactions = append([]models.Reaction(nil), reactions...)
	return true
}

func (t *Timeline) Get(messageID string) (models.Message, bool) {
	m, ok := t.byID[messageID]
	if !ok {
		return models.Message{}, false
	}
	return m.Clone(), true
}

// Messages returns a copy of the timeline in display order.
func (t *Timeline) Messages() []models.Message {
	result := make([]models.Message, 0, len(t.order))
	for _, id := range t.order {
		result = append(result, t.byID[id].Clone())
	}
	return result
}

func (t *Timeline) Len() int {
	return len(t.order)
}
