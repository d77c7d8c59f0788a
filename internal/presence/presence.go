// Package presence tracks which peers are online and when offline peers were
// last seen, as pushed by the server.
package presence

import (
	"sort"
	"sync"
	"time"

	"skillswap/internal/ws"

	"github.com/c-pro/geche"
)

type Tracker struct {
	mu       sync.RWMutex
	online   *geche.MapCache[string, struct{}]
	lastSeen *geche.MapCache[string, time.Time]
	onChange func()
}

func NewTracker() *Tracker {
	return &Tracker{
		online:   geche.NewMapCache[string, struct{}](),
		lastSeen: geche.NewMapCache[string, time.Time](),
	}
}

// OnChange registers a callback invoked after every mutation.
func (t *Tracker) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Handle applies presence events and resets on teardown. Other events are
// ignored, so the tracker can subscribe to the connection directly.
func (t *Tracker) Handle(ev ws.Event) {
	switch e := ev.(type) {
	case ws.PresenceList:
		t.ApplySnapshot(e.Users)
	case ws.PresenceUpdate:
		t.ApplyUpdate(e)
	case ws.Disconnected:
		if e.TornDown {
			t.Reset()
		}
	}
}

// ApplySnapshot replaces the online set wholesale.
func (t *Tracker) ApplySnapshot(users []string) {
	online := geche.NewMapCache[string, struct{}]()
	for _, id := range users {
		online.Set(id, struct{}{})
	}

	t.mu.Lock()
	t.online = online
	fn := t.onChange
	t.mu.Unlock()
	notify(fn)
}

// ApplyUpdate adds or removes a single user. The last-seen time is recorded
// only on a transition to offline. Updates for the same user are
// last-writer-wins.
func (t *Tracker) ApplyUpdate(u ws.PresenceUpdate) {
	if u.UserID == "" {
		return
	}

	t.mu.Lock()
	switch u.Status {
	case ws.PresenceOnline:
		t.online.Set(u.UserID, struct{}{})
	case ws.PresenceOffline:
		_ = t.online.Del(u.UserID)
		if u.LastSeen != nil {
			t.lastSeen.Set(u.UserID, *u.LastSeen)
		}
	default:
		t.mu.Unlock()
		return
	}
	fn := t.onChange
	t.mu.Unlock()
	notify(fn)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	t.online = geche.NewMapCache[string, struct{}]()
	t.lastSeen = geche.NewMapCache[string, time.Time]()
	fn := t.onChange
	t.mu.Unlock()
	notify(fn)
}

func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, err := t.online.Get(userID)
	return err == nil
}

// LastSeen returns when the user was last seen going offline, if known.
func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen, err := t.lastSeen.Get(userID)
	if err != nil {
		return time.Time{}, false
	}
	return seen, true
}

// Online returns the sorted ids of online users.
func (t *Tracker) Online() []string {
	t.mu.RLock()
	snapshot := t.online.Snapshot()
	t.mu.RUnlock()

	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Label renders a user's presence the way the inbox header shows it.
func (t *Tracker) Label(userID string) string {
	if t.IsOnline(userID) {
		return "Online"
	}
	seen, ok := t.LastSeen(userID)
	return Label(false, seen, ok)
}

func Label(online bool, lastSeen time.Time, known bool) string {
	switch {
	case online:
		return "Online"
	case known:
		return "Last seen " + lastSeen.Local().Format("Jan 2, 15:04")
	default:
		return "Offline"
	}
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
