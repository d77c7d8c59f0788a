// Package typing debounces local composer activity into start/stop signals
// and decays remote typing indicators that stop being refreshed.
package typing

import (
	"log/slog"
	"sync"
	"time"

	"skillswap/internal/ws"
)

const (
	DefaultIdleTimeout  = 1200 * time.Millisecond
	DefaultDecayTimeout = 2000 * time.Millisecond
)

type Emitter interface {
	Emit(cmd ws.Command) error
}

type Config struct {
	SelfID string
	// IdleTimeout is the quiet period after the last keystroke before a
	// typing-stop is sent.
	IdleTimeout time.Duration
	// DecayTimeout clears a remote indicator that was not refreshed.
	DecayTimeout time.Duration
	// OnChange is called whenever a remote indicator flips.
	OnChange func(conversationID string, typing bool)
}

type burst struct {
	peerID string
	timer  *time.Timer
}

type indicator struct {
	timer *time.Timer
}

// Coordinator holds every typing timer of an open inbox. Close cancels all
// of them.
type Coordinator struct {
	cfg     Config
	emitter Emitter

	mu     sync.Mutex
	local  map[string]*burst
	remote map[string]*indicator
	closed bool
}

func New(cfg Config, emitter Emitter) *Coordinator {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.DecayTimeout <= 0 {
		cfg.DecayTimeout = DefaultDecayTimeout
	}
	return &Coordinator{
		cfg:     cfg,
		emitter: emitter,
		local:   make(map[string]*burst),
		remote:  make(map[string]*indicator),
	}
}

// Keystroke records composer activity. The first keystroke of a burst sends
// typing-start; every keystroke pushes the typing-stop back by IdleTimeout.
func (c *Coordinator) Keystroke(conversationID, peerID string) {
	if conversationID == "" || peerID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	b, ok := c.local[conversationID]
	if !ok {
		b = &burst{peerID: peerID}
		c.local[conversationID] = b
		c.emit(ws.StartTyping{ToUserID: peerID, ConversationID: conversationID})
	} else if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(c.cfg.IdleTimeout, func() {
		c.idle(conversationID, b)
	})
}

// Stop ends any burst and always sends typing-stop. Used after sending a
// message.
func (c *Coordinator) Stop(conversationID, peerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if b, ok := c.local[conversationID]; ok {
		b.timer.Stop()
		delete(c.local, conversationID)
	}
	if conversationID != "" && peerID != "" {
		c.emit(ws.StopTyping{ToUserID: peerID, ConversationID: conversationID})
	}
}

// Leave cancels the pending stop timer of a conversation the user navigated
// away from, sending the stop right away if a burst was in progress.
func (c *Coordinator) Leave(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.local[conversationID]
	if !ok {
		return
	}
	b.timer.Stop()
	delete(c.local, conversationID)
	if !c.closed {
		c.emit(ws.StopTyping{ToUserID: b.peerID, ConversationID: conversationID})
	}
}

func (c *Coordinator) idle(conversationID string, b *burst) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.local[conversationID] != b {
		return
	}
	delete(c.local, conversationID)
	c.emit(ws.StopTyping{ToUserID: b.peerID, ConversationID: conversationID})
}

// Handle applies remote typing events.
func (c *Coordinator) Handle(ev ws.Event) {
	switch e := ev.(type) {
	case ws.TypingStart:
		c.RemoteStart(e.FromUserID, e.ConversationID)
	case ws.TypingStop:
		c.RemoteStop(e.FromUserID, e.ConversationID)
	}
}

// RemoteStart marks the conversation as typing and (re)arms the decay timer,
// replacing any pending one. Signals authored by the current user are
// ignored.
func (c *Coordinator) RemoteStart(fromUserID, conversationID string) {
	if conversationID == "" || fromUserID == c.cfg.SelfID {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev, wasTyping := c.remote[conversationID]
	if wasTyping {
		prev.timer.Stop()
	}
	ind := &indicator{}
	ind.timer = time.AfterFunc(c.cfg.DecayTimeout, func() {
		c.decay(conversationID, ind)
	})
	c.remote[conversationID] = ind
	c.mu.Unlock()

	if !wasTyping {
		c.changed(conversationID, true)
	}
}

// RemoteStop clears the indicator immediately and cancels its decay timer.
func (c *Coordinator) RemoteStop(fromUserID, conversationID string) {
	if fromUserID == c.cfg.SelfID {
		return
	}

	c.mu.Lock()
	ind, ok := c.remote[conversationID]
	if ok {
		ind.timer.Stop()
		delete(c.remote, conversationID)
	}
	c.mu.Unlock()

	if ok {
		c.changed(conversationID, false)
	}
}

func (c *Coordinator) decay(conversationID string, ind *indicator) {
	c.mu.Lock()
	if c.closed || c.remote[conversationID] != ind {
		c.mu.Unlock()
		return
	}
	delete(c.remote, conversationID)
	c.mu.Unlock()

	c.changed(conversationID, false)
}

func (c *Coordinator) IsTyping(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.remote[conversationID]
	return ok
}

// Close cancels every pending timer. The coordinator ignores all calls
// afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, b := range c.local {
		b.timer.Stop()
		delete(c.local, id)
	}
	for id, ind := range c.remote {
		ind.timer.Stop()
		delete(c.remote, id)
	}
}

// emit must be called with c.mu held. Typing signals are best-effort, so a
// dropped command is only logged.
func (c *Coordinator) emit(cmd ws.Command) {
	if err := c.emitter.Emit(cmd); err != nil {
		slog.Debug("typing signal dropped", "command", cmd.CommandName(), "error", err)
	}
}

func (c *Coordinator) changed(conversationID string, typing bool) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(conversationID, typing)
	}
}
