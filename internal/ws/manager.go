package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"skillswap/internal/models"

	"golang.org/x/sync/errgroup"
)

var errConnectionFailed = errors.New("socket connection failed")

type State int

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

// Status is a snapshot of the connection. Err holds the last connection
// error and is cleared by the next successful connect.
type Status struct {
	State State
	Err   string
}

type Config struct {
	URL string
	// ReconnectInterval is the delay before redialing a dropped socket.
	// Zero disables redialing.
	ReconnectInterval time.Duration
	Dialer            Dialer
	Logger            *slog.Logger
}

// Manager owns the single live socket of a session. Nothing else may open or
// close it; other components act through Emit and Subscribe.
type Manager struct {
	cfg Config
	log *slog.Logger

	// lifecycle serializes SetSession calls.
	lifecycle sync.Mutex

	mu      sync.Mutex
	session *models.Session
	conn    Conn
	state   State
	lastErr string
	cancel  context.CancelFunc
	done    chan struct{}
	subs    map[int]func(Event)
	nextSub int

	writeMu sync.Mutex
}

func NewManager(cfg Config) *Manager {
	if cfg.Dialer == nil {
		cfg.Dialer = GorillaDialer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:  cfg,
		log:  logger.With("component", "socket"),
		subs: make(map[int]func(Event)),
	}
}

// SetSession ties the connection to the session. The socket lives until ctx
// is done or the session changes. A nil session guarantees no socket
// exists. A session with a different token or user id tears the old socket
// down fully before dialing a new one; the same identity is a no-op.
func (m *Manager) SetSession(ctx context.Context, session *models.Session) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.session.SameIdentity(session) {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	hadSession := m.session != nil
	m.session = session
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if hadSession {
		m.mu.Lock()
		m.state = StateDisconnected
		m.conn = nil
		m.mu.Unlock()
		m.publish(Disconnected{TornDown: true})
	}

	if session == nil {
		return
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	m.mu.Lock()
	m.cancel, m.done = loopCancel, loopDone
	m.state = StateConnecting
	m.mu.Unlock()

	go func() {
		defer close(loopDone)
		m.run(loopCtx, *session)
		m.finish(loopCtx, loopDone)
	}()
}

// finish runs when a session loop exits. If ctx ended on its own rather than
// through SetSession, the session is dropped so a later SetSession with the
// same identity dials again.
func (m *Manager) finish(ctx context.Context, done chan struct{}) {
	m.mu.Lock()
	m.state = StateDisconnected
	orphaned := ctx.Err() != nil && m.done == done
	if orphaned {
		m.session = nil
		m.conn = nil
		m.cancel, m.done = nil, nil
	}
	m.mu.Unlock()

	if orphaned {
		m.log.Info("session context ended")
		m.publish(Disconnected{TornDown: true})
	}
}

// Close tears down any live socket.
func (m *Manager) Close() {
	m.SetSession(context.Background(), nil)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Err: m.lastErr}
}

func (m *Manager) IsConnected() bool {
	return m.Status().State == StateConnected
}

// Subscribe registers a handler for every event. Handlers run on the
// socket's read goroutine, one event at a time. The returned function
// removes the handler.
func (m *Manager) Subscribe(handler func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Emit writes a command to the live socket. Without one the command is
// dropped and ErrNotConnected returned.
func (m *Manager) Emit(cmd Command) error {
	frame, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to emit %s: %w", frame.Event, err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context, session models.Session) {
	for {
		m.setState(StateConnecting)
		conn, err := m.cfg.Dialer.Dial(ctx, m.cfg.URL, session.Token)
		if err == nil {
			err = m.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}
		m.fail(err)

		if m.cfg.ReconnectInterval <= 0 {
			return
		}
		m.log.Info("reconnecting", "user_id", session.UserID, "in", m.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectInterval):
		}
	}
}

// serve runs one connected socket until it fails or ctx is cancelled.
func (m *Manager) serve(ctx context.Context, conn Conn) error {
	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.lastErr = ""
	m.mu.Unlock()
	m.log.Info("connected")

	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
	}()

	// Presence is not durable across reconnects, ask for a fresh snapshot.
	if err := m.Emit(PresenceQuery{}); err != nil {
		_ = conn.Close()
		return err
	}
	m.publish(Connected{})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.readLoop(conn)
	})
	g.Go(func() error {
		<-gCtx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}

func (m *Manager) readLoop(conn Conn) error {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		ev, err := DecodeEvent(frame)
		if err != nil {
			m.log.Warn("dropping event", "event", frame.Event, "error", err)
			continue
		}
		m.publish(ev)
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.state = StateDisconnected
	m.conn = nil
	if err == nil {
		err = errConnectionFailed
	}
	m.lastErr = err.Error()
	m.mu.Unlock()

	m.log.Warn("socket connection lost", "error", err)
	m.publish(Disconnected{Err: err})
}

func (m *Manager) publish(ev Event) {
	m.mu.Lock()
	handlers := make([]func(Event), 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if h, ok := m.subs[i]; ok {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
