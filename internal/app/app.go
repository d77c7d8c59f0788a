// Package app is the messaging context of a signed-in user. It owns the
// socket and the presence state for the lifetime of a session and opens
// inbox pages on top of them.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"skillswap/internal/api"
	"skillswap/internal/inbox"
	"skillswap/internal/models"
	"skillswap/internal/presence"
	"skillswap/internal/ws"
)

var ErrNoSession = errors.New("not signed in")

type Options struct {
	APIURL            string
	SocketURL         string
	RequestTimeout    time.Duration
	ReconnectInterval time.Duration
	TypingIdle        time.Duration
	TypingDecay       time.Duration
	Drafts            inbox.Drafts
	Logger            *slog.Logger

	// Dialer overrides the websocket dialer.
	Dialer ws.Dialer
	// NewAPI overrides the REST client built for each session.
	NewAPI func(token string) inbox.ChatAPI
}

type App struct {
	opts     Options
	log      *slog.Logger
	conn     *ws.Manager
	presence *presence.Tracker

	unsubscribe func()

	mu      sync.Mutex
	session *models.Session
}

func New(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NewAPI == nil {
		opts.NewAPI = func(token string) inbox.ChatAPI {
			return api.New(opts.APIURL, token, opts.RequestTimeout)
		}
	}

	a := &App{
		opts: opts,
		log:  logger,
		conn: ws.NewManager(ws.Config{
			URL:               opts.SocketURL,
			ReconnectInterval: opts.ReconnectInterval,
			Dialer:            opts.Dialer,
			Logger:            logger,
		}),
		presence: presence.NewTracker(),
	}
	a.unsubscribe = a.conn.Subscribe(a.presence.Handle)
	return a
}

// SetSession follows the auth state: the socket is opened for a session,
// torn down and reopened when the identity changes, and closed for nil.
func (a *App) SetSession(ctx context.Context, session *models.Session) {
	a.mu.Lock()
	if session != nil {
		s := *session
		session = &s
	}
	a.session = session
	a.mu.Unlock()

	a.conn.SetSession(ctx, session)
}

func (a *App) Session() (models.Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return models.Session{}, false
	}
	return *a.session, true
}

func (a *App) Connection() *ws.Manager {
	return a.conn
}

func (a *App) Presence() *presence.Tracker {
	return a.presence
}

// OpenInbox creates an inbox page for the current session and loads the
// conversation list. The inbox is returned even when the load fails, so the
// caller can show the error and still receive live updates.
func (a *App) OpenInbox(ctx context.Context, listener func(inbox.Change)) (*inbox.Inbox, error) {
	session, ok := a.Session()
	if !ok {
		return nil, ErrNoSession
	}

	ib := inbox.New(inbox.Options{
		Session:      session,
		API:          a.opts.NewAPI(session.Token),
		Conn:         a.conn,
		Drafts:       a.opts.Drafts,
		IdleTimeout:  a.opts.TypingIdle,
		DecayTimeout: a.opts.TypingDecay,
		Listener:     listener,
		Logger:       a.log,
	})
	return ib, ib.LoadInitial(ctx)
}

// Close signs the context out and releases the socket.
func (a *App) Close() {
	a.SetSession(context.Background(), nil)
	a.unsubscribe()
}
