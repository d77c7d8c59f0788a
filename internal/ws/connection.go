package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("socket is not connected")
)

// Conn is the subset of *websocket.Conn the manager needs.
type Conn interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// Dialer opens an authenticated socket.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket and presents the session token
// as a bearer credential during the handshake.
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

func (d GorillaDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("handshake rejected (status %d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}
