package ws_test

import (
	"context"
	"testing"
	"time"

	"skillswap/internal/chattest"
	"skillswap/internal/models"
	"skillswap/internal/ws"

	"github.com/stretchr/testify/require"
)

func TestGorillaDialerAgainstServer(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	m := ws.NewManager(ws.Config{URL: srv.SocketURL()})
	defer m.Close()

	events := make(chan ws.Event, 32)
	unsubscribe := m.Subscribe(func(ev ws.Event) { events <- ev })
	defer unsubscribe()

	session := chattest.Session("u1")
	m.SetSession(context.Background(), &session)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd, err := srv.NextCommand(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, ws.PresenceQuery{}, cmd)

	// The reply to the presence query lists the user itself.
	for {
		select {
		case ev := <-events:
			if list, ok := ev.(ws.PresenceList); ok {
				require.Equal(t, []string{"u1"}, list.Users)
				return
			}
		case <-ctx.Done():
			t.Fatal("no presence list received")
		}
	}
}

func TestGorillaDialerRejectedToken(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	m := ws.NewManager(ws.Config{URL: srv.SocketURL()})
	defer m.Close()

	events := make(chan ws.Event, 8)
	unsubscribe := m.Subscribe(func(ev ws.Event) { events <- ev })
	defer unsubscribe()

	m.SetSession(context.Background(), &models.Session{UserID: "u1", Token: "forged"})

	select {
	case ev := <-events:
		down, ok := ev.(ws.Disconnected)
		require.True(t, ok, "got %T", ev)
		require.ErrorContains(t, down.Err, "status 401")
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect reported")
	}
	require.Contains(t, m.Status().Err, "401")
}

func TestServerDropReconnects(t *testing.T) {
	srv := chattest.NewServer()
	defer srv.Close()

	m := ws.NewManager(ws.Config{URL: srv.SocketURL(), ReconnectInterval: 20 * time.Millisecond})
	defer m.Close()

	session := chattest.Session("u2")
	m.SetSession(context.Background(), &session)
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)

	srv.Drop("u2")

	// Every connect asks for presence again.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for range 2 {
		cmd, err := srv.NextCommand(ctx, "u2")
		require.NoError(t, err)
		require.Equal(t, ws.PresenceQuery{}, cmd)
	}
	require.Eventually(t, m.IsConnected, 2*time.Second, 10*time.Millisecond)
}
