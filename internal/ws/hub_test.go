package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atc_trmnl/internal/models"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	ev := models.NewTuneEvent(models.TuneActionJoin, "121.505", models.Position{Latitude: 41.8, Longitude: 12.25})
	ev.Channel = "GUARD_B"
	require.NoError(t, hub.Publish(ev))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var got struct {
			Type string           `json:"type"`
			Data models.TuneEvent `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, "tune", got.Type)
		assert.Equal(t, ev.ID, got.Data.ID)
		assert.Equal(t, "GUARD_B", got.Data.Channel)
		assert.Equal(t, models.TuneActionJoin, got.Data.Action)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastJSON(t *testing.T) {
	hub := NewHub()

	// nothing drains the queue, so it fills up
	for i := 0; i < cap(hub.broadcast); i++ {
		require.NoError(t, hub.BroadcastJSON(map[string]int{"n": i}))
	}
	assert.ErrorIs(t, hub.BroadcastJSON("one more"), ErrBroadcastFull)

	assert.Error(t, hub.BroadcastJSON(make(chan int)))
}
