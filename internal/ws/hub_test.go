package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient dials a throwaway server and returns a Client wrapping the
// server side of the connection.
func newTestClient(t *testing.T, channel string) *Client {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	dialed, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialed.Close() })

	select {
	case conn := <-accepted:
		client := NewClient(context.Background(), conn, channel)
		t.Cleanup(client.Close)
		return client
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
		return nil
	}
}

func TestGetRoomReusesInstance(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	room := hub.GetRoom("general")
	assert.Same(t, room, hub.GetRoom("general"))

	_, exists := hub.GetRoomSafe("never-created")
	assert.False(t, exists)
}

func TestRoomEnforcesCapacity(t *testing.T) {
	hub := NewHub(HubOptions{MaxRoomSize: 1, CleanupInterval: time.Minute})
	defer hub.Shutdown()

	room := hub.GetRoom("general")

	first := newTestClient(t, "general")
	require.True(t, room.RegisterClient(first))
	require.Eventually(t, func() bool { return room.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	second := newTestClient(t, "general")
	require.True(t, room.RegisterClient(second))
	require.Eventually(t, second.IsClosed, 2*time.Second, 10*time.Millisecond,
		"over-capacity client is turned away")
	assert.Equal(t, 1, room.ClientCount())
}

func TestCleanupRemovesIdleRooms(t *testing.T) {
	hub := NewHub(HubOptions{MaxRoomSize: 4, CleanupInterval: time.Hour})
	defer hub.Shutdown()

	room := hub.GetRoom("stale")
	room.lastActive.Store(time.Now().Add(-2 * roomInactivityLimit))

	hub.cleanupInactiveRooms()

	_, exists := hub.GetRoomSafe("stale")
	assert.False(t, exists)
}

func TestCleanupKeepsOccupiedRooms(t *testing.T) {
	hub := NewHub(HubOptions{MaxRoomSize: 4, CleanupInterval: time.Hour})
	defer hub.Shutdown()

	room := hub.GetRoom("busy")
	client := newTestClient(t, "busy")
	require.True(t, room.RegisterClient(client))
	require.Eventually(t, func() bool { return room.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	room.lastActive.Store(time.Now().Add(-2 * roomInactivityLimit))
	hub.cleanupInactiveRooms()

	_, exists := hub.GetRoomSafe("busy")
	assert.True(t, exists, "rooms with live connections are never collected")
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	client := newTestClient(t, "general")

	// No WritePump is draining, so the buffer fills and then sends fail fast.
	for i := 0; i < maxSendChannelSize; i++ {
		require.True(t, client.SendRaw([]byte("x")))
	}
	assert.False(t, client.SendRaw([]byte("overflow")))
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := newTestClient(t, "general")

	client.Close()
	client.Close()
	assert.True(t, client.IsClosed())
	assert.False(t, client.SendRaw([]byte("after close")))

	select {
	case <-client.Context().Done():
	default:
		t.Error("context should be canceled on close")
	}
}
