package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickgig/backend/internal/events"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(s.Close)

	url := "ws" + strings.TrimPrefix(s.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastsBusEventsToClients(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	bus := events.NewEventBus()
	go hub.Bridge(bus)

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	bus.Emit(events.EventBountyCreated, "/bounties", "b-1", map[string]interface{}{"bounty_id": "b-1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event events.CloudEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, events.EventBountyCreated, event.Type)
	assert.Equal(t, "b-1", event.Data["bounty_id"])
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	conn := dialHub(t, hub)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
