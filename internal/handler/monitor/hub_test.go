package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/service/analytics"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	hub.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/monitor"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outgoingMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg outgoingMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, hub)

	hello := readMessage(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.NotEmpty(t, hello.ClientID)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Observe(analytics.CallStarted("CA1", "+40712345678", call.ModeUnset, time.Now()))

	msg := readMessage(t, conn)
	assert.Equal(t, "event", msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, analytics.KindCallStart, msg.Event.Kind)
	assert.Equal(t, "CA1", msg.Event.CallID)
	assert.Equal(t, "+40******678", msg.Event.From)
}

func TestHubRemovesDisconnectedClient(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, hub)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestObserveWithoutClients(t *testing.T) {
	hub := NewHub(nil)

	assert.NotPanics(t, func() {
		hub.Observe(analytics.OutcomeRecorded("CA1", call.OutcomePositive, time.Now()))
	})
	hub.Close()
}
