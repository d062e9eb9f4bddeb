package websocket

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup-client/internal/session"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	go hub.Run()
	return hub
}

func registerClient(t *testing.T, hub *Hub, sessionID string, buffer int) *Client {
	t.Helper()
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, buffer),
		Hub:       hub,
	}
	before := hub.count()
	hub.register <- client
	require.Eventually(t, func() bool {
		return hub.count() == before+1
	}, time.Second, 5*time.Millisecond)
	return client
}

func TestPublishDeliversPerSession(t *testing.T) {
	hub := newRunningHub(t)
	watcher := registerClient(t, hub, "s1", 8)
	other := registerClient(t, hub, "s2", 8)

	hub.Publish("s1", session.ProgressEvent{Type: "lineup", Count: 1})

	select {
	case msg := <-watcher.Send:
		assert.Contains(t, string(msg), `"lineup"`)
	case <-time.After(time.Second):
		t.Fatal("watcher received nothing")
	}
	assert.Empty(t, other.Send)
}

func TestPublishSurvivesSlowConsumer(t *testing.T) {
	hub := newRunningHub(t)
	slow := registerClient(t, hub, "s1", 1)
	healthy := registerClient(t, hub, "s1", 8)

	event := session.ProgressEvent{Type: "lineup", Count: 1}
	hub.Publish("s1", event) // fills slow's buffer
	hub.Publish("s1", event) // drops slow
	require.NotPanics(t, func() {
		hub.Publish("s1", event)
	})

	// the slow client is fully gone, the healthy one got everything
	assert.Equal(t, 1, hub.count())
	assert.Len(t, healthy.Send, 3)

	// the dropped client's eventual unregister is a no-op, not a second close
	hub.unregister <- slow
	require.Eventually(t, func() bool {
		return hub.count() == 1
	}, time.Second, 5*time.Millisecond)
	require.NotPanics(t, func() {
		hub.Publish("s1", event)
	})
	assert.Len(t, healthy.Send, 4)
}
