package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/volition/internal/agent"
	"github.com/scrypster/volition/internal/config"
	"github.com/scrypster/volition/internal/notify"
	"github.com/scrypster/volition/internal/storage/sqlite"
	"github.com/scrypster/volition/pkg/types"
)

// mockClient stands in for a websocket connection in hub tests.
type mockClient struct {
	send   chan []byte
	closed bool
}

func newMockClient() *mockClient {
	return &mockClient{send: make(chan []byte, 4)}
}

func (m *mockClient) getSendChannel() chan []byte { return m.send }
func (m *mockClient) close()                      { m.closed = true }

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := newMockClient()
	hub.register <- c

	hub.Broadcast(map[string]int{"run_count": 7})

	select {
	case data := <-c.send:
		var got map[string]int
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, 7, got["run_count"])
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for broadcast message")
	}
}

// TestHub_SlowClientIsDisconnected verifies a client with a full send queue
// is dropped instead of blocking the hub.
func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &mockClient{send: make(chan []byte)} // unbuffered, never read
	fast := newMockClient()
	hub.register <- slow
	hub.register <- fast

	hub.Broadcast("first")

	select {
	case <-fast.send:
	case <-time.After(2 * time.Second):
		t.Fatal("fast client starved by slow client")
	}

	// The slow client's channel is closed on disconnect.
	select {
	case _, ok := <-slow.send:
		assert.False(t, ok, "expected slow client channel closed")
	case <-time.After(2 * time.Second):
		t.Fatal("slow client never disconnected")
	}
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub()
	defer hub.Stop()

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestServer_StatusEndpoint verifies /status joins store counters with the
// local run state.
func TestServer_StatusEndpoint(t *testing.T) {
	store, err := sqlite.NewGraphStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	goal := &types.MemoryItem{
		ID: "goal:one", Type: types.TypeGoal, Status: types.StatusActive,
		Content: "stay on top of maintenance",
	}
	require.NoError(t, store.Insert(ctx, goal))

	statePath := filepath.Join(t.TempDir(), "agent_state.json")
	require.NoError(t, agent.SaveRunState(statePath, &types.AgentRunState{RunCount: 12}))

	srv := NewServer(store, statePath, "", config.MonitorConfig{Host: "127.0.0.1", Port: 0})
	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Counters struct {
			ActiveGoals int `json:"active_goals"`
		} `json:"counters"`
		RunState struct {
			RunCount int `json:"run_count"`
		} `json:"run_state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Counters.ActiveGoals)
	assert.Equal(t, 12, body.RunState.RunCount)
}

// TestServer_RelaysEventFiles verifies event files written by the loop
// processes reach websocket clients through the hub.
func TestServer_RelaysEventFiles(t *testing.T) {
	store, err := sqlite.NewGraphStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dataPath := t.TempDir()
	srv := NewServer(store, filepath.Join(dataPath, "agent_state.json"), dataPath,
		config.MonitorConfig{Host: "127.0.0.1", Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Start(ctx)

	c := newMockClient()
	srv.hub.register <- c

	require.NoError(t, notify.NewEventWriter(dataPath).Notify(notify.EventDeepThinkDone, "", "run 3"))

	select {
	case data := <-c.send:
		var evt notify.Event
		require.NoError(t, json.Unmarshal(data, &evt))
		assert.Equal(t, notify.EventDeepThinkDone, evt.Type)
		assert.Equal(t, "run 3", evt.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("event file never reached the websocket hub")
	}
}

func TestServer_Health(t *testing.T) {
	srv := NewServer(nil, "", "", config.MonitorConfig{Host: "127.0.0.1", Port: 0})
	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
