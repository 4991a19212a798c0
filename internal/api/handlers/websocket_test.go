package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/modscan/internal/scanning"
)

func dialStatusStream(t *testing.T, h *WebSocketHandler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.StatusWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) StatusResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg WebSocketMessage
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MessageTypeStatus, msg.Type)

	data, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(data, &status))
	return status
}

func TestWebSocketHandler_StreamsChanges(t *testing.T) {
	svc := newFakeService()
	h := NewWebSocketHandler(svc, createTestLogger(), 10*time.Millisecond)
	defer h.Shutdown()

	conn := dialStatusStream(t, h)

	first := readStatus(t, conn)
	assert.Equal(t, scanning.StatusIdle, first.Status)

	svc.setSnapshot(scanning.Snapshot{ScanID: "scan-1", Status: scanning.StatusRunning, Progress: 50, TotalTasks: 2, CompletedTasks: 1})
	second := readStatus(t, conn)
	assert.Equal(t, scanning.StatusRunning, second.Status)
	assert.Equal(t, 50, second.Progress)
	assert.Equal(t, "scan-1", second.ScanID)

	svc.setSnapshot(scanning.Snapshot{ScanID: "scan-1", Status: scanning.StatusCompleted, Progress: 100, TotalTasks: 2, CompletedTasks: 2})
	third := readStatus(t, conn)
	assert.Equal(t, scanning.StatusCompleted, third.Status)
	assert.Equal(t, 100, third.Progress)
}

func TestWebSocketHandler_SkipsUnchangedSnapshots(t *testing.T) {
	svc := newFakeService()
	h := NewWebSocketHandler(svc, createTestLogger(), 5*time.Millisecond)
	defer h.Shutdown()

	conn := dialStatusStream(t, h)
	readStatus(t, conn)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no message expected while the job state is unchanged")
}

func TestWebSocketHandler_ShutdownClosesStream(t *testing.T) {
	h := NewWebSocketHandler(newFakeService(), createTestLogger(), 10*time.Millisecond)
	conn := dialStatusStream(t, h)
	readStatus(t, conn)

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Shutdown()
	h.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestWebSocketHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewWebSocketHandler(newFakeService(), createTestLogger(), 0)
	defer h.Shutdown()

	rec := httptest.NewRecorder()
	h.StatusWebSocket(rec, httptest.NewRequest(http.MethodGet, "/scan/ws", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, defaultStreamInterval, h.interval)
	assert.Equal(t, 0, h.ClientCount())
}

func TestSameState(t *testing.T) {
	now := time.Now()
	a := scanning.Snapshot{ScanID: "x", Status: scanning.StatusRunning, Progress: 10, Message: "m", CompletedTasks: 1}
	b := a
	b.StartedAt = &now

	assert.True(t, sameState(a, b), "timestamps are ignored")
	b.Progress = 11
	assert.False(t, sameState(a, b))
}
