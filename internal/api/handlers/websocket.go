// Package handlers provides HTTP request handlers for the modscan API.
// This file implements a WebSocket stream of scan status snapshots. The
// polled status endpoint stays authoritative; the stream only saves clients
// the round trips.
package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/modscan/internal/api/middleware"
	"github.com/anstrom/modscan/internal/scanning"
)

const (
	// WebSocket configuration constants.
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer

	defaultStreamInterval = 500 * time.Millisecond

	// MessageTypeStatus tags status snapshot messages.
	MessageTypeStatus = "scan_status"
)

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// WebSocketHandler streams status snapshots to connected clients.
type WebSocketHandler struct {
	service  ScanService
	logger   *slog.Logger
	upgrader websocket.Upgrader
	interval time.Duration

	shutdown chan struct{}
	once     sync.Once

	mutex   sync.RWMutex
	clients int
}

// NewWebSocketHandler creates a new WebSocket handler that samples the job
// status every interval.
func NewWebSocketHandler(service ScanService, logger *slog.Logger, interval time.Duration) *WebSocketHandler {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &WebSocketHandler{
		service:  service,
		logger:   logger.With("handler", "websocket"),
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origins are enforced by the CORS layer.
				return true
			},
		},
		shutdown: make(chan struct{}),
	}
}

// StatusWebSocket handles GET /scan/ws. A snapshot is sent on connect and
// whenever the job state changes.
func (h *WebSocketHandler) StatusWebSocket(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)
	h.logger.Info("New status WebSocket connection", "request_id", requestID, "remote_addr", r.RemoteAddr)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}

	h.track(1)
	defer func() {
		h.track(-1)
		if err := conn.Close(); err != nil {
			h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		h.logger.Error("Failed to set read deadline", "request_id", requestID, "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.readPump(conn, requestID, done)
	h.writePump(conn, requestID, done)
}

// readPump drains client frames so control messages are processed, and
// closes done when the peer goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, requestID string, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", "request_id", requestID, "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) writePump(conn *websocket.Conn, requestID string, done <-chan struct{}) {
	sample := time.NewTicker(h.interval)
	defer sample.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var last *scanning.Snapshot
	send := func() bool {
		snap := h.service.Status()
		if last != nil && sameState(*last, snap) {
			return true
		}
		last = &snap
		return h.write(conn, requestID, WebSocketMessage{
			Type:      MessageTypeStatus,
			Timestamp: time.Now().UTC(),
			Data:      toStatusResponse(snap),
			RequestID: requestID,
		})
	}

	if !send() {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-h.shutdown:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-sample.C:
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("WebSocket ping failed", "request_id", requestID, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, requestID string, msg WebSocketMessage) bool {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("WebSocket write failed", "request_id", requestID, "error", err)
		return false
	}
	return true
}

func (h *WebSocketHandler) track(delta int) {
	h.mutex.Lock()
	h.clients += delta
	total := h.clients
	h.mutex.Unlock()
	h.logger.Debug("WebSocket clients changed", "total_clients", total)
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients
}

// Shutdown closes every open stream.
func (h *WebSocketHandler) Shutdown() {
	h.once.Do(func() { close(h.shutdown) })
}

// sameState ignores timestamps so an idle job is not re-sent every tick.
func sameState(a, b scanning.Snapshot) bool {
	return a.ScanID == b.ScanID &&
		a.Status == b.Status &&
		a.Progress == b.Progress &&
		a.Message == b.Message &&
		a.CompletedTasks == b.CompletedTasks
}
