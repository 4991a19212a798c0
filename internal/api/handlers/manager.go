// Package handlers provides HTTP request handlers for the modscan API.
// This package implements the REST endpoint handlers for the scan job,
// the connection test, the status stream and service health.
package handlers

import (
	"log/slog"
	"net/http"
	"time"
)

// Options carries the server settings the handlers need.
type Options struct {
	MaxRequestSize int64
	StreamInterval time.Duration
}

// HandlerManager manages all API handlers and their dependencies.
type HandlerManager struct {
	logger *slog.Logger

	// Individual handler groups
	health    *HealthHandler
	scan      *ScanHandler
	websocket *WebSocketHandler
}

// New creates a new handler manager with all handler groups initialized.
func New(service ScanService, opts Options, logger *slog.Logger) *HandlerManager {
	return &HandlerManager{
		logger:    logger,
		health:    NewHealthHandler(service, logger),
		scan:      NewScanHandler(service, logger, opts.MaxRequestSize),
		websocket: NewWebSocketHandler(service, logger, opts.StreamInterval),
	}
}

// Health handles GET /health.
func (hm *HandlerManager) Health(w http.ResponseWriter, r *http.Request) {
	hm.health.Health(w, r)
}

// Version handles GET /version.
func (hm *HandlerManager) Version(w http.ResponseWriter, r *http.Request) {
	hm.health.Version(w, r)
}

// SubmitScan handles POST /scan.
func (hm *HandlerManager) SubmitScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.SubmitScan(w, r)
}

// ScanStatus handles GET /scan/status.
func (hm *HandlerManager) ScanStatus(w http.ResponseWriter, r *http.Request) {
	hm.scan.ScanStatus(w, r)
}

// ScanResults handles GET /scan/results.
func (hm *HandlerManager) ScanResults(w http.ResponseWriter, r *http.Request) {
	hm.scan.ScanResults(w, r)
}

// StopScan handles POST /scan/stop.
func (hm *HandlerManager) StopScan(w http.ResponseWriter, r *http.Request) {
	hm.scan.StopScan(w, r)
}

// TestConnection handles POST /test-connection.
func (hm *HandlerManager) TestConnection(w http.ResponseWriter, r *http.Request) {
	hm.scan.TestConnection(w, r)
}

// StatusWebSocket handles GET /scan/ws.
func (hm *HandlerManager) StatusWebSocket(w http.ResponseWriter, r *http.Request) {
	hm.websocket.StatusWebSocket(w, r)
}

// Shutdown closes open status streams.
func (hm *HandlerManager) Shutdown() {
	hm.websocket.Shutdown()
}
