// Package handlers provides HTTP request handlers for the modscan API.
// This file implements health check and version endpoints.
package handlers

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusNotConfigured = "not configured"
)

// Build information, set by the main package.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// SetBuildInfo sets build information (called by main package).
func SetBuildInfo(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}

// HealthHandler handles health check and version endpoints.
type HealthHandler struct {
	service   ScanService
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(service ScanService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service:   service,
		logger:    logger.With("handler", "health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports liveness and the state of the scan job.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested", "remote_addr", r.RemoteAddr)

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string),
	}

	if h.service != nil {
		response.Checks["scan_job"] = string(h.service.Status().Status)
	} else {
		response.Checks["scan_job"] = StatusNotConfigured
	}

	writeJSON(w, r, http.StatusOK, response)
}

// Version provides version information.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}
