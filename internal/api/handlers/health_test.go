package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/modscan/internal/scanning"
)

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name      string
		service   ScanService
		wantCheck string
	}{
		{"idle service", newFakeService(), string(scanning.StatusIdle)},
		{"no service", nil, StatusNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.service, createTestLogger())

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, StatusHealthy, resp.Status)
			assert.Equal(t, tt.wantCheck, resp.Checks["scan_job"])
			assert.NotEmpty(t, resp.Uptime)
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	SetBuildInfo("1.2.3", "abc123", "2026-01-01T00:00:00Z")
	t.Cleanup(func() { SetBuildInfo("dev", "unknown", "unknown") })

	h := NewHealthHandler(nil, createTestLogger())
	rec := httptest.NewRecorder()
	h.Version(rec, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abc123", resp.Commit)
	assert.Equal(t, "2026-01-01T00:00:00Z", resp.BuildTime)
	assert.Equal(t, runtime.Version(), resp.GoVersion)
}
