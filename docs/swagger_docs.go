// Package docs holds the swaggo annotations for the modscan API.
//
// Run `swag init` to regenerate the OpenAPI specification in ./swagger.
//
//go:generate swag init -g swagger_docs.go -o ./swagger --parseDependency --parseInternal
package docs

import (
	"net/http"
)

// @title modscan API
// @version 1.0.0
// @description Modbus TCP scan service. A client submits one scan job at a time,
// @description polls its status and fetches the per-probe results.
// @description
// @description Scan routes are also served at the root paths used by the web UI:
// @description `/scan`, `/scan_status`, `/scan_results`, `/stop_scan` and `/modbus_test`.
//
// @contact.name modscan maintainers
// @contact.url https://github.com/anstrom/modscan
//
// @license.name MIT
// @license.url https://github.com/anstrom/modscan/blob/main/LICENSE
//
// @host localhost:8080
// @BasePath /api/v1

// Health godoc
// @Summary Health check
// @Description Returns service liveness and the current scan job state
// @Tags System
// @Produce json
// @Success 200 {object} handlers.HealthResponse
// @Router /health [get]
// @ID getHealth
func Health(_ http.ResponseWriter, _ *http.Request) {}

// Version godoc
// @Summary Version information
// @Description Returns version and build information
// @Tags System
// @Produce json
// @Success 200 {object} handlers.VersionResponse
// @Router /version [get]
// @ID getVersion
func Version(_ http.ResponseWriter, _ *http.Request) {}

// SubmitScan godoc
// @Summary Submit scan
// @Description Validates the request, builds the probe plan and starts the job in the background.
// @Description Numeric fields accept numbers or numeric strings.
// @Tags Scan
// @Accept json
// @Produce json
// @Param scan body handlers.ScanRequest true "Scan request"
// @Success 200 {object} handlers.ScanResponse "status=started"
// @Failure 400 {object} handlers.ScanResponse "status=rejected"
// @Failure 409 {object} handlers.ScanResponse "status=busy"
// @Failure 503 {object} handlers.ErrorResponse
// @Router /scan [post]
// @ID submitScan
func SubmitScan(_ http.ResponseWriter, _ *http.Request) {}

// ScanStatus godoc
// @Summary Scan status
// @Description Returns the status, progress and message of the current or last job
// @Tags Scan
// @Produce json
// @Success 200 {object} handlers.StatusResponse
// @Router /scan/status [get]
// @ID getScanStatus
func ScanStatus(_ http.ResponseWriter, _ *http.Request) {}

// ScanResults godoc
// @Summary Scan results
// @Description Returns the probe results collected so far. Partial while the job runs.
// @Tags Scan
// @Produce json
// @Success 200 {object} handlers.ResultsResponse
// @Router /scan/results [get]
// @ID getScanResults
func ScanResults(_ http.ResponseWriter, _ *http.Request) {}

// StopScan godoc
// @Summary Stop scan
// @Description Requests cancellation of the running job. Observed before the next probe.
// @Tags Scan
// @Produce json
// @Success 200 {object} handlers.StopResponse
// @Router /scan/stop [post]
// @ID stopScan
func StopScan(_ http.ResponseWriter, _ *http.Request) {}

// StatusStream godoc
// @Summary Status stream
// @Description WebSocket that pushes a status snapshot on connect and on every change
// @Tags Scan
// @Success 101 {object} handlers.WebSocketMessage
// @Router /scan/ws [get]
// @ID streamScanStatus
func StatusStream(_ http.ResponseWriter, _ *http.Request) {}

// TestConnection godoc
// @Summary Test connection
// @Description Checks whether the endpoint accepts TCP connections and answers Modbus reads
// @Tags Scan
// @Accept json
// @Produce json
// @Param target body handlers.ConnectionTestRequest true "Endpoint"
// @Success 200 {object} scanning.ConnectionReport
// @Failure 400 {object} handlers.ErrorResponse
// @Router /test-connection [post]
// @ID testConnection
func TestConnection(_ http.ResponseWriter, _ *http.Request) {}
