// Package handlers provides HTTP request handlers for the modscan API.
// This file implements the scan job endpoints.
package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/modscan/internal/api/middleware"
	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/scanning"
)

// Submission outcomes reported in ScanResponse.Status.
const (
	SubmitStarted  = "started"
	SubmitBusy     = "busy"
	SubmitRejected = "rejected"
)

// Stop outcomes reported in StopResponse.Status.
const (
	StopStopping   = "stopping"
	StopNotRunning = "not_running"
)

// Request defaults applied when a field is left out.
const (
	defaultStartAddress = 0
	defaultEndAddress   = 10
	defaultStationStart = 1
	defaultStationEnd   = 255
)

// ScanService is the job engine as seen by the HTTP layer.
type ScanService interface {
	Submit(req scanning.ScanRequest) (*scanning.Ack, error)
	Status() scanning.Snapshot
	Results() (scanning.Snapshot, []scanning.TaskResult, scanning.Summary)
	Stop() bool
	TestConnection(ctx context.Context, target scanning.Target) scanning.ConnectionReport
}

// ScanRequest is the submit body. Field names follow the original web UI.
type ScanRequest struct {
	IP                 string  `json:"ip"`
	Port               FlexInt `json:"port" validate:"omitempty,min=0,max=65535" swaggertype:"integer"`
	SlaveID            FlexInt `json:"slave_id" validate:"omitempty,min=0,max=255" swaggertype:"integer"`
	StartAddress       FlexInt `json:"start_address" validate:"omitempty,min=0" swaggertype:"integer"`
	EndAddress         FlexInt `json:"end_address" validate:"omitempty,min=0" swaggertype:"integer"`
	ScanRegisters      bool    `json:"scan_registers"`
	ScanCoils          bool    `json:"scan_coils"`
	ScanDiscreteInputs bool    `json:"scan_discrete_inputs"`
	ScanInputRegisters bool    `json:"scan_input_registers"`
	DiscoverSlaveIDs   bool    `json:"discover_slave_ids"`
	SlaveIDStart       FlexInt `json:"slave_id_start" validate:"omitempty,min=0" swaggertype:"integer"`
	SlaveIDEnd         FlexInt `json:"slave_id_end" validate:"omitempty,min=0" swaggertype:"integer"`
}

// ScanResponse answers a submit.
type ScanResponse struct {
	Status     string                `json:"status"`
	Message    string                `json:"message"`
	ScanID     string                `json:"scan_id,omitempty"`
	TotalTasks int                   `json:"total_tasks,omitempty"`
	Kind       errors.ValidationKind `json:"kind,omitempty" swaggertype:"string"`
}

// ConnectionTestRequest is the test-connection body.
type ConnectionTestRequest struct {
	IP   string  `json:"ip"`
	Port FlexInt `json:"port" validate:"omitempty,min=0,max=65535" swaggertype:"integer"`
}

// StatusResponse is the polled job status.
type StatusResponse struct {
	Status         scanning.Status `json:"status" swaggertype:"string"`
	Progress       int             `json:"progress"`
	Message        string          `json:"message"`
	ScanID         string          `json:"scan_id,omitempty"`
	TotalTasks     int             `json:"total_tasks"`
	CompletedTasks int             `json:"completed_tasks"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
}

// TaskResponse is one executed probe.
type TaskResponse struct {
	Station    int                   `json:"station"`
	Kind       scanning.TaskKind     `json:"kind" swaggertype:"string"`
	ObjectType scanning.ObjectType   `json:"objectType,omitempty" swaggertype:"string"`
	Address    int                   `json:"address"`
	Count      int                   `json:"count"`
	DurationMS int64                 `json:"duration_ms"`
	Outcome    scanning.ProbeOutcome `json:"outcome"`
}

// ResultsResponse lists the results collected so far.
type ResultsResponse struct {
	ScanID  string           `json:"scan_id,omitempty"`
	Status  scanning.Status  `json:"status" swaggertype:"string"`
	Message string           `json:"message"`
	Tasks   []TaskResponse   `json:"tasks"`
	Summary scanning.Summary `json:"summary"`
}

// StopResponse answers a stop request.
type StopResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ScanHandler handles scan job endpoints.
type ScanHandler struct {
	service        ScanService
	logger         *slog.Logger
	validator      *validator.Validate
	maxRequestSize int64
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(service ScanService, logger *slog.Logger, maxRequestSize int64) *ScanHandler {
	return &ScanHandler{
		service:        service,
		logger:         logger.With("handler", "scan"),
		validator:      newValidator(),
		maxRequestSize: maxRequestSize,
	}
}

// SubmitScan handles POST /scan.
func (h *ScanHandler) SubmitScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var req ScanRequest
	if err := parseJSON(r, &req, h.maxRequestSize); err != nil {
		h.reject(w, r, errors.KindMalformedRequest, err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.reject(w, r, errors.KindMalformedRequest, describeValidation(err))
		return
	}

	ack, err := h.service.Submit(toScanRequest(req))
	switch {
	case err == nil:
		h.logger.Info("Scan started",
			"request_id", requestID,
			"scan_id", ack.ScanID,
			"target", req.IP,
			"total_tasks", ack.TotalTasks)
		writeJSON(w, r, http.StatusOK, ScanResponse{
			Status:     SubmitStarted,
			Message:    ack.Message,
			ScanID:     ack.ScanID,
			TotalTasks: ack.TotalTasks,
		})
	case errors.IsBusy(err):
		writeJSON(w, r, http.StatusConflict, ScanResponse{
			Status:  SubmitBusy,
			Message: "Scan already in progress",
		})
	case errors.IsValidation(err):
		var ve *errors.ValidationError
		msg := err.Error()
		if stderrors.As(err, &ve) {
			msg = ve.Message
		}
		h.reject(w, r, errors.ValidationKindOf(err), msg)
	case errors.IsCode(err, errors.CodeCanceled):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		h.logger.Error("Scan submit failed", "request_id", requestID, "error", err)
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (h *ScanHandler) reject(w http.ResponseWriter, r *http.Request, kind errors.ValidationKind, msg string) {
	h.logger.Debug("Scan request rejected",
		"request_id", middleware.GetRequestID(r),
		"kind", kind,
		"reason", msg)
	writeJSON(w, r, http.StatusBadRequest, ScanResponse{
		Status:  SubmitRejected,
		Message: msg,
		Kind:    kind,
	})
}

// ScanStatus handles GET /scan/status.
func (h *ScanHandler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toStatusResponse(h.service.Status()))
}

// ScanResults handles GET /scan/results. Results are partial while the job runs.
func (h *ScanHandler) ScanResults(w http.ResponseWriter, r *http.Request) {
	snap, results, summary := h.service.Results()

	tasks := make([]TaskResponse, len(results))
	for i, res := range results {
		tasks[i] = TaskResponse{
			Station:    res.Task.Station,
			Kind:       res.Task.Kind,
			ObjectType: res.Task.ObjectType,
			Address:    res.Task.Address,
			Count:      res.Task.Count,
			DurationMS: res.Duration.Milliseconds(),
			Outcome:    res.Outcome,
		}
	}

	writeJSON(w, r, http.StatusOK, ResultsResponse{
		ScanID:  snap.ScanID,
		Status:  snap.Status,
		Message: snap.Message,
		Tasks:   tasks,
		Summary: summary,
	})
}

// StopScan handles POST /scan/stop.
func (h *ScanHandler) StopScan(w http.ResponseWriter, r *http.Request) {
	if !h.service.Stop() {
		writeJSON(w, r, http.StatusOK, StopResponse{
			Status:  StopNotRunning,
			Message: "No scan is running",
		})
		return
	}

	h.logger.Info("Scan stop requested", "request_id", middleware.GetRequestID(r))
	writeJSON(w, r, http.StatusOK, StopResponse{
		Status:  StopStopping,
		Message: "Scan stop requested",
	})
}

// TestConnection handles POST /test-connection.
func (h *ScanHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionTestRequest
	if err := parseJSON(r, &req, h.maxRequestSize); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.NewValidationError(errors.KindMalformedRequest, "%s", describeValidation(err)))
		return
	}
	host := strings.TrimSpace(req.IP)
	if host == "" {
		writeError(w, r, http.StatusBadRequest, errors.NewValidationError(errors.KindMissingTarget, "IP address is required"))
		return
	}

	report := h.service.TestConnection(r.Context(), scanning.Target{Host: host, Port: req.Port.Or(0)})
	h.logger.Debug("Connection test finished",
		"request_id", middleware.GetRequestID(r),
		"target", host,
		"available", report.Available)
	writeJSON(w, r, http.StatusOK, report)
}

func toScanRequest(req ScanRequest) scanning.ScanRequest {
	return scanning.ScanRequest{
		Target: scanning.Target{
			Host: strings.TrimSpace(req.IP),
			Port: req.Port.Or(0),
		},
		StationID:        req.SlaveID.Ptr(),
		StartAddress:     req.StartAddress.Or(defaultStartAddress),
		EndAddress:       req.EndAddress.Or(defaultEndAddress),
		HoldingRegisters: req.ScanRegisters,
		Coils:            req.ScanCoils,
		DiscreteInputs:   req.ScanDiscreteInputs,
		InputRegisters:   req.ScanInputRegisters,
		Discovery: scanning.Discovery{
			Enabled: req.DiscoverSlaveIDs,
			Range: scanning.StationRange{
				Start: req.SlaveIDStart.Or(defaultStationStart),
				End:   req.SlaveIDEnd.Or(defaultStationEnd),
			},
		},
	}
}

func toStatusResponse(snap scanning.Snapshot) StatusResponse {
	return StatusResponse{
		Status:         snap.Status,
		Progress:       snap.Progress,
		Message:        snap.Message,
		ScanID:         snap.ScanID,
		TotalTasks:     snap.TotalTasks,
		CompletedTasks: snap.CompletedTasks,
		StartedAt:      snap.StartedAt,
		FinishedAt:     snap.FinishedAt,
	}
}
