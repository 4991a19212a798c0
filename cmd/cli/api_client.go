package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anstrom/modscan/internal/api/handlers"
	"github.com/anstrom/modscan/internal/scanning"
)

const apiPrefix = "/api/v1"

// APIClient talks to a running modscan server.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// APIError represents an unexpected API response.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the server at serverURL.
func NewAPIClient(serverURL string, timeout time.Duration) *APIClient {
	base := strings.TrimRight(serverURL, "/")
	if !strings.HasSuffix(base, apiPrefix) {
		base += apiPrefix
	}
	return &APIClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		userAgent: "modscan-cli/" + version,
	}
}

// newClientFromFlags builds a client from the --server flag or MODSCAN_SERVER.
func newClientFromFlags() *APIClient {
	timeout := viper.GetDuration("client_timeout")
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return NewAPIClient(viper.GetString("server"), timeout)
}

// Health fetches the server health report.
func (c *APIClient) Health(ctx context.Context) (*handlers.HealthResponse, error) {
	var resp handlers.HealthResponse
	if err := c.request(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitScan submits a scan. Busy and rejected answers are returned as
// responses, not errors, so callers can print their message.
func (c *APIClient) SubmitScan(ctx context.Context, req *handlers.ScanRequest) (*handlers.ScanResponse, error) {
	var resp handlers.ScanResponse
	err := c.request(ctx, http.MethodPost, "/scan", req, &resp, http.StatusBadRequest, http.StatusConflict)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanStatus fetches the current job state.
func (c *APIClient) ScanStatus(ctx context.Context) (*handlers.StatusResponse, error) {
	var resp handlers.StatusResponse
	if err := c.request(ctx, http.MethodGet, "/scan/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanResults fetches the collected probe results.
func (c *APIClient) ScanResults(ctx context.Context) (*handlers.ResultsResponse, error) {
	var resp handlers.ResultsResponse
	if err := c.request(ctx, http.MethodGet, "/scan/results", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopScan requests cancellation of the running job.
func (c *APIClient) StopScan(ctx context.Context) (*handlers.StopResponse, error) {
	var resp handlers.StopResponse
	if err := c.request(ctx, http.MethodPost, "/scan/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestConnection asks the server to check an endpoint.
func (c *APIClient) TestConnection(ctx context.Context, req *handlers.ConnectionTestRequest) (*scanning.ConnectionReport, error) {
	var resp scanning.ConnectionReport
	if err := c.request(ctx, http.MethodPost, "/test-connection", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// request performs one JSON exchange. Responses with a status in accepted
// are decoded into out like a 2xx answer.
func (c *APIClient) request(ctx context.Context, method, endpoint string, payload, out any, accepted ...int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest && !slices.Contains(accepted, resp.StatusCode) {
		return decodeAPIError(resp, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, data []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var body handlers.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && (body.Message != "" || body.Error != "") {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
		if body.RequestID != "" {
			apiErr.RequestID = body.RequestID
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
