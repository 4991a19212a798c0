// Package api provides the HTTP REST API for the modscan scan service.
// It exposes scan submission, status polling, results, stop and the
// connection test, plus health, version, metrics and API docs.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/modscan/docs/swagger" // Import generated swagger docs
	apihandlers "github.com/anstrom/modscan/internal/api/handlers"
	"github.com/anstrom/modscan/internal/api/middleware"
	"github.com/anstrom/modscan/internal/config"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
)

// Server timeout constants.
const (
	serverShutdownTimeout = 30 * time.Second
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handlers   *apihandlers.HandlerManager
	config     config.APIConfig
	logger     *logging.Logger
	metrics    *metrics.Metrics
	startTime  time.Time
}

// New creates a new API server instance around the scan service.
func New(cfg *config.Config, service apihandlers.ScanService, logger *logging.Logger, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if service == nil {
		return nil, fmt.Errorf("scan service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("api")

	server := &Server{
		router:    mux.NewRouter(),
		config:    cfg.API,
		logger:    logger,
		metrics:   m,
		startTime: time.Now(),
		handlers: apihandlers.New(service, apihandlers.Options{
			MaxRequestSize: cfg.API.MaxRequestSize,
			StreamInterval: cfg.API.StreamInterval,
		}, logger.Logger),
	}

	// Setup routes
	server.setupRoutes()

	// Setup middleware
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         cfg.GetAPIAddress(),
		Handler:      server.rootHandler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	return server, nil
}

// Start starts the API server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting API server",
		"address", ln.Addr().String(),
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	s.handlers.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes. Scan routes are served under
// /api/v1 and at the root paths the web UI uses.
func (s *Server) setupRoutes() {
	h := s.handlers

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	api.HandleFunc("/version", h.Version).Methods(http.MethodGet)

	// Scan job
	api.HandleFunc("/scan", h.SubmitScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/status", h.ScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan/results", h.ScanResults).Methods(http.MethodGet)
	api.HandleFunc("/scan/stop", h.StopScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/ws", h.StatusWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/test-connection", h.TestConnection).Methods(http.MethodPost)

	// Web UI paths
	s.router.HandleFunc("/scan", h.SubmitScan).Methods(http.MethodPost)
	s.router.HandleFunc("/scan_status", h.ScanStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/scan_results", h.ScanResults).Methods(http.MethodGet)
	s.router.HandleFunc("/stop_scan", h.StopScan).Methods(http.MethodPost)
	s.router.HandleFunc("/modbus_test", h.TestConnection).Methods(http.MethodPost)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	// Swagger documentation endpoints
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	))

	// Documentation aliases
	s.router.HandleFunc("/docs", s.redirectToSwagger).Methods(http.MethodGet)
	s.router.HandleFunc("/docs/", s.redirectToSwagger).Methods(http.MethodGet)

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// setupMiddleware configures middleware for matched routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.ContentType())
}

// rootHandler wraps the router in CORS so preflight requests are answered
// before route matching.
func (s *Server) rootHandler() http.Handler {
	if !s.config.CORS.Enabled {
		return s.router
	}
	return handlers.CORS(
		handlers.AllowedOrigins(s.config.CORS.AllowedOrigins),
		handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
	)(s.router)
}

// index returns API information for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "modscan API",
		"version": "v1",
		"endpoints": map[string]string{
			"scan":            "/api/v1/scan",
			"status":          "/api/v1/scan/status",
			"results":         "/api/v1/scan/results",
			"stop":            "/api/v1/scan/stop",
			"test_connection": "/api/v1/test-connection",
			"stream":          "/api/v1/scan/ws",
			"health":          "/api/v1/health",
			"metrics":         "/metrics",
			"docs":            "/swagger/",
		},
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}, s.logger)
}

// redirectToSwagger redirects to the Swagger UI.
func (s *Server) redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Handler returns the full handler chain, CORS included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}, logger *logging.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}
