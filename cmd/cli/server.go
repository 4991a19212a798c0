package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/modscan/internal/api"
	"github.com/anstrom/modscan/internal/config"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
	"github.com/anstrom/modscan/internal/probe"
	"github.com/anstrom/modscan/internal/scanning"
	"github.com/anstrom/modscan/internal/scheduler"
)

// Timeout constants.
const (
	serviceShutdownTimeout = 10 * time.Second
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the scan service",
		Long: `Run the modscan scan service in the foreground.

The server exposes the HTTP API and the web UI routes, serves Prometheus
metrics and runs the scheduled scans from the configuration file. It stops
on SIGINT or SIGTERM after the running scan has been aborted.`,
		Example: `  modscan server
  modscan server --config /etc/modscan/config.yaml
  modscan server --host 0.0.0.0 --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, logging.Default())
		},
	}

	cmd.Flags().String("host", "", "override api.listen_addr")
	cmd.Flags().Int("port", 0, "override api.port")
	if err := viper.BindPFlag("api.listen_addr", cmd.Flags().Lookup("host")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind host flag: %v\n", err)
	}
	if err := viper.BindPFlag("api.port", cmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind port flag: %v\n", err)
	}
	return cmd
}

// serviceOptions maps configuration onto the scan service settings.
func serviceOptions(cfg *config.Config) scanning.Options {
	s := cfg.Scanning
	return scanning.Options{
		Plan: scanning.PlanOptions{
			DefaultPort:       s.DefaultPort,
			DefaultStationID:  s.DefaultStationID,
			AddressesPerProbe: s.AddressesPerProbe,
			StationMin:        s.StationIDMin,
			StationMax:        s.StationIDMax,
			MaxAddressSpan:    s.MaxAddressSpan,
		},
		ProbeTimeout:  s.ProbeTimeout,
		CheckTimeout:  s.ConnectTimeout + s.ProbeTimeout,
		ProbeInterval: s.ProbeInterval,

		MaxConcurrentChecks: s.MaxConcurrentChecks,
	}
}

// runServer wires the service, API and scheduler and blocks until ctx is done
// or one of them fails.
func runServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting modscan server",
		"version", version,
		"commit", commit,
		"build_time", buildTime,
		"address", cfg.GetAPIAddress())

	m := metrics.New()

	prober := probe.New(probe.Config{
		RequestTimeout: cfg.Scanning.ProbeTimeout,
		ConnectTimeout: cfg.Scanning.ConnectTimeout,
		CheckStationID: byte(cfg.Scanning.DefaultStationID),
	}, logger)
	service := scanning.NewService(prober, serviceOptions(cfg), logger, m)

	sched := scheduler.New(service, logger, m)
	if err := sched.Load(cfg.Schedules); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	apiServer, err := api.New(cfg, service, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Start(gctx)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	fmt.Printf("API server listening on http://%s\n", cfg.GetAPIAddress())
	fmt.Printf("API documentation: http://%s/swagger/\n", cfg.GetAPIAddress())

	runErr := g.Wait()
	if runErr != nil {
		logger.Error("Server stopped with error", "error", runErr)
	} else {
		logger.Info("Received shutdown signal, stopping scan service")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serviceShutdownTimeout)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Scan service did not stop cleanly", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("scan service shutdown: %w", err)
		}
	}

	if runErr == nil {
		fmt.Println("Server stopped successfully")
	}
	return runErr
}
