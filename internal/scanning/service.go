package scanning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
)

// Options configure a Service.
type Options struct {
	Plan          PlanOptions
	ProbeTimeout  time.Duration
	CheckTimeout  time.Duration
	ProbeInterval time.Duration

	// Connection tests allowed in flight at once.
	MaxConcurrentChecks int
}

// DefaultOptions returns the service defaults.
func DefaultOptions() Options {
	return Options{
		Plan:          DefaultPlanOptions(),
		ProbeTimeout:  3 * time.Second,
		CheckTimeout:  5 * time.Second,
		ProbeInterval: 10 * time.Millisecond,

		MaxConcurrentChecks: DefaultMaxConcurrentChecks,
	}
}

// MessageCheckLimited is reported when a connection test cannot get a slot.
const MessageCheckLimited = "Too many connection tests in progress"

// Ack is returned for an accepted submission.
type Ack struct {
	ScanID     string `json:"scan_id"`
	TotalTasks int    `json:"total_tasks"`
	Message    string `json:"message"`
}

// Service owns the job store and runs at most one scan at a time.
type Service struct {
	store    *JobStore
	executor *Executor
	prober   Prober
	checks   *CheckLimiter
	opts     Options
	logger   *logging.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewService creates a service that probes through prober.
func NewService(prober Prober, opts Options, logger *logging.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	store := NewJobStore()
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:    store,
		executor: NewExecutor(store, prober, opts.ProbeTimeout, opts.ProbeInterval, logger, m),
		prober:   prober,
		checks:   NewCheckLimiter(opts.MaxConcurrentChecks),
		opts:     opts,
		logger:   logger.WithComponent("scan_service"),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates req and starts it in the background. Validation and busy
// errors are returned synchronously and do not touch the current job.
func (s *Service) Submit(req ScanRequest) (*Ack, error) {
	plan, err := BuildPlan(req, s.opts.Plan)
	if err != nil {
		s.metrics.Submission("rejected")
		s.logger.Debug("Scan request rejected", "error", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.metrics.Submission("rejected")
		return nil, errors.ErrShuttingDown
	}

	scanID := uuid.NewString()
	if err := s.store.Begin(scanID, len(plan.Tasks)); err != nil {
		s.metrics.Submission("busy")
		return nil, err
	}
	s.metrics.Submission("started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Run(s.ctx, scanID, plan)
	}()

	return &Ack{
		ScanID:     scanID,
		TotalTasks: len(plan.Tasks),
		Message:    "Scan started successfully",
	}, nil
}

// Validate checks req against the plan rules without starting anything.
func (s *Service) Validate(req ScanRequest) error {
	_, err := BuildPlan(req, s.opts.Plan)
	return err
}

// Status returns the current job state.
func (s *Service) Status() Snapshot {
	return s.store.Snapshot()
}

// Results returns the job state, its results so far, and their summary.
func (s *Service) Results() (Snapshot, []TaskResult, Summary) {
	snap, results := s.store.SnapshotWithResults()
	return snap, results, Summarize(results)
}

// Stop requests cancellation of the running job and reports whether one was running.
func (s *Service) Stop() bool {
	stopping := s.store.RequestCancel()
	if stopping {
		s.logger.Info("Scan stop requested", "scan_id", s.store.Snapshot().ScanID)
	}
	return stopping
}

// TestConnection checks whether target answers protocol requests.
// It is independent of the job state.
func (s *Service) TestConnection(ctx context.Context, target Target) ConnectionReport {
	if target.Port == 0 {
		target.Port = s.opts.Plan.withDefaults().DefaultPort
	}
	if s.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CheckTimeout)
		defer cancel()
	}
	key := target.Address()
	if err := s.checks.Acquire(ctx, key); err != nil {
		s.logger.Warn("Connection test not run", "target", key, "error", err)
		if s.checks.Closed() {
			return ConnectionReport{Message: errors.ErrShuttingDown.Message}
		}
		return ConnectionReport{Message: MessageCheckLimited}
	}
	defer s.checks.Release(key)

	report := s.prober.Check(ctx, target)
	s.logger.Debug("Connection test finished",
		"target", key,
		"available", report.Available,
		"message", report.Message)
	return report
}

// Shutdown stops accepting scans, aborts the running one and waits for it
// to finish or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.checks.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
