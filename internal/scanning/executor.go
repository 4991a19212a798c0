package scanning

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
)

const (
	abortedByUser     = "Scan aborted by user"
	abortedByShutdown = "Scan aborted: service shutting down"
)

// Executor runs a plan to completion and records everything in the store.
type Executor struct {
	store        *JobStore
	prober       Prober
	probeTimeout time.Duration
	limiter      *rate.Limiter
	logger       *logging.Logger
	metrics      *metrics.Metrics
}

// NewExecutor creates an executor. A zero interval disables pacing.
func NewExecutor(store *JobStore, prober Prober, probeTimeout, interval time.Duration,
	logger *logging.Logger, m *metrics.Metrics) *Executor {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		store:        store,
		prober:       prober,
		probeTimeout: probeTimeout,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.WithComponent("executor"),
		metrics:      m,
	}
}

// Run executes plan and leaves the store in a terminal state.
func (e *Executor) Run(ctx context.Context, scanID string, plan *Plan) {
	log := e.logger.WithScanID(scanID)
	target := plan.Target.Address()
	started := time.Now()

	e.metrics.ScanStarted()
	log.InfoScan("Scan started", target, "tasks", len(plan.Tasks))

	status, message := e.execute(ctx, log, plan)
	e.store.SetTerminal(status, message)

	elapsed := time.Since(started)
	e.metrics.ScanFinished(string(status), elapsed)
	log.InfoScan("Scan finished", target,
		"status", status,
		"message", message,
		"duration", elapsed)
}

func (e *Executor) execute(ctx context.Context, log *logging.Logger, plan *Plan) (status Status, message string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scan panicked", "panic", r, "stack", string(debug.Stack()))
			status, message = StatusError, fmt.Sprintf("Error: %v", r)
		}
	}()

	target := plan.Target.Address()
	e.store.SetProgress(0, fmt.Sprintf("Connecting to %s...", target))

	session, err := e.prober.Open(ctx, plan.Target)
	if err != nil {
		log.ErrorScan("Cannot connect to target", target, err)
		return StatusFailed, fmt.Sprintf("Connection failed: %v", errors.Cause(err))
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debug("Failed to close session", "error", err)
		}
	}()

	canceled := e.store.Canceled()
	total := len(plan.Tasks)
	for i, task := range plan.Tasks {
		if reason := e.abortReason(ctx); reason != "" {
			return StatusAborted, reason
		}
		if !e.pace(ctx, canceled) {
			return StatusAborted, e.abortReason(ctx)
		}

		e.store.SetProgress(i*100/total, fmt.Sprintf("[%d/%d] %s", i+1, total, task.Describe()))

		outcome, elapsed := e.probe(ctx, session, task)
		e.store.AppendResult(TaskResult{Task: task, Outcome: outcome, Duration: elapsed})
		e.metrics.ProbeObserved(task.MetricLabel(), string(outcome.Kind), elapsed)

		log.Debug("Probe finished",
			"station", task.Station,
			"kind", task.Kind,
			"object_type", task.ObjectType,
			"address", task.Address,
			"count", task.Count,
			"outcome", outcome.Kind,
			"duration", elapsed)
	}

	return StatusCompleted, completionMessage(Summarize(e.store.Results()), plan)
}

// abortReason returns the terminal message for a stopped job, or "" while
// the job may continue.
func (e *Executor) abortReason(ctx context.Context) string {
	if e.store.CancelRequested() {
		return abortedByUser
	}
	if ctx.Err() != nil {
		return abortedByShutdown
	}
	return ""
}

// pace waits for the next probe slot. It returns false if the job is
// stopped or the service shuts down while waiting.
func (e *Executor) pace(ctx context.Context, canceled <-chan struct{}) bool {
	r := e.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-canceled:
	case <-ctx.Done():
	}
	r.Cancel()
	return false
}

func (e *Executor) probe(ctx context.Context, session Session, task ProbeTask) (ProbeOutcome, time.Duration) {
	probeCtx := ctx
	if e.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, e.probeTimeout)
		defer cancel()
	}

	began := time.Now()
	outcome := session.Probe(probeCtx, task)
	return outcome, time.Since(began)
}

func completionMessage(summary Summary, plan *Plan) string {
	msg := fmt.Sprintf("Scan completed: %d succeeded, %d failed", summary.Succeeded, summary.Failed)
	for _, task := range plan.Tasks {
		if task.Kind == TaskPresence {
			return fmt.Sprintf("%s, %d stations found", msg, len(summary.DiscoveredStations))
		}
	}
	return msg
}
