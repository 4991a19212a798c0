// Package scheduler submits recurring scans from configuration.
// Each schedule fires on a standard 5-field cron expression and hands its
// request to the scan service through the same busy gate as API clients.
// A trigger that finds a job running is counted and dropped, never queued.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/modscan/internal/config"
	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
	"github.com/anstrom/modscan/internal/scanning"
)

// Trigger results recorded per run.
const (
	ResultStarted  = "started"
	ResultBusy     = "busy"
	ResultRejected = "rejected"
	ResultFailed   = "error"
)

// Submitter accepts scan requests. Validate lets schedules be checked
// when they are added instead of on every trigger.
type Submitter interface {
	Submit(req scanning.ScanRequest) (*scanning.Ack, error)
	Validate(req scanning.ScanRequest) error
}

// Scheduler manages scheduled scan jobs.
type Scheduler struct {
	cron      *cron.Cron
	submitter Submitter
	logger    *logging.Logger
	metrics   *metrics.Metrics
	jobs      map[string]*ScheduledJob
	mu        sync.RWMutex
	running   bool
}

// ScheduledJob is the in-memory state of one schedule.
type ScheduledJob struct {
	Name       string
	Cron       string
	CronID     cron.EntryID
	Request    scanning.ScanRequest
	LastRun    time.Time
	LastResult string
	LastScanID string
	NextRun    time.Time
}

// New creates a scheduler that submits to submitter.
func New(submitter Submitter, logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		submitter: submitter,
		logger:    logger.WithComponent("scheduler"),
		metrics:   m,
		jobs:      make(map[string]*ScheduledJob),
	}
}

// Load registers every enabled schedule. The first invalid entry aborts
// loading and is returned with its name.
func (s *Scheduler) Load(schedules []config.ScheduleConfig) error {
	for _, sc := range schedules {
		if !sc.Enabled {
			s.logger.Debug("Skipping disabled schedule", "schedule", sc.Name)
			continue
		}
		req, err := ToScanRequest(sc.Request)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
		if err := s.AddScanJob(sc.Name, sc.Cron, req); err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
	}
	return nil
}

// AddScanJob registers a recurring scan under a unique name.
func (s *Scheduler) AddScanJob(name, cronExpr string, req scanning.ScanRequest) error {
	if name == "" {
		return fmt.Errorf("schedule name is required")
	}
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if err := s.submitter.Validate(req); err != nil {
		return fmt.Errorf("invalid scan request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("schedule %q already exists", name)
	}

	job := &ScheduledJob{
		Name:    name,
		Cron:    cronExpr,
		Request: req,
		NextRun: schedule.Next(time.Now()),
	}
	job.CronID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.execute(name)
	}))
	s.jobs[name] = job

	s.logger.Info("Added scheduled scan", "schedule", name, "cron", cronExpr, "target", req.Target.String())
	return nil
}

// RemoveJob unregisters a schedule.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("schedule %q not found", name)
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, name)

	s.logger.Info("Removed scheduled scan", "schedule", name)
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts the cron loop and waits for in-flight triggers, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("Scheduler stopped")
}

// Run starts the scheduler and stops it when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	return nil
}

// RunNow fires the named schedule immediately and returns its trigger result.
func (s *Scheduler) RunNow(name string) (string, error) {
	s.mu.RLock()
	_, exists := s.jobs[name]
	s.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("schedule %q not found", name)
	}
	return s.execute(name), nil
}

// Jobs returns a copy of the registered schedules sorted by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		entry := *job
		if e := s.cron.Entry(job.CronID); e.Valid() && !e.Next.IsZero() {
			entry.NextRun = e.Next
		}
		jobs = append(jobs, entry)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

func (s *Scheduler) execute(name string) string {
	s.mu.RLock()
	job, exists := s.jobs[name]
	if !exists {
		s.mu.RUnlock()
		return ""
	}
	req := job.Request
	s.mu.RUnlock()

	ack, err := s.submitter.Submit(req)
	result := classify(err)

	switch result {
	case ResultStarted:
		s.logger.Info("Scheduled scan started", "schedule", name, "scan_id", ack.ScanID, "tasks", ack.TotalTasks)
	case ResultBusy:
		s.logger.Warn("Scheduled scan skipped, a scan is already running", "schedule", name)
	default:
		s.logger.Error("Scheduled scan not started", "schedule", name, "result", result, "error", err)
	}
	s.metrics.ScheduledRun(name, result)

	s.mu.Lock()
	if job, exists := s.jobs[name]; exists {
		job.LastRun = time.Now()
		job.LastResult = result
		if ack != nil {
			job.LastScanID = ack.ScanID
		}
	}
	s.mu.Unlock()

	return result
}

func classify(err error) string {
	switch {
	case err == nil:
		return ResultStarted
	case errors.IsBusy(err):
		return ResultBusy
	case errors.IsValidation(err):
		return ResultRejected
	default:
		return ResultFailed
	}
}

// ToScanRequest converts the configuration form of a request.
// A zero station ID selects the service default and a zero discovery range
// selects stations 1-255.
func ToScanRequest(spec config.ScheduledScanSpec) (scanning.ScanRequest, error) {
	req := scanning.ScanRequest{
		Target:       scanning.Target{Host: spec.Host, Port: spec.Port},
		StartAddress: spec.StartAddress,
		EndAddress:   spec.EndAddress,
	}
	if spec.StationID != 0 {
		id := spec.StationID
		req.StationID = &id
	}

	var errs []error
	for _, name := range spec.ObjectTypes {
		ot, err := scanning.ParseObjectType(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		req.Select(ot)
	}
	if len(errs) > 0 {
		return scanning.ScanRequest{}, stderrors.Join(errs...)
	}

	if spec.DiscoverEnable {
		req.Discovery.Enabled = true
		req.Discovery.Range = scanning.StationRange{Start: spec.DiscoverFrom, End: spec.DiscoverTo}
		if spec.DiscoverFrom == 0 && spec.DiscoverTo == 0 {
			req.Discovery.Range = scanning.StationRange{Start: 1, End: 255}
		}
	}
	return req, nil
}
