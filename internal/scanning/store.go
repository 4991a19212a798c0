package scanning

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/modscan/internal/errors"
)

const idleMessage = "No scan has been run"

// JobStore holds the state of the single scan job. Writers are the
// executor goroutine and the submit gate; readers get copies.
type JobStore struct {
	mu         sync.RWMutex
	id         string
	status     Status
	progress   int
	message    string
	total      int
	results    []TaskResult
	startedAt  time.Time
	finishedAt time.Time

	cancel   atomic.Bool
	canceled chan struct{}
}

// NewJobStore creates an idle store.
func NewJobStore() *JobStore {
	return &JobStore{status: StatusIdle, message: idleMessage, canceled: make(chan struct{})}
}

// Begin resets the store for a new job. It fails with ErrBusy while a job
// is running and leaves the current state untouched in that case.
func (s *JobStore) Begin(id string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning {
		return errors.ErrBusy
	}

	s.id = id
	s.status = StatusRunning
	s.progress = 0
	s.message = "Starting..."
	s.total = total
	s.results = make([]TaskResult, 0, total)
	s.startedAt = time.Now()
	s.finishedAt = time.Time{}
	s.cancel.Store(false)
	s.canceled = make(chan struct{})
	return nil
}

// SetProgress updates progress and message of the running job. Progress
// never moves backwards and stays below 100 until the job completes.
func (s *JobStore) SetProgress(pct int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return
	}
	pct = min(max(pct, s.progress), 99)
	s.progress = pct
	s.message = message
}

// AppendResult records a finished task.
func (s *JobStore) AppendResult(result TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return
	}
	s.results = append(s.results, result)
}

// SetTerminal moves the running job to a terminal status.
func (s *JobStore) SetTerminal(status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning || !status.IsTerminal() {
		return
	}
	s.status = status
	s.message = message
	s.finishedAt = time.Now()
	if status == StatusCompleted {
		s.progress = 100
	}
}

// RequestCancel asks the running job to stop at the next task boundary.
// It reports whether a job was running. Repeated calls are harmless.
func (s *JobStore) RequestCancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return false
	}
	if !s.cancel.Swap(true) {
		close(s.canceled)
	}
	return true
}

// Canceled returns a channel that is closed when cancellation is requested
// for the job started by the latest Begin.
func (s *JobStore) Canceled() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canceled
}

// CancelRequested reports whether cancellation was requested for the current job.
func (s *JobStore) CancelRequested() bool {
	return s.cancel.Load()
}

// Snapshot returns a copy of the job state.
func (s *JobStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Results returns a copy of the recorded results.
func (s *JobStore) Results() []TaskResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.resultsLocked()
}

// SnapshotWithResults returns state and results taken under one lock.
func (s *JobStore) SnapshotWithResults() (Snapshot, []TaskResult) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked(), s.resultsLocked()
}

func (s *JobStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		ScanID:         s.id,
		Status:         s.status,
		Progress:       s.progress,
		Message:        s.message,
		TotalTasks:     s.total,
		CompletedTasks: len(s.results),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		snap.StartedAt = &started
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

func (s *JobStore) resultsLocked() []TaskResult {
	out := make([]TaskResult, len(s.results))
	for i, r := range s.results {
		if r.Outcome.Values != nil {
			r.Outcome.Values = append([]uint16(nil), r.Outcome.Values...)
		}
		out[i] = r
	}
	return out
}
