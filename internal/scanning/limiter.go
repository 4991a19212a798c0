package scanning

import (
	"context"
	"fmt"
	"sync"
)

// DefaultMaxConcurrentChecks bounds connection tests running at once.
const DefaultMaxConcurrentChecks = 4

// CheckLimiter bounds the number of connection tests in flight. Tests run
// outside the single-job gate, so without a limit every API caller could
// open its own connection to a field device.
type CheckLimiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]int
	inFlight  int
	mutex     sync.RWMutex
	closed    bool
}

// NewCheckLimiter creates a limiter with the given number of slots.
func NewCheckLimiter(capacity int) *CheckLimiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &CheckLimiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]int),
	}
}

// Acquire takes a slot for the endpoint key. It blocks until a slot frees up
// or ctx is done.
func (l *CheckLimiter) Acquire(ctx context.Context, key string) error {
	l.mutex.RLock()
	closed := l.closed
	l.mutex.RUnlock()
	if closed {
		return fmt.Errorf("check limiter is closed")
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mutex.Lock()
		l.active[key]++
		l.inFlight++
		l.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the slot held for key.
func (l *CheckLimiter) Release(key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.active[key] == 0 {
		return
	}
	l.active[key]--
	if l.active[key] == 0 {
		delete(l.active, key)
	}
	l.inFlight--

	select {
	case <-l.semaphore:
	default:
	}
}

// InFlight returns the number of held slots.
func (l *CheckLimiter) InFlight() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.inFlight
}

// Available returns the number of free slots.
func (l *CheckLimiter) Available() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.capacity - l.inFlight
}

// Close makes further Acquire calls fail.
func (l *CheckLimiter) Close() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.closed = true
}

// Endpoints returns the number of distinct endpoints being checked.
func (l *CheckLimiter) Endpoints() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.active)
}

// Closed reports whether Close was called.
func (l *CheckLimiter) Closed() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.closed
}
