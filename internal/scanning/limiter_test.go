package scanning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimiter_Acquire(t *testing.T) {
	t.Run("successful acquisition", func(t *testing.T) {
		l := NewCheckLimiter(5)

		require.NoError(t, l.Acquire(context.Background(), "10.0.0.1:502"))
		assert.Equal(t, 1, l.InFlight())
		assert.Equal(t, 4, l.Available())

		l.Release("10.0.0.1:502")
		assert.Equal(t, 0, l.InFlight())
	})

	t.Run("exhaustion blocks until context expires", func(t *testing.T) {
		l := NewCheckLimiter(2)
		ctx := context.Background()

		require.NoError(t, l.Acquire(ctx, "a:502"))
		require.NoError(t, l.Acquire(ctx, "b:502"))

		ctx3, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, l.Acquire(ctx3, "c:502"), context.DeadlineExceeded)

		l.Release("a:502")
		require.NoError(t, l.Acquire(ctx, "c:502"))
	})

	t.Run("same endpoint twice", func(t *testing.T) {
		l := NewCheckLimiter(3)
		ctx := context.Background()

		require.NoError(t, l.Acquire(ctx, "plc:502"))
		require.NoError(t, l.Acquire(ctx, "plc:502"))
		assert.Equal(t, 2, l.InFlight())
		assert.Equal(t, 1, l.Endpoints())

		l.Release("plc:502")
		assert.Equal(t, 1, l.InFlight())
		assert.Equal(t, 1, l.Endpoints())

		l.Release("plc:502")
		assert.Equal(t, 0, l.Endpoints())
	})

	t.Run("zero capacity becomes one", func(t *testing.T) {
		l := NewCheckLimiter(0)
		assert.Equal(t, 1, l.Available())
	})
}

func TestCheckLimiter_ReleaseUnknown(t *testing.T) {
	l := NewCheckLimiter(1)
	l.Release("never-acquired")
	assert.Equal(t, 1, l.Available())
	require.NoError(t, l.Acquire(context.Background(), "x"))
}

func TestCheckLimiter_Close(t *testing.T) {
	l := NewCheckLimiter(1)
	l.Close()
	assert.True(t, l.Closed())
	assert.Error(t, l.Acquire(context.Background(), "x"))
}

func TestCheckLimiter_Concurrent(t *testing.T) {
	l := NewCheckLimiter(3)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background(), "plc:502"))
			mu.Lock()
			if n := l.InFlight(); n > maxSeen {
				maxSeen = n
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			l.Release("plc:502")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, 3)
	assert.Equal(t, 0, l.InFlight())
}
