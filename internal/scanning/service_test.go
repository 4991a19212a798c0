package scanning_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/metrics"
	"github.com/anstrom/modscan/internal/scanning"
	"github.com/anstrom/modscan/internal/scanning/mocks"
)

var testTarget = scanning.Target{Host: "192.0.2.10", Port: 502}

func testOptions() scanning.Options {
	opts := scanning.DefaultOptions()
	opts.ProbeInterval = 0
	opts.ProbeTimeout = time.Second
	return opts
}

func newService(t *testing.T, prober scanning.Prober, opts scanning.Options) *scanning.Service {
	t.Helper()
	logger := logging.NewWithWriter(logging.Config{Level: logging.LevelError, Format: logging.FormatText}, io.Discard)
	svc := scanning.NewService(prober, opts, logger, metrics.New())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitTerminal(t *testing.T, svc *scanning.Service) scanning.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return svc.Status().Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return svc.Status()
}

func registers(start, end int) scanning.ScanRequest {
	return scanning.ScanRequest{
		Target:           testTarget,
		StartAddress:     start,
		EndAddress:       end,
		HoldingRegisters: true,
	}
}

// fakeSession is used where a generated mock cannot express the behaviour,
// such as panicking inside a probe.
type fakeSession struct {
	probe func(ctx context.Context, task scanning.ProbeTask) scanning.ProbeOutcome
}

func (f *fakeSession) Probe(ctx context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
	return f.probe(ctx, task)
}

func (f *fakeSession) Close() error { return nil }

type fakeProber struct {
	session scanning.Session
}

func (f *fakeProber) Open(context.Context, scanning.Target) (scanning.Session, error) {
	return f.session, nil
}

func (f *fakeProber) Check(context.Context, scanning.Target) scanning.ConnectionReport {
	return scanning.ConnectionReport{}
}

func TestService_CompletesAllTasks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	session := mocks.NewMockSession(ctrl)

	prober.EXPECT().Open(gomock.Any(), testTarget).Return(session, nil)
	session.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
			return scanning.Success(uint16(task.Address * 10))
		}).Times(10)
	session.EXPECT().Close().Return(nil)

	svc := newService(t, prober, testOptions())
	ack, err := svc.Submit(registers(0, 10))
	require.NoError(t, err)
	assert.NotEmpty(t, ack.ScanID)
	assert.Equal(t, 10, ack.TotalTasks)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusCompleted, snap.Status)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, ack.ScanID, snap.ScanID)
	assert.Equal(t, "Scan completed: 10 succeeded, 0 failed", snap.Message)

	_, results, summary := svc.Results()
	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, i, r.Task.Address)
		assert.Equal(t, []uint16{uint16(i * 10)}, r.Outcome.Values)
	}
	assert.Equal(t, 10, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_ProbeFailuresDoNotStopTheScan(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	session := mocks.NewMockSession(ctrl)

	prober.EXPECT().Open(gomock.Any(), gomock.Any()).Return(session, nil)
	session.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
			switch task.Address {
			case 1:
				return scanning.Timeout("no response")
			case 2:
				return scanning.ProtocolError(0x02, "illegal data address")
			case 3:
				return scanning.ConnectionError("connection reset by peer")
			}
			return scanning.Success(1)
		}).Times(5)
	session.EXPECT().Close().Return(nil)

	svc := newService(t, prober, testOptions())
	_, err := svc.Submit(registers(0, 5))
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusCompleted, snap.Status)
	assert.Equal(t, "Scan completed: 2 succeeded, 3 failed", snap.Message)

	_, results, summary := svc.Results()
	require.Len(t, results, 5)
	assert.Equal(t, scanning.OutcomeProtocolError, results[2].Outcome.Kind)
	assert.Equal(t, byte(0x02), results[2].Outcome.ExceptionCode)
	assert.Equal(t, 1, summary.Timeouts)
	assert.Equal(t, 1, summary.ProtocolErrors)
	assert.Equal(t, 1, summary.ConnectionErrors)

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_Discovery(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	session := mocks.NewMockSession(ctrl)

	prober.EXPECT().Open(gomock.Any(), gomock.Any()).Return(session, nil)
	session.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
			if task.Station == 2 || task.Station == 4 {
				return scanning.Success()
			}
			return scanning.Timeout("no response")
		}).Times(5)
	session.EXPECT().Close().Return(nil)

	svc := newService(t, prober, testOptions())
	_, err := svc.Submit(scanning.ScanRequest{
		Target:    testTarget,
		Discovery: scanning.Discovery{Enabled: true, Range: scanning.StationRange{Start: 1, End: 5}},
	})
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, "Scan completed: 2 succeeded, 3 failed, 2 stations found", snap.Message)

	_, _, summary := svc.Results()
	assert.Equal(t, []int{2, 4}, summary.DiscoveredStations)
}

func TestService_RejectsInvalidRequestWithoutStarting(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)

	svc := newService(t, prober, testOptions())
	_, err := svc.Submit(scanning.ScanRequest{Target: testTarget})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, errors.KindNoScanSelected, errors.ValidationKindOf(err))

	snap := svc.Status()
	assert.Equal(t, scanning.StatusIdle, snap.Status)
	assert.Empty(t, snap.ScanID)
}

func TestService_Validate(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newService(t, mocks.NewMockProber(ctrl), testOptions())

	assert.NoError(t, svc.Validate(registers(0, 10)))

	err := svc.Validate(scanning.ScanRequest{Target: testTarget})
	assert.Equal(t, errors.KindNoScanSelected, errors.ValidationKindOf(err))
	assert.Equal(t, scanning.StatusIdle, svc.Status().Status, "validation never starts a job")
}

func TestService_BusyWhileRunning(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	session := mocks.NewMockSession(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	prober.EXPECT().Open(gomock.Any(), gomock.Any()).Return(session, nil)
	session.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, scanning.ProbeTask) scanning.ProbeOutcome {
			once.Do(func() { close(started) })
			<-release
			return scanning.Success(0)
		}).Times(2)
	session.EXPECT().Close().Return(nil)

	svc := newService(t, prober, testOptions())
	first, err := svc.Submit(registers(0, 2))
	require.NoError(t, err)
	<-started

	before := svc.Status()
	_, err = svc.Submit(registers(0, 100))
	require.Error(t, err)
	assert.True(t, errors.IsBusy(err))

	after := svc.Status()
	assert.Equal(t, first.ScanID, after.ScanID)
	assert.Equal(t, before.TotalTasks, after.TotalTasks)
	assert.Equal(t, scanning.StatusRunning, after.Status)

	close(release)
	assert.Equal(t, scanning.StatusCompleted, waitTerminal(t, svc).Status)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_StopAbortsAtNextTaskBoundary(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	session := mocks.NewMockSession(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})

	prober.EXPECT().Open(gomock.Any(), gomock.Any()).Return(session, nil)
	session.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ scanning.ProbeTask) scanning.ProbeOutcome {
			close(started)
			<-release
			assert.NoError(t, ctx.Err(), "stop must not interrupt the in-flight probe")
			return scanning.Success(5)
		}).Times(1)
	session.EXPECT().Close().Return(nil)

	svc := newService(t, prober, testOptions())
	_, err := svc.Submit(registers(0, 10))
	require.NoError(t, err)

	<-started
	assert.True(t, svc.Stop())
	assert.True(t, svc.Stop(), "stop is idempotent")
	close(release)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusAborted, snap.Status)
	assert.Equal(t, "Scan aborted by user", snap.Message)
	assert.Less(t, snap.Progress, 100)

	_, results, _ := svc.Results()
	require.Len(t, results, 1, "only the task in flight when stop was requested is recorded")
	assert.Equal(t, 0, results[0].Task.Address)

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_StopWhenIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newService(t, mocks.NewMockProber(ctrl), testOptions())

	assert.False(t, svc.Stop())
	assert.Equal(t, scanning.StatusIdle, svc.Status().Status)
}

func TestService_SetupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	prober.EXPECT().Open(gomock.Any(), testTarget).
		Return(nil, errors.ErrExecutionFailure(testTarget.Address(), fmt.Errorf("connection refused")))

	svc := newService(t, prober, testOptions())
	_, err := svc.Submit(registers(0, 10))
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusFailed, snap.Status)
	assert.Contains(t, snap.Message, "Connection failed")
	assert.Contains(t, snap.Message, "connection refused")
	assert.Equal(t, 0, snap.Progress)

	_, results, _ := svc.Results()
	assert.Empty(t, results)
}

func TestService_PanicBecomesError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	session := &fakeSession{probe: func(_ context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
		if task.Address == 2 {
			panic("decoder exploded")
		}
		return scanning.Success(1)
	}}

	svc := newService(t, &fakeProber{session: session}, testOptions())
	_, err := svc.Submit(registers(0, 5))
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusError, snap.Status)
	assert.Contains(t, snap.Message, "decoder exploded")

	_, results, _ := svc.Results()
	assert.Len(t, results, 2, "results gathered before the fault are kept")

	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_ProgressIsMonotonic(t *testing.T) {
	var (
		svc      *scanning.Service
		mu       sync.Mutex
		observed []int
	)

	session := &fakeSession{probe: func(context.Context, scanning.ProbeTask) scanning.ProbeOutcome {
		mu.Lock()
		observed = append(observed, svc.Status().Progress)
		mu.Unlock()
		return scanning.Success(0)
	}}

	svc = newService(t, &fakeProber{session: session}, testOptions())
	_, err := svc.Submit(registers(0, 7))
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, 100, snap.Progress)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 7)
	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1])
	}
	for i, p := range observed {
		assert.Less(t, p, 100)
		assert.Equal(t, i*100/7, p, "progress is floor(completed/total*100)")
	}
}

func TestService_ResubmitAfterTerminal(t *testing.T) {
	session := &fakeSession{probe: func(_ context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
		return scanning.Success(uint16(task.Address))
	}}

	svc := newService(t, &fakeProber{session: session}, testOptions())

	first, err := svc.Submit(registers(0, 3))
	require.NoError(t, err)
	waitTerminal(t, svc)

	second, err := svc.Submit(registers(10, 12))
	require.NoError(t, err)
	assert.NotEqual(t, first.ScanID, second.ScanID)

	snap := waitTerminal(t, svc)
	assert.Equal(t, second.ScanID, snap.ScanID)

	_, results, _ := svc.Results()
	require.Len(t, results, 2, "results are reset for a new job")
	assert.Equal(t, 10, results[0].Task.Address)
}

func TestService_ShutdownAbortsRunningScan(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	var once sync.Once
	session := &fakeSession{probe: func(ctx context.Context, _ scanning.ProbeTask) scanning.ProbeOutcome {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return scanning.Timeout(ctx.Err().Error())
	}}

	opts := testOptions()
	opts.ProbeTimeout = 0
	svc := newService(t, &fakeProber{session: session}, opts)
	_, err := svc.Submit(registers(0, 5))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	snap := svc.Status()
	assert.Equal(t, scanning.StatusAborted, snap.Status)
	assert.Contains(t, snap.Message, "shutting down")

	_, err = svc.Submit(registers(0, 1))
	assert.ErrorIs(t, err, errors.ErrShuttingDown)
}

func TestService_ProbeTimeoutBoundsEachTask(t *testing.T) {
	session := &fakeSession{probe: func(ctx context.Context, _ scanning.ProbeTask) scanning.ProbeOutcome {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > 50*time.Millisecond {
			return scanning.ConnectionError("missing deadline")
		}
		<-ctx.Done()
		return scanning.Timeout("deadline exceeded")
	}}

	opts := testOptions()
	opts.ProbeTimeout = 20 * time.Millisecond
	svc := newService(t, &fakeProber{session: session}, opts)
	_, err := svc.Submit(registers(0, 3))
	require.NoError(t, err)

	snap := waitTerminal(t, svc)
	assert.Equal(t, scanning.StatusCompleted, snap.Status)

	_, _, summary := svc.Results()
	assert.Equal(t, 3, summary.Timeouts)
}

func TestService_ProbeInterval(t *testing.T) {
	session := &fakeSession{probe: func(context.Context, scanning.ProbeTask) scanning.ProbeOutcome {
		return scanning.Success(0)
	}}

	opts := testOptions()
	opts.ProbeInterval = 25 * time.Millisecond
	svc := newService(t, &fakeProber{session: session}, opts)

	start := time.Now()
	_, err := svc.Submit(registers(0, 4))
	require.NoError(t, err)
	waitTerminal(t, svc)

	assert.GreaterOrEqual(t, time.Since(start), 75*time.Millisecond)
}

func TestService_StopDuringProbeIntervalAbortsPromptly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	probed := make(chan struct{}, 10)
	session := &fakeSession{probe: func(context.Context, scanning.ProbeTask) scanning.ProbeOutcome {
		probed <- struct{}{}
		return scanning.Success(0)
	}}

	opts := testOptions()
	opts.ProbeInterval = 2 * time.Second
	opts.ProbeTimeout = 100 * time.Millisecond
	svc := newService(t, &fakeProber{session: session}, opts)

	_, err := svc.Submit(registers(0, 5))
	require.NoError(t, err)
	<-probed

	stopped := time.Now()
	require.True(t, svc.Stop())
	snap := waitTerminal(t, svc)

	assert.Less(t, time.Since(stopped), time.Second, "stop must not wait out the probe interval")
	assert.Equal(t, scanning.StatusAborted, snap.Status)
	assert.Equal(t, "Scan aborted by user", snap.Message)

	_, results, _ := svc.Results()
	assert.Len(t, results, 1)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_TestConnectionDefaultsPort(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)
	report := scanning.ConnectionReport{Available: true, Message: "Modbus TCP running and responding to queries"}

	prober.EXPECT().Check(gomock.Any(), scanning.Target{Host: "plc", Port: 502}).Return(report)

	svc := newService(t, prober, testOptions())
	got := svc.TestConnection(context.Background(), scanning.Target{Host: "plc"})
	assert.Equal(t, report, got)
	assert.Equal(t, scanning.StatusIdle, svc.Status().Status, "connection tests do not touch the job")
}

func TestService_TestConnectionLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)

	release := make(chan struct{})
	entered := make(chan struct{})
	prober.EXPECT().Check(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, scanning.Target) scanning.ConnectionReport {
			close(entered)
			<-release
			return scanning.ConnectionReport{Available: true}
		})

	opts := testOptions()
	opts.MaxConcurrentChecks = 1
	opts.CheckTimeout = 50 * time.Millisecond
	svc := newService(t, prober, opts)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.TestConnection(context.Background(), testTarget)
	}()
	<-entered

	got := svc.TestConnection(context.Background(), testTarget)
	assert.False(t, got.Available)
	assert.Equal(t, scanning.MessageCheckLimited, got.Message)

	close(release)
	wg.Wait()
}

func TestService_TestConnectionAfterShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	prober := mocks.NewMockProber(ctrl)

	svc := newService(t, prober, testOptions())
	require.NoError(t, svc.Shutdown(context.Background()))

	got := svc.TestConnection(context.Background(), testTarget)
	assert.False(t, got.Available)
	assert.Equal(t, errors.ErrShuttingDown.Message, got.Message)
}
