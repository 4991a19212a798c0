package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_HTTPHandlerServes(t *testing.T) {
	m := New()
	m.ScanStarted()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "modscan_scan_active 1") {
		t.Fatalf("expected active scan gauge in output")
	}
}

func TestMetrics_ScanLifecycle(t *testing.T) {
	m := New()

	m.ScanStarted()
	if got := testutil.ToFloat64(m.activeScans); got != 1 {
		t.Errorf("expected active gauge 1, got %v", got)
	}

	m.ScanFinished("completed", 2*time.Second)
	m.ScanFinished("aborted", time.Second)

	if got := testutil.ToFloat64(m.activeScans); got != 0 {
		t.Errorf("expected active gauge 0, got %v", got)
	}
	if got := testutil.ToFloat64(m.scansTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("expected 1 completed scan, got %v", got)
	}
	if count := testutil.CollectAndCount(m.scansTotal); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestMetrics_ProbeAndSubmissionCounters(t *testing.T) {
	m := New()

	m.ProbeObserved("holding_register", "success", 10*time.Millisecond)
	m.ProbeObserved("holding_register", "timeout", time.Second)
	m.ProbeObserved("coil", "success", 5*time.Millisecond)
	m.Submission("started")
	m.Submission("busy")
	m.Submission("busy")
	m.ScheduledRun("nightly", "started")
	m.HTTPRequest("GET", "/api/v1/scan/status", "200", time.Millisecond)

	if count := testutil.CollectAndCount(m.probesTotal); count != 3 {
		t.Errorf("expected 3 probe label combinations, got %d", count)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("busy")); got != 2 {
		t.Errorf("expected 2 busy submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.scheduledRuns.WithLabelValues("nightly", "started")); got != 1 {
		t.Errorf("expected 1 scheduled run, got %v", got)
	}
	if count := testutil.CollectAndCount(m.httpDuration); count != 1 {
		t.Errorf("expected 1 http duration series, got %d", count)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.ScanStarted()
	m.ScanFinished("completed", time.Second)
	m.Submission("started")
	m.ProbeObserved("coil", "success", time.Millisecond)
	m.ScheduledRun("x", "busy")
	m.HTTPRequest("GET", "/", "200", time.Millisecond)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	first := New()
	second := New()

	first.Submission("started")

	if got := testutil.ToFloat64(second.submissions.WithLabelValues("started")); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}
