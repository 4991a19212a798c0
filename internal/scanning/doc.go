// Package scanning provides the scan job engine for modscan.
//
// A scan is described by a ScanRequest: a target endpoint, the object
// tables to read over a half-open address range, and an optional station
// presence sweep. BuildPlan validates the request and expands it into an
// ordered list of ProbeTasks. The Service runs at most one plan at a time on
// a background goroutine and exposes its state through snapshots.
//
// # Main Components
//
//   - BuildPlan: request validation and task expansion
//   - JobStore: job state shared between the executor and readers
//   - Executor: sequential task runner with pacing and cancellation
//   - Service: submit, status, results, stop and connection test
//   - Prober, Session: boundary to the wire protocol (see internal/probe)
//
// # Job Lifecycle
//
// A job moves from idle to running on a successful submit and ends in one of
// four terminal states:
//
//   - completed: every task ran, progress is 100
//   - aborted: a stop request or shutdown was observed between tasks
//   - failed: the target could not be reached before the first task
//   - error: an unexpected fault inside the executor
//
// A terminal job stays readable until the next submit resets it. Submitting
// while a job runs fails with errors.ErrBusy and leaves the job untouched.
//
// # Usage
//
//	svc := scanning.NewService(probe.New(probe.DefaultConfig(), logger), scanning.DefaultOptions(), logger, m)
//	ack, err := svc.Submit(scanning.ScanRequest{
//		Target:           scanning.Target{Host: "192.168.1.10"},
//		EndAddress:       10,
//		HoldingRegisters: true,
//	})
//	if err != nil {
//		return err
//	}
//	for !svc.Status().Status.IsTerminal() {
//		time.Sleep(time.Second)
//	}
//	_, results, summary := svc.Results()
package scanning
