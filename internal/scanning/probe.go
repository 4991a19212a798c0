package scanning

import "context"

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks . Prober,Session

// Prober opens probing sessions against a target.
type Prober interface {
	// Open verifies the target is reachable and returns a session for it.
	// An error here fails the job before any task runs.
	Open(ctx context.Context, target Target) (Session, error)

	// Check reports whether the target speaks the protocol at all.
	Check(ctx context.Context, target Target) ConnectionReport
}

// Session executes tasks against one target.
type Session interface {
	// Probe runs a single task. Failures are reported as outcomes.
	Probe(ctx context.Context, task ProbeTask) ProbeOutcome
	Close() error
}

// ConnectionReport is the result of a connection test.
type ConnectionReport struct {
	Available bool   `json:"modbus_available"`
	Message   string `json:"message"`
}
