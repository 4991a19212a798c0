package scanning

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Protocol limits for a single read request.
const (
	maxRegistersPerRead = 125
	maxBitsPerRead      = 2000

	// Highest address a read may touch, plus one.
	addressSpaceEnd = 65536

	// Inclusive bounds of a valid station identifier.
	stationIDFloor = 0
	stationIDCeil  = 255
)

// ObjectType is one of the four data tables a station exposes.
type ObjectType string

const (
	HoldingRegister ObjectType = "holding_register"
	Coil            ObjectType = "coil"
	DiscreteInput   ObjectType = "discrete_input"
	InputRegister   ObjectType = "input_register"
)

// ObjectTypeOrder is the fixed order object types are expanded into tasks.
var ObjectTypeOrder = []ObjectType{HoldingRegister, Coil, DiscreteInput, InputRegister}

// Label returns the human-readable table name.
func (o ObjectType) Label() string {
	switch o {
	case HoldingRegister:
		return "Holding Registers"
	case Coil:
		return "Coils"
	case DiscreteInput:
		return "Discrete Inputs"
	case InputRegister:
		return "Input Registers"
	default:
		return string(o)
	}
}

// IsBit reports whether the table holds single-bit values.
func (o ObjectType) IsBit() bool {
	return o == Coil || o == DiscreteInput
}

// MaxPerRead is the largest quantity one read request may ask for.
func (o ObjectType) MaxPerRead() int {
	if o.IsBit() {
		return maxBitsPerRead
	}
	return maxRegistersPerRead
}

// ParseObjectType accepts the canonical names plus the plural forms used in
// request bodies and configuration files.
func ParseObjectType(name string) (ObjectType, error) {
	switch name {
	case "holding_register", "holding_registers", "registers":
		return HoldingRegister, nil
	case "coil", "coils":
		return Coil, nil
	case "discrete_input", "discrete_inputs":
		return DiscreteInput, nil
	case "input_register", "input_registers":
		return InputRegister, nil
	}
	return "", fmt.Errorf("unknown object type %q", name)
}

// Target identifies the remote endpoint of a scan.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns host:port suitable for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string {
	return t.Address()
}

// StationRange is an inclusive range of station identifiers.
type StationRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Discovery controls the station presence sweep.
type Discovery struct {
	Enabled bool         `json:"enabled"`
	Range   StationRange `json:"range"`
}

// ScanRequest is the caller-supplied description of a scan job.
type ScanRequest struct {
	Target Target `json:"target"`

	// StationID addressed by object-type reads. Nil selects the default.
	StationID *int `json:"station_id,omitempty"`

	// Half-open address range [StartAddress, EndAddress).
	StartAddress int `json:"start_address"`
	EndAddress   int `json:"end_address"`

	HoldingRegisters bool `json:"holding_registers"`
	Coils            bool `json:"coils"`
	DiscreteInputs   bool `json:"discrete_inputs"`
	InputRegisters   bool `json:"input_registers"`

	Discovery Discovery `json:"discovery"`
}

// ObjectTypes returns the selected object types in expansion order.
func (r ScanRequest) ObjectTypes() []ObjectType {
	var selected []ObjectType
	for _, ot := range ObjectTypeOrder {
		if r.Selects(ot) {
			selected = append(selected, ot)
		}
	}
	return selected
}

// Selects reports whether the request asks for the given object type.
func (r ScanRequest) Selects(ot ObjectType) bool {
	switch ot {
	case HoldingRegister:
		return r.HoldingRegisters
	case Coil:
		return r.Coils
	case DiscreteInput:
		return r.DiscreteInputs
	case InputRegister:
		return r.InputRegisters
	}
	return false
}

// Select turns on the given object type.
func (r *ScanRequest) Select(ot ObjectType) {
	switch ot {
	case HoldingRegister:
		r.HoldingRegisters = true
	case Coil:
		r.Coils = true
	case DiscreteInput:
		r.DiscreteInputs = true
	case InputRegister:
		r.InputRegisters = true
	}
}

// TaskKind distinguishes presence checks from table reads.
type TaskKind string

const (
	TaskPresence TaskKind = "presence"
	TaskRead     TaskKind = "read"
)

// ProbeTask is one unit of probing work.
type ProbeTask struct {
	Station    int        `json:"station"`
	Kind       TaskKind   `json:"kind"`
	ObjectType ObjectType `json:"object_type,omitempty"`
	Address    int        `json:"address"`
	Count      int        `json:"count"`
}

// Describe returns the progress line shown while the task runs.
func (t ProbeTask) Describe() string {
	if t.Kind == TaskPresence {
		return fmt.Sprintf("Checking station %d for presence", t.Station)
	}
	if t.Count == 1 {
		return fmt.Sprintf("Reading %s address %d on station %d", t.ObjectType.Label(), t.Address, t.Station)
	}
	return fmt.Sprintf("Reading %s %d-%d on station %d",
		t.ObjectType.Label(), t.Address, t.Address+t.Count-1, t.Station)
}

// MetricLabel returns the object_type label used for probe metrics.
func (t ProbeTask) MetricLabel() string {
	if t.Kind == TaskPresence {
		return string(TaskPresence)
	}
	return string(t.ObjectType)
}

// OutcomeKind classifies a probe result.
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeTimeout         OutcomeKind = "timeout"
	OutcomeProtocolError   OutcomeKind = "protocol_error"
	OutcomeConnectionError OutcomeKind = "connection_error"
)

// ProbeOutcome is the result of executing one task.
type ProbeOutcome struct {
	Kind OutcomeKind `json:"kind"`

	// Values holds register words or bits (0/1) for successful reads.
	Values []uint16 `json:"values,omitempty"`

	// ExceptionCode is set for protocol errors.
	ExceptionCode byte `json:"exception_code,omitempty"`

	Detail string `json:"detail,omitempty"`
}

// OK reports whether the probe succeeded.
func (o ProbeOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Success builds a successful outcome.
func Success(values ...uint16) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeSuccess, Values: values}
}

// Timeout builds a timeout outcome.
func Timeout(detail string) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeTimeout, Detail: detail}
}

// ProtocolError builds an exception outcome.
func ProtocolError(code byte, detail string) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeProtocolError, ExceptionCode: code, Detail: detail}
}

// ConnectionError builds a transport failure outcome.
func ConnectionError(detail string) ProbeOutcome {
	return ProbeOutcome{Kind: OutcomeConnectionError, Detail: detail}
}

// TaskResult pairs a task with what happened when it ran.
type TaskResult struct {
	Task     ProbeTask     `json:"task"`
	Outcome  ProbeOutcome  `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// Status is the lifecycle state of the scan job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether no further transitions happen until the next submit.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusAborted, StatusFailed:
		return true
	}
	return false
}

// Snapshot is a consistent copy of the job state.
type Snapshot struct {
	ScanID         string     `json:"scan_id,omitempty"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"`
	Message        string     `json:"message"`
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Summary aggregates the results of a job.
type Summary struct {
	Total              int   `json:"total"`
	Succeeded          int   `json:"succeeded"`
	Failed             int   `json:"failed"`
	Timeouts           int   `json:"timeouts"`
	ProtocolErrors     int   `json:"protocol_errors"`
	ConnectionErrors   int   `json:"connection_errors"`
	DiscoveredStations []int `json:"discovered_stations"`
}

// Summarize counts outcomes and lists stations that answered a presence check.
func Summarize(results []TaskResult) Summary {
	summary := Summary{Total: len(results), DiscoveredStations: []int{}}
	for _, r := range results {
		switch r.Outcome.Kind {
		case OutcomeSuccess:
			summary.Succeeded++
			if r.Task.Kind == TaskPresence {
				summary.DiscoveredStations = append(summary.DiscoveredStations, r.Task.Station)
			}
			continue
		case OutcomeTimeout:
			summary.Timeouts++
		case OutcomeProtocolError:
			summary.ProtocolErrors++
		case OutcomeConnectionError:
			summary.ConnectionErrors++
		}
		summary.Failed++
	}
	return summary
}
