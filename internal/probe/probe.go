// Package probe implements scanning.Prober over Modbus TCP using the
// grid-x/modbus client.
package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grid-x/modbus"

	"github.com/anstrom/modscan/internal/errors"
	"github.com/anstrom/modscan/internal/logging"
	"github.com/anstrom/modscan/internal/scanning"
)

// Gateway exceptions mean the addressed station did not answer at all.
const (
	exceptionGatewayPathUnavailable  byte = 0x0A
	exceptionGatewayTargetNoResponse byte = 0x0B
)

// Connection test messages.
const (
	MessagePortClosed = "Port not open"
	MessageResponding = "Modbus TCP running and responding to queries"
	MessageNeedsSlave = "Modbus TCP running but requires valid slave ID"
)

// presenceOrder is the sequence of tables tried when checking a station.
var presenceOrder = []scanning.ObjectType{
	scanning.HoldingRegister,
	scanning.Coil,
	scanning.DiscreteInput,
	scanning.InputRegister,
}

// Config holds probe timeouts.
type Config struct {
	// Upper bound for one request/response exchange.
	RequestTimeout time.Duration

	// Upper bound for the TCP reachability check.
	ConnectTimeout time.Duration

	// Station addressed by the connection test.
	CheckStationID byte
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 3 * time.Second,
		ConnectTimeout: 2 * time.Second,
		CheckStationID: 1,
	}
}

// Prober dials targets and hands out Modbus sessions.
type Prober struct {
	cfg    Config
	dialer net.Dialer
	logger *logging.Logger
}

// New creates a prober.
func New(cfg Config, logger *logging.Logger) *Prober {
	if logger == nil {
		logger = logging.Default()
	}
	return &Prober{
		cfg:    cfg,
		logger: logger.WithComponent("probe"),
	}
}

// Open checks that the target accepts TCP connections and returns a
// session bound to it.
func (p *Prober) Open(ctx context.Context, target scanning.Target) (scanning.Session, error) {
	addr := target.Address()
	if err := p.reachable(ctx, addr); err != nil {
		return nil, errors.ErrExecutionFailure(addr, err)
	}
	return p.newSession(addr), nil
}

// Check reports whether the target speaks Modbus TCP. A port that accepts
// connections is reported as available even when the test read fails.
func (p *Prober) Check(ctx context.Context, target scanning.Target) scanning.ConnectionReport {
	addr := target.Address()
	if err := p.reachable(ctx, addr); err != nil {
		p.logger.Debug("Connection test: port closed", "target", addr, "error", err)
		return scanning.ConnectionReport{Available: false, Message: MessagePortClosed}
	}

	s := p.newSession(addr)
	defer s.Close()

	outcome := s.read(ctx, p.cfg.CheckStationID, scanning.HoldingRegister, 0, 1)
	if outcome.Kind == scanning.OutcomeSuccess {
		return scanning.ConnectionReport{Available: true, Message: MessageResponding}
	}
	p.logger.Debug("Connection test: read failed", "target", addr,
		"outcome", outcome.Kind, "detail", outcome.Detail)
	return scanning.ConnectionReport{Available: true, Message: MessageNeedsSlave}
}

func (p *Prober) reachable(ctx context.Context, addr string) error {
	if p.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (p *Prober) newSession(addr string) *session {
	handler := modbus.NewTCPClientHandler(addr)
	handler.Timeout = p.cfg.RequestTimeout
	return &session{
		handler: handler,
		client:  modbus.NewClient(handler),
	}
}

// session reuses one TCP connection for all tasks of a job. The transport
// reconnects on its own after a failed exchange.
type session struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// Probe runs one task against the session's target.
func (s *session) Probe(ctx context.Context, task scanning.ProbeTask) scanning.ProbeOutcome {
	station := byte(task.Station)
	if task.Kind == scanning.TaskPresence {
		return s.presence(ctx, station)
	}
	return s.read(ctx, station, task.ObjectType, uint16(task.Address), uint16(task.Count))
}

// Close releases the underlying connection.
func (s *session) Close() error {
	return s.handler.Close()
}

// presence tries each table at address 0. Any reply that is not a gateway
// exception proves the station exists.
func (s *session) presence(ctx context.Context, station byte) scanning.ProbeOutcome {
	var last scanning.ProbeOutcome
	for _, ot := range presenceOrder {
		outcome := s.read(ctx, station, ot, 0, 1)
		switch {
		case outcome.Kind == scanning.OutcomeSuccess:
			return scanning.ProbeOutcome{
				Kind:   scanning.OutcomeSuccess,
				Detail: fmt.Sprintf("responded to %s read", ot.Label()),
			}
		case outcome.Kind == scanning.OutcomeProtocolError && !isGatewayException(outcome.ExceptionCode):
			return scanning.ProbeOutcome{
				Kind:          scanning.OutcomeSuccess,
				ExceptionCode: outcome.ExceptionCode,
				Detail:        fmt.Sprintf("responded with exception 0x%02X to %s read", outcome.ExceptionCode, ot.Label()),
			}
		}
		last = outcome
		if ctx.Err() != nil {
			break
		}
	}
	return last
}

func (s *session) read(ctx context.Context, station byte, ot scanning.ObjectType, address, quantity uint16) scanning.ProbeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handler.SlaveID = station

	var (
		raw []byte
		err error
	)
	switch ot {
	case scanning.HoldingRegister:
		raw, err = s.client.ReadHoldingRegisters(ctx, address, quantity)
	case scanning.InputRegister:
		raw, err = s.client.ReadInputRegisters(ctx, address, quantity)
	case scanning.Coil:
		raw, err = s.client.ReadCoils(ctx, address, quantity)
	case scanning.DiscreteInput:
		raw, err = s.client.ReadDiscreteInputs(ctx, address, quantity)
	default:
		return scanning.ConnectionError(fmt.Sprintf("unsupported object type %q", ot))
	}
	if err != nil {
		return classify(err)
	}

	var values []uint16
	if ot.IsBit() {
		values, err = decodeBits(raw, int(quantity))
	} else {
		values, err = decodeRegisters(raw, int(quantity))
	}
	if err != nil {
		return scanning.ConnectionError(err.Error())
	}
	return scanning.Success(values...)
}

// classify maps a client error onto an outcome.
func classify(err error) scanning.ProbeOutcome {
	var mbErr *modbus.Error
	if stderrors.As(err, &mbErr) {
		return scanning.ProtocolError(mbErr.ExceptionCode, mbErr.Error())
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, os.ErrDeadlineExceeded) {
		return scanning.Timeout(err.Error())
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return scanning.Timeout(err.Error())
	}
	// Some transport errors are flattened into text before they reach us.
	if strings.Contains(err.Error(), "i/o timeout") {
		return scanning.Timeout(err.Error())
	}
	return scanning.ConnectionError(err.Error())
}

func isGatewayException(code byte) bool {
	return code == exceptionGatewayPathUnavailable || code == exceptionGatewayTargetNoResponse
}
