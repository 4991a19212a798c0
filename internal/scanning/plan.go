package scanning

import (
	"strings"

	"github.com/anstrom/modscan/internal/errors"
)

// PlanOptions carry the configurable limits used when expanding a request.
type PlanOptions struct {
	DefaultPort       int
	DefaultStationID  int
	AddressesPerProbe int
	StationMin        int
	StationMax        int
	MaxAddressSpan    int
}

// DefaultPlanOptions returns the limits used when no configuration is given.
func DefaultPlanOptions() PlanOptions {
	return PlanOptions{
		DefaultPort:       502,
		DefaultStationID:  1,
		AddressesPerProbe: 1,
		StationMin:        1,
		StationMax:        255,
		MaxAddressSpan:    10000,
	}
}

// Plan is a validated request together with its ordered task list.
type Plan struct {
	Target    Target
	StationID int
	Tasks     []ProbeTask
}

// BuildPlan validates req and expands it into probe tasks.
//
// Rules are checked in order and the first violation is returned:
// target, selection, discovery range, address range, station ID.
// Discovery tasks come first by ascending station, followed by object
// reads in ObjectTypeOrder by ascending address. The result depends only
// on req and opts.
func BuildPlan(req ScanRequest, opts PlanOptions) (*Plan, error) {
	opts = opts.withDefaults()

	target := Target{Host: strings.TrimSpace(req.Target.Host), Port: req.Target.Port}
	if target.Host == "" {
		return nil, errors.NewValidationError(errors.KindMissingTarget, "Target IP is required")
	}
	if target.Port == 0 {
		target.Port = opts.DefaultPort
	}
	if target.Port < 1 || target.Port > 65535 {
		return nil, errors.NewValidationError(errors.KindInvalidTarget,
			"Port %d is out of range 1-65535", target.Port)
	}

	objectTypes := req.ObjectTypes()
	if !req.Discovery.Enabled && len(objectTypes) == 0 {
		return nil, errors.NewValidationError(errors.KindNoScanSelected,
			"Select at least one scan option or enable slave ID discovery")
	}

	if req.Discovery.Enabled {
		r := req.Discovery.Range
		if r.Start > r.End {
			return nil, errors.NewValidationError(errors.KindInvalidStationRange,
				"Slave ID range start %d is greater than end %d", r.Start, r.End)
		}
		if r.Start < opts.StationMin || r.End > opts.StationMax {
			return nil, errors.NewValidationError(errors.KindInvalidStationRange,
				"Slave ID range %d-%d is outside %d-%d", r.Start, r.End, opts.StationMin, opts.StationMax)
		}
	}

	if err := validateAddresses(req.StartAddress, req.EndAddress, opts.MaxAddressSpan); err != nil {
		return nil, err
	}

	stationID := opts.DefaultStationID
	if req.StationID != nil {
		stationID = *req.StationID
	}
	if stationID < stationIDFloor || stationID > stationIDCeil {
		return nil, errors.NewValidationError(errors.KindInvalidStationID,
			"Slave ID %d is out of range %d-%d", stationID, stationIDFloor, stationIDCeil)
	}

	plan := &Plan{Target: target, StationID: stationID}

	if req.Discovery.Enabled {
		for station := req.Discovery.Range.Start; station <= req.Discovery.Range.End; station++ {
			plan.Tasks = append(plan.Tasks, ProbeTask{Station: station, Kind: TaskPresence, Count: 1})
		}
	}

	for _, ot := range objectTypes {
		step := min(opts.AddressesPerProbe, ot.MaxPerRead())
		for addr := req.StartAddress; addr < req.EndAddress; addr += step {
			plan.Tasks = append(plan.Tasks, ProbeTask{
				Station:    stationID,
				Kind:       TaskRead,
				ObjectType: ot,
				Address:    addr,
				Count:      min(step, req.EndAddress-addr),
			})
		}
	}

	return plan, nil
}

func validateAddresses(start, end, maxSpan int) error {
	if start < 0 {
		return errors.NewValidationError(errors.KindInvalidAddressRange,
			"Start address %d must not be negative", start)
	}
	if end < start {
		return errors.NewValidationError(errors.KindInvalidAddressRange,
			"End address must be greater than or equal to start address")
	}
	if end > addressSpaceEnd {
		return errors.NewValidationError(errors.KindInvalidAddressRange,
			"End address %d exceeds %d", end, addressSpaceEnd)
	}
	if end-start > maxSpan {
		return errors.NewValidationError(errors.KindInvalidAddressRange,
			"Address range too large, maximum range is %d addresses", maxSpan)
	}
	return nil
}

func (o PlanOptions) withDefaults() PlanOptions {
	d := DefaultPlanOptions()
	if o.DefaultPort == 0 {
		o.DefaultPort = d.DefaultPort
	}
	if o.AddressesPerProbe <= 0 {
		o.AddressesPerProbe = d.AddressesPerProbe
	}
	if o.StationMin == 0 && o.StationMax == 0 {
		o.StationMin, o.StationMax = d.StationMin, d.StationMax
	}
	if o.MaxAddressSpan <= 0 {
		o.MaxAddressSpan = d.MaxAddressSpan
	}
	return o
}
