// Package pattern defines the activation pattern types shared by the cycle
// engine, the command dispatcher, and the configuration store, together
// with the built-in catalog and the persisted binary encoding.
package pattern

import (
	"errors"
	"fmt"
)

// ZoneSelector addresses the output zones a phase drives.
type ZoneSelector uint8

const (
	Zone0      ZoneSelector = 0 // hat
	Zone1      ZoneSelector = 1 // hoodie
	Zone2      ZoneSelector = 2 // pants
	Zone3      ZoneSelector = 3 // shoes
	AllZones   ZoneSelector = 4
	FlickerAll ZoneSelector = 5
)

// Type bounds carried over from the persisted record layout.
const (
	MaxPatternName = 47
	MaxTargetName  = 31
	MaxPhases      = 20
	MaxJitter      = 100
)

// TargetFlags describe capabilities of the active target. The flags are
// descriptive metadata only; nothing in the engine branches on them.
type TargetFlags uint8

const (
	TargetHasALPR      TargetFlags = 0x01
	TargetHasAnalytics TargetFlags = 0x02
	TargetIsWireless   TargetFlags = 0x04
)

var (
	ErrNameTooLong     = errors.New("pattern: name too long")
	ErrNoPhases        = errors.New("pattern: phase count must be 1-20")
	ErrJitterRange     = errors.New("pattern: jitter percent exceeds 100")
	ErrBadZoneSelector = errors.New("pattern: invalid zone selector")
	ErrBadRepeat       = errors.New("pattern: repeat count must be >= 1")
)

// Phase is one timed activation step within a pattern.
type Phase struct {
	Zone          ZoneSelector `json:"zone"`
	DurationMs    uint16       `json:"duration_ms"`
	Intensity     uint8        `json:"intensity"`
	JitterPercent uint8        `json:"jitter_percent"`
}

// Validate checks a single phase against the type bounds.
func (p Phase) Validate() error {
	if p.Zone > FlickerAll {
		return fmt.Errorf("%w: %d", ErrBadZoneSelector, p.Zone)
	}
	if p.JitterPercent > MaxJitter {
		return fmt.Errorf("%w: %d", ErrJitterRange, p.JitterPercent)
	}
	return nil
}

// Pattern is an ordered, repeatable sequence of phases identified by name.
type Pattern struct {
	Name        string  `json:"name"`
	Phases      []Phase `json:"phases"`
	RepeatCount uint8   `json:"repeat_count"`
	Enabled     bool    `json:"enabled"`
}

// Validate checks the pattern invariant. A pattern that fails validation
// must never become the active pattern.
func (p Pattern) Validate() error {
	if len(p.Name) > MaxPatternName {
		return fmt.Errorf("%w: %d chars", ErrNameTooLong, len(p.Name))
	}
	if len(p.Phases) < 1 || len(p.Phases) > MaxPhases {
		return fmt.Errorf("%w: got %d", ErrNoPhases, len(p.Phases))
	}
	if p.RepeatCount < 1 {
		return ErrBadRepeat
	}
	for i, ph := range p.Phases {
		if err := ph.Validate(); err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy so the active pattern can be replaced
// atomically without sharing phase storage with the catalog or a caller.
func (p Pattern) Clone() Pattern {
	out := p
	out.Phases = make([]Phase, len(p.Phases))
	copy(out.Phases, p.Phases)
	return out
}

// TotalDurationMs is the sum of nominal phase durations for one pass.
func (p Pattern) TotalDurationMs() uint32 {
	var total uint32
	for _, ph := range p.Phases {
		total += uint32(ph.DurationMs)
	}
	return total
}

// TargetProfile is descriptive metadata attached to a run for logging.
type TargetProfile struct {
	Name  string      `json:"name"`
	Flags TargetFlags `json:"flags"`
}

// Validate checks the target name bound.
func (t TargetProfile) Validate() error {
	if len(t.Name) > MaxTargetName {
		return fmt.Errorf("%w: %d chars", ErrNameTooLong, len(t.Name))
	}
	return nil
}
