// Package state owns the operational mode and validates every transition
// against the current mode and the safety verdict. All mode writes go
// through Machine.Apply; nothing else in the controller mutates mode.
package state

import (
	"errors"
	"fmt"

	"github.com/irwp/wearable-controller/internal/safety"
)

// Mode is the operational mode. Codes are part of the status record
// contract and must not be renumbered.
type Mode int

const (
	Idle      Mode = 0
	Armed     Mode = 1
	Cycling   Mode = 2
	Test      Mode = 3
	Emergency Mode = 99
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case Idle:
		return "IDLE"
	case Armed:
		return "ARMED"
	case Cycling:
		return "CYCLING"
	case Test:
		return "TEST"
	case Emergency:
		return "EMERGENCY"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}

// Event is a requested transition.
type Event int

const (
	EventArm Event = iota
	EventDisarm
	EventStartCycle
	EventStopCycle
	EventStartTest
	EventFinishTest
	EventEmergency
	EventResetEmergency
)

var (
	ErrNotSafetyEngaged = errors.New("state: safety not engaged")
	ErrOverheating      = errors.New("state: overheating")
	ErrNotArmed         = errors.New("state: not armed")
	ErrNotCycling       = errors.New("state: not cycling")
	ErrNotEmergency     = errors.New("state: not in emergency")
	ErrBusy             = errors.New("state: busy")
	ErrEmergencyLockout = errors.New("state: emergency lockout")
)

// Machine holds the mode and the mode to restore when a self-test
// finishes. It is touched only from the control loop.
type Machine struct {
	mode       Mode
	policy     safety.Policy
	testReturn Mode
}

// New creates a machine in Idle under the given policy.
func New(policy safety.Policy) *Machine {
	return &Machine{mode: Idle, policy: policy}
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Apply validates ev against the current mode and verdict and performs
// the transition. On error the mode is unchanged. The caller halts
// output where the transition demands it; the machine tracks mode only.
func (m *Machine) Apply(ev Event, v safety.Verdict) error {
	next, err := m.transition(ev, v)
	if err != nil {
		return err
	}
	m.mode = next
	return nil
}

// transition is the single exhaustive (mode, event) table. Every event
// is handled for every mode; there are no guards elsewhere.
func (m *Machine) transition(ev Event, v safety.Verdict) (Mode, error) {
	// Emergency is terminal until the explicit reset.
	if m.mode == Emergency && ev != EventResetEmergency && ev != EventEmergency {
		return m.mode, ErrEmergencyLockout
	}

	switch ev {
	case EventArm:
		switch m.mode {
		case Idle:
			if m.policy == safety.Enforcing {
				if !v.SafetyEngaged {
					return m.mode, ErrNotSafetyEngaged
				}
				if v.Overheating {
					return m.mode, ErrOverheating
				}
			}
			return Armed, nil
		case Armed:
			return Armed, nil // already armed
		default:
			return m.mode, ErrBusy
		}

	case EventDisarm:
		return Idle, nil

	case EventStartCycle:
		if m.mode != Armed {
			return m.mode, ErrNotArmed
		}
		if m.policy == safety.Enforcing && v.Overheating {
			return m.mode, ErrOverheating
		}
		return Cycling, nil

	case EventStopCycle:
		if m.mode != Cycling {
			return m.mode, ErrNotCycling
		}
		return Armed, nil

	case EventStartTest:
		if m.mode != Idle && m.mode != Armed {
			return m.mode, ErrBusy
		}
		m.testReturn = m.mode
		return Test, nil

	case EventFinishTest:
		if m.mode != Test {
			return m.mode, ErrBusy
		}
		return m.testReturn, nil

	case EventEmergency:
		return Emergency, nil

	case EventResetEmergency:
		if m.mode != Emergency {
			return m.mode, ErrNotEmergency
		}
		return Idle, nil

	default:
		return m.mode, fmt.Errorf("state: unknown event %d", ev)
	}
}
