// Package safety samples the physical safety inputs and derives the
// enforcement verdict the state machine consults on every transition.
// The emergency input is edge-latched: the watcher context only sets the
// latch, and all processing happens on the next control-loop tick.
package safety

import (
	"sync"
	"sync/atomic"

	"github.com/irwp/wearable-controller/internal/hal"
)

// Policy selects whether safety verdicts gate state transitions or are
// surfaced in status only. One configuration switch, one binary.
type Policy int

const (
	// Enforcing blocks arming while disengaged and escalates to
	// Emergency on disengagement or a latched emergency edge.
	Enforcing Policy = iota
	// Advisory surfaces verdicts in status but never blocks a
	// transition; the explicit EMERGENCY command still works.
	Advisory
)

// String returns the config-file spelling of the policy.
func (p Policy) String() string {
	if p == Advisory {
		return "advisory"
	}
	return "enforcing"
}

// DefaultTempThresholdC is the overheat threshold applied when the
// config file does not set one.
const DefaultTempThresholdC = 60.0

// Verdict is the monitor's per-tick output.
type Verdict struct {
	Emergency     bool
	SafetyEngaged bool
	Overheating   bool
}

// Monitor owns the emergency latch and the last temperature reading.
// The latch is the single value shared with the input-watcher context;
// everything else is touched only from the control loop.
type Monitor struct {
	inputs     hal.SafetyInputs
	policy     Policy
	thresholdC float64

	latch atomic.Bool

	mu      sync.Mutex
	tempC   float64
	hasTemp bool
}

// New creates a monitor over the given inputs.
func New(inputs hal.SafetyInputs, policy Policy, thresholdC float64) *Monitor {
	if thresholdC == 0 {
		thresholdC = DefaultTempThresholdC
	}
	return &Monitor{inputs: inputs, policy: policy, thresholdC: thresholdC}
}

// Policy returns the configured enforcement policy.
func (m *Monitor) Policy() Policy {
	return m.policy
}

// TriggerEmergency sets the latch. Safe to call from the input-watcher
// context; nothing else is touched there.
func (m *Monitor) TriggerEmergency() {
	m.latch.Store(true)
}

// ClearEmergency clears the latch. Only the explicit operator reset
// path calls this.
func (m *Monitor) ClearEmergency() {
	m.latch.Store(false)
}

// RecordTemperature stores the latest housekeeping reading. Called only
// from the control loop.
func (m *Monitor) RecordTemperature(c float64) {
	m.mu.Lock()
	m.tempC = c
	m.hasTemp = true
	m.mu.Unlock()
}

// Temperature returns the last recorded reading, if any.
func (m *Monitor) Temperature() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempC, m.hasTemp
}

// Sample reads the enable switch and the latch and derives the verdict.
// The verdict reports raw conditions regardless of policy; whether they
// block anything is the state machine's decision.
func (m *Monitor) Sample() Verdict {
	m.mu.Lock()
	overheating := m.hasTemp && m.tempC >= m.thresholdC
	m.mu.Unlock()

	return Verdict{
		Emergency:     m.latch.Load(),
		SafetyEngaged: m.inputs.EnableEngaged(),
		Overheating:   overheating,
	}
}
