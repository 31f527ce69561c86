// Package cycle advances the active pattern through its phases on a
// polled wall-clock schedule. The engine never sleeps for a phase
// duration: it stores the next deadline and compares it against the
// clock on every control-loop tick, so commands and safety polling are
// never starved by a long phase.
package cycle

import (
	"log"
	"math/rand"
	"time"

	"github.com/irwp/wearable-controller/internal/hal"
	"github.com/irwp/wearable-controller/internal/pattern"
	"github.com/irwp/wearable-controller/internal/state"
)

// FlickerAll burst shape: a fixed-count alternating on/off sweep across
// all zones. At 50 steps of 500µs the burst is bounded to 25ms, the only
// blocking wait in the engine.
const (
	flickerSteps    = 50
	flickerStepTime = 500 * time.Microsecond
)

// Self-test sweep: one pass per zone, in order.
const (
	testStepTime  = 250 * time.Millisecond
	testIntensity = 128
)

// LED power model: 10 LEDs per zone at 30mA, 5V supply.
const (
	zoneCurrentA  = 0.3
	supplyVoltage = 5.0
)

// EventKind identifies an unsolicited engine event.
type EventKind int

const (
	// EventCycleComplete fires when the phase index wraps past the last
	// phase. Cycle carries the new completed-cycle count.
	EventCycleComplete EventKind = iota
	// EventTestComplete fires when the self-test sweep finishes.
	EventTestComplete
)

// Event is emitted by Tick for the engine loop to broadcast.
type Event struct {
	Kind  EventKind
	Cycle uint32
}

// Engine owns phase_index and cycle_start_tick exclusively. It is
// touched only from the control loop.
type Engine struct {
	zones hal.ZoneOutput
	clk   hal.Clock
	rng   *rand.Rand

	active     pattern.Pattern
	phaseIndex int
	deadline   time.Time
	cycleCount uint32

	levels [hal.NumZones]uint8

	testZone     int
	testDeadline time.Time
}

// New creates an engine with catalog entry 0 loaded.
func New(zones hal.ZoneOutput, clk hal.Clock) *Engine {
	return &Engine{
		zones:  zones,
		clk:    clk,
		rng:    rand.New(rand.NewSource(clk.Now().UnixNano())),
		active: pattern.Default(),
	}
}

// Active returns the active pattern.
func (e *Engine) Active() pattern.Pattern {
	return e.active
}

// CycleCount returns the completed-cycle count for the current session.
func (e *Engine) CycleCount() uint32 {
	return e.cycleCount
}

// PhaseIndex returns the current phase index.
func (e *Engine) PhaseIndex() int {
	return e.phaseIndex
}

// ZoneLevels returns the last intensities applied to each zone.
func (e *Engine) ZoneLevels() [hal.NumZones]uint8 {
	return e.levels
}

// LedPowerW computes the current output power from the active zone
// levels: per-zone duty x 0.3A x 5V.
func (e *Engine) LedPowerW() float64 {
	var watts float64
	for _, lvl := range e.levels {
		watts += float64(lvl) / 255.0 * zoneCurrentA * supplyVoltage
	}
	return watts
}

// Load replaces the active pattern atomically and resets the session
// counters. The caller validates the pattern first; Load never installs
// a partial value.
func (e *Engine) Load(p pattern.Pattern) {
	e.active = p.Clone()
	e.phaseIndex = 0
	e.cycleCount = 0
}

// StartCycle applies phase 0 immediately and schedules the first phase
// boundary.
func (e *Engine) StartCycle(now time.Time) {
	e.phaseIndex = 0
	e.cycleCount = 0
	e.applyPhase(e.active.Phases[0])
	e.deadline = now.Add(e.jittered(e.active.Phases[0]))
}

// StartSelfTest begins the per-zone sweep.
func (e *Engine) StartSelfTest(now time.Time) {
	e.testZone = 0
	e.setAll(0)
	e.setZone(0, testIntensity)
	e.testDeadline = now.Add(testStepTime)
}

// HaltOutput drives every zone to zero. Called on stop, disarm, and
// emergency; always wins over an in-progress phase.
func (e *Engine) HaltOutput() {
	e.setAll(0)
}

// SetZoneManual applies one operator-commanded zone level outside of a
// running cycle. zone 0..3 addresses one zone; hal.NumZones means all.
func (e *Engine) SetZoneManual(zone int, intensity uint8) {
	if zone == hal.NumZones {
		e.setAll(intensity)
		return
	}
	e.setZone(zone, intensity)
}

// Tick advances the schedule. It must be called every control-loop
// iteration; outside Cycling and Test it does nothing.
func (e *Engine) Tick(now time.Time, mode state.Mode) []Event {
	switch mode {
	case state.Cycling:
		return e.tickCycle(now)
	case state.Test:
		return e.tickTest(now)
	default:
		return nil
	}
}

func (e *Engine) tickCycle(now time.Time) []Event {
	if now.Before(e.deadline) {
		return nil
	}

	var events []Event
	e.phaseIndex++
	if e.phaseIndex >= len(e.active.Phases) {
		e.phaseIndex = 0
		e.cycleCount++
		events = append(events, Event{Kind: EventCycleComplete, Cycle: e.cycleCount})
	}

	next := e.active.Phases[e.phaseIndex]
	e.applyPhase(next)
	// Jitter perturbs the scheduling of the next boundary, never the
	// phase already run.
	e.deadline = now.Add(e.jittered(next))
	return events
}

func (e *Engine) tickTest(now time.Time) []Event {
	if now.Before(e.testDeadline) {
		return nil
	}

	e.setZone(e.testZone, 0)
	e.testZone++
	if e.testZone >= hal.NumZones {
		e.setAll(0)
		return []Event{{Kind: EventTestComplete}}
	}
	e.setZone(e.testZone, testIntensity)
	e.testDeadline = now.Add(testStepTime)
	return nil
}

// jittered computes the scheduled duration for a phase: the nominal
// duration scaled by a uniform factor in [1-j/100, 1+j/100].
func (e *Engine) jittered(ph pattern.Phase) time.Duration {
	ms := float64(ph.DurationMs)
	if ph.JitterPercent > 0 {
		j := float64(ph.JitterPercent) / 100.0
		ms *= 1.0 - j + 2.0*j*e.rng.Float64()
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func (e *Engine) applyPhase(ph pattern.Phase) {
	switch ph.Zone {
	case pattern.AllZones:
		e.setAll(ph.Intensity)
	case pattern.FlickerAll:
		e.flickerBurst(ph.Intensity)
	default:
		e.setZone(int(ph.Zone), ph.Intensity)
	}
}

// flickerBurst runs the bounded alternating on/off burst. The burst has
// no useful preemption point, so it blocks for its fixed ~25ms.
func (e *Engine) flickerBurst(intensity uint8) {
	for step := 0; step < flickerSteps; step++ {
		level := intensity
		if step%2 == 1 {
			level = 0
		}
		e.setAll(level)
		e.clk.Sleep(flickerStepTime)
	}
	e.setAll(0)
}

func (e *Engine) setZone(zone int, intensity uint8) {
	if err := e.zones.SetZone(zone, intensity); err != nil {
		log.Printf("Failed to set zone %d: %v", zone, err)
		return
	}
	e.levels[zone] = intensity
}

func (e *Engine) setAll(intensity uint8) {
	for z := 0; z < hal.NumZones; z++ {
		e.setZone(z, intensity)
	}
}
