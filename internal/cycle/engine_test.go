package cycle

import (
	"testing"
	"time"

	"github.com/irwp/wearable-controller/internal/hal"
	"github.com/irwp/wearable-controller/internal/pattern"
	"github.com/irwp/wearable-controller/internal/state"
)

func newTestEngine(t *testing.T) (*Engine, *hal.SimZoneOutput, *hal.SimClock) {
	t.Helper()
	zones := hal.NewSimZoneOutput()
	clk := hal.NewSimClock(time.Unix(1700000000, 0))
	return New(zones, clk), zones, clk
}

func threeStep() pattern.Pattern {
	return pattern.Pattern{
		Name: "three_step",
		Phases: []pattern.Phase{
			{Zone: pattern.Zone0, DurationMs: 100, Intensity: 255},
			{Zone: pattern.Zone1, DurationMs: 200, Intensity: 128},
			{Zone: pattern.AllZones, DurationMs: 300, Intensity: 0},
		},
		RepeatCount: 1,
		Enabled:     true,
	}
}

func TestCycleCompletion(t *testing.T) {
	e, _, clk := newTestEngine(t)
	e.Load(threeStep())
	e.StartCycle(clk.Now())

	if e.PhaseIndex() != 0 || e.CycleCount() != 0 {
		t.Fatalf("after StartCycle: index=%d count=%d, want 0/0", e.PhaseIndex(), e.CycleCount())
	}

	// Exactly phase_count advances wrap the index and bump the count once.
	var events []Event
	for _, d := range []time.Duration{100, 200, 300} {
		clk.Advance(d * time.Millisecond)
		events = append(events, e.Tick(clk.Now(), state.Cycling)...)
	}

	if e.PhaseIndex() != 0 {
		t.Errorf("phase index = %d after full pass, want 0", e.PhaseIndex())
	}
	if e.CycleCount() != 1 {
		t.Errorf("cycle count = %d after full pass, want 1", e.CycleCount())
	}
	if len(events) != 1 || events[0].Kind != EventCycleComplete || events[0].Cycle != 1 {
		t.Errorf("events = %+v, want one CycleComplete with cycle 1", events)
	}
}

func TestCatalogEntry0FullPass(t *testing.T) {
	// ARM/START_CYCLE scenario: pattern 0 has 9 phases summing to 5400ms;
	// after that elapses once the cycle count is exactly 1.
	e, _, clk := newTestEngine(t)
	e.Load(pattern.Default())
	e.StartCycle(clk.Now())

	total := time.Duration(e.Active().TotalDurationMs()) * time.Millisecond
	stepSize := 10 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < total; elapsed += stepSize {
		clk.Advance(stepSize)
		e.Tick(clk.Now(), state.Cycling)
	}

	if e.CycleCount() != 1 {
		t.Errorf("cycle count = %d after %v, want 1", e.CycleCount(), total)
	}
}

func TestTickIgnoresOtherModes(t *testing.T) {
	e, zones, clk := newTestEngine(t)
	e.Load(threeStep())
	e.StartCycle(clk.Now())

	before := zones.WriteCount()
	clk.Advance(10 * time.Second)
	for _, mode := range []state.Mode{state.Idle, state.Armed, state.Emergency} {
		if events := e.Tick(clk.Now(), mode); events != nil {
			t.Errorf("Tick in %v produced events %v", mode, events)
		}
	}
	if zones.WriteCount() != before {
		t.Error("Tick outside Cycling/Test touched the zone output")
	}
}

func TestPhaseOutputApplied(t *testing.T) {
	e, zones, clk := newTestEngine(t)
	e.Load(threeStep())
	e.StartCycle(clk.Now())

	if got := zones.Levels(); got[0] != 255 {
		t.Errorf("phase 0 levels = %v, want zone 0 at 255", got)
	}

	clk.Advance(100 * time.Millisecond)
	e.Tick(clk.Now(), state.Cycling)
	if got := zones.Levels(); got[1] != 128 || got[0] != 255 {
		t.Errorf("phase 1 levels = %v, want zone 1 at 128 and zone 0 held", got)
	}

	clk.Advance(200 * time.Millisecond)
	e.Tick(clk.Now(), state.Cycling)
	if got := zones.Levels(); got != [hal.NumZones]uint8{} {
		t.Errorf("AllZones@0 levels = %v, want all zero", got)
	}
}

func TestHaltOutput(t *testing.T) {
	e, zones, clk := newTestEngine(t)
	e.Load(threeStep())
	e.StartCycle(clk.Now())

	e.HaltOutput()
	if got := zones.Levels(); got != [hal.NumZones]uint8{} {
		t.Errorf("levels after halt = %v, want all zero", got)
	}
	if e.LedPowerW() != 0 {
		t.Errorf("LedPowerW = %v after halt, want 0", e.LedPowerW())
	}
}

func TestJitterBound(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ph := pattern.Phase{Zone: pattern.Zone0, DurationMs: 1000, Intensity: 255, JitterPercent: 30}
	lo := 700 * time.Millisecond
	hi := 1300 * time.Millisecond

	for i := 0; i < 1000; i++ {
		d := e.jittered(ph)
		if d < lo || d > hi {
			t.Fatalf("jittered = %v, want within [%v, %v]", d, lo, hi)
		}
	}

	// Zero jitter is exact.
	ph.JitterPercent = 0
	if d := e.jittered(ph); d != time.Second {
		t.Errorf("jittered with 0%% = %v, want 1s", d)
	}
}

func TestFlickerBurstBounded(t *testing.T) {
	e, zones, clk := newTestEngine(t)
	e.Load(pattern.Pattern{
		Name:        "flicker",
		Phases:      []pattern.Phase{{Zone: pattern.FlickerAll, DurationMs: 100, Intensity: 200}},
		RepeatCount: 1,
		Enabled:     true,
	})

	start := clk.Now()
	e.StartCycle(start)

	// 50 steps of 500µs: the burst blocks for exactly 25ms and ends with
	// every zone off.
	if got := clk.Now().Sub(start); got != 25*time.Millisecond {
		t.Errorf("burst blocked %v, want 25ms", got)
	}
	if got := zones.Levels(); got != [hal.NumZones]uint8{} {
		t.Errorf("levels after burst = %v, want all zero", got)
	}
	// 50 alternating steps plus the final clear, all four zones each.
	if got := zones.WriteCount(); got != (flickerSteps+1)*hal.NumZones {
		t.Errorf("writes = %d, want %d", got, (flickerSteps+1)*hal.NumZones)
	}
}

func TestSelfTestSweep(t *testing.T) {
	e, zones, clk := newTestEngine(t)
	e.StartSelfTest(clk.Now())

	if got := zones.Levels(); got[0] != testIntensity {
		t.Fatalf("sweep start levels = %v, want zone 0 at %d", got, testIntensity)
	}

	var done bool
	for i := 0; i < hal.NumZones; i++ {
		clk.Advance(testStepTime)
		for _, ev := range e.Tick(clk.Now(), state.Test) {
			if ev.Kind == EventTestComplete {
				done = true
			}
		}
	}

	if !done {
		t.Error("sweep did not complete after four steps")
	}
	if got := zones.Levels(); got != [hal.NumZones]uint8{} {
		t.Errorf("levels after sweep = %v, want all zero", got)
	}
}

func TestLoadResetsCounters(t *testing.T) {
	e, _, clk := newTestEngine(t)
	e.Load(threeStep())
	e.StartCycle(clk.Now())

	clk.Advance(700 * time.Millisecond)
	e.Tick(clk.Now(), state.Cycling)

	e.Load(pattern.Default())
	if e.PhaseIndex() != 0 || e.CycleCount() != 0 {
		t.Errorf("after Load: index=%d count=%d, want 0/0", e.PhaseIndex(), e.CycleCount())
	}
}

func TestLoadCopiesPattern(t *testing.T) {
	e, _, _ := newTestEngine(t)
	p := threeStep()
	e.Load(p)
	p.Phases[0].Intensity = 1
	if e.Active().Phases[0].Intensity == 1 {
		t.Error("Load shared phase storage with the caller")
	}
}

func TestLedPower(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.SetZoneManual(hal.NumZones, 255) // all zones full

	// Four zones at full duty: 4 x 0.3A x 5V = 6W.
	if got := e.LedPowerW(); got != 6.0 {
		t.Errorf("LedPowerW = %v, want 6.0", got)
	}
}
