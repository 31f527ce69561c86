package state

import (
	"errors"
	"testing"

	"github.com/irwp/wearable-controller/internal/safety"
)

var okVerdict = safety.Verdict{SafetyEngaged: true}

func TestArmRequiresSafetyEnforcing(t *testing.T) {
	m := New(safety.Enforcing)

	err := m.Apply(EventArm, safety.Verdict{SafetyEngaged: false})
	if !errors.Is(err, ErrNotSafetyEngaged) {
		t.Fatalf("Arm while disengaged: err = %v, want ErrNotSafetyEngaged", err)
	}
	if m.Mode() != Idle {
		t.Errorf("mode = %v after failed Arm, want Idle", m.Mode())
	}

	if err := m.Apply(EventArm, okVerdict); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if m.Mode() != Armed {
		t.Errorf("mode = %v, want Armed", m.Mode())
	}
}

func TestArmIgnoresSafetyAdvisory(t *testing.T) {
	m := New(safety.Advisory)
	if err := m.Apply(EventArm, safety.Verdict{SafetyEngaged: false, Overheating: true}); err != nil {
		t.Fatalf("advisory Arm blocked: %v", err)
	}
	if m.Mode() != Armed {
		t.Errorf("mode = %v, want Armed", m.Mode())
	}
}

func TestStartCycleGuard(t *testing.T) {
	m := New(safety.Enforcing)

	err := m.Apply(EventStartCycle, okVerdict)
	if !errors.Is(err, ErrNotArmed) {
		t.Fatalf("StartCycle from Idle: err = %v, want ErrNotArmed", err)
	}
	if m.Mode() != Idle {
		t.Errorf("mode changed on rejected StartCycle: %v", m.Mode())
	}

	m.Apply(EventArm, okVerdict)
	if err := m.Apply(EventStartCycle, okVerdict); err != nil {
		t.Fatalf("StartCycle: %v", err)
	}
	if m.Mode() != Cycling {
		t.Errorf("mode = %v, want Cycling", m.Mode())
	}

	if err := m.Apply(EventStopCycle, okVerdict); err != nil {
		t.Fatalf("StopCycle: %v", err)
	}
	if m.Mode() != Armed {
		t.Errorf("mode = %v after StopCycle, want Armed", m.Mode())
	}
}

func TestOverheatingBlocksArmAndStart(t *testing.T) {
	hot := safety.Verdict{SafetyEngaged: true, Overheating: true}

	m := New(safety.Enforcing)
	if err := m.Apply(EventArm, hot); !errors.Is(err, ErrOverheating) {
		t.Errorf("Arm while hot: err = %v, want ErrOverheating", err)
	}

	m.Apply(EventArm, okVerdict)
	if err := m.Apply(EventStartCycle, hot); !errors.Is(err, ErrOverheating) {
		t.Errorf("StartCycle while hot: err = %v, want ErrOverheating", err)
	}
}

func TestDisarmFromAnywhere(t *testing.T) {
	for _, setup := range [][]Event{
		{},
		{EventArm},
		{EventArm, EventStartCycle},
		{EventStartTest},
	} {
		m := New(safety.Enforcing)
		for _, ev := range setup {
			if err := m.Apply(ev, okVerdict); err != nil {
				t.Fatalf("setup %v: %v", setup, err)
			}
		}
		if err := m.Apply(EventDisarm, safety.Verdict{}); err != nil {
			t.Errorf("Disarm from %v: %v", setup, err)
		}
		if m.Mode() != Idle {
			t.Errorf("mode = %v after Disarm, want Idle", m.Mode())
		}
	}
}

func TestEmergencyFromAnyStateAndLockout(t *testing.T) {
	m := New(safety.Enforcing)
	m.Apply(EventArm, okVerdict)
	m.Apply(EventStartCycle, okVerdict)

	if err := m.Apply(EventEmergency, okVerdict); err != nil {
		t.Fatalf("Emergency: %v", err)
	}
	if m.Mode() != Emergency {
		t.Fatalf("mode = %v, want Emergency", m.Mode())
	}

	// Everything except the explicit reset is rejected.
	for _, ev := range []Event{EventArm, EventDisarm, EventStartCycle, EventStopCycle, EventStartTest, EventFinishTest} {
		if err := m.Apply(ev, okVerdict); !errors.Is(err, ErrEmergencyLockout) {
			t.Errorf("event %d in Emergency: err = %v, want ErrEmergencyLockout", ev, err)
		}
	}

	if err := m.Apply(EventResetEmergency, okVerdict); err != nil {
		t.Fatalf("ResetEmergency: %v", err)
	}
	if m.Mode() != Idle {
		t.Errorf("mode = %v after reset, want Idle", m.Mode())
	}
}

func TestResetOutsideEmergency(t *testing.T) {
	m := New(safety.Enforcing)
	if err := m.Apply(EventResetEmergency, okVerdict); !errors.Is(err, ErrNotEmergency) {
		t.Errorf("reset in Idle: err = %v, want ErrNotEmergency", err)
	}
}

func TestSelfTestRestoresEntryMode(t *testing.T) {
	// From Idle.
	m := New(safety.Enforcing)
	if err := m.Apply(EventStartTest, okVerdict); err != nil {
		t.Fatalf("StartTest: %v", err)
	}
	if m.Mode() != Test {
		t.Fatalf("mode = %v, want Test", m.Mode())
	}
	m.Apply(EventFinishTest, okVerdict)
	if m.Mode() != Idle {
		t.Errorf("mode = %v after test from Idle, want Idle", m.Mode())
	}

	// From Armed.
	m = New(safety.Enforcing)
	m.Apply(EventArm, okVerdict)
	m.Apply(EventStartTest, okVerdict)
	m.Apply(EventFinishTest, okVerdict)
	if m.Mode() != Armed {
		t.Errorf("mode = %v after test from Armed, want Armed", m.Mode())
	}

	// Not reachable from Cycling.
	m = New(safety.Enforcing)
	m.Apply(EventArm, okVerdict)
	m.Apply(EventStartCycle, okVerdict)
	if err := m.Apply(EventStartTest, okVerdict); !errors.Is(err, ErrBusy) {
		t.Errorf("StartTest while Cycling: err = %v, want ErrBusy", err)
	}
}
