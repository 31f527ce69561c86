package safety

import (
	"testing"

	"github.com/irwp/wearable-controller/internal/hal"
)

func TestSampleEngaged(t *testing.T) {
	in := hal.NewSimSafetyInputs()
	m := New(in, Enforcing, 0)

	v := m.Sample()
	if !v.SafetyEngaged || v.Emergency || v.Overheating {
		t.Errorf("verdict = %+v, want engaged and clear", v)
	}

	in.SetEngaged(false)
	if v := m.Sample(); v.SafetyEngaged {
		t.Error("disengaged switch not reflected in verdict")
	}
}

func TestEmergencyLatch(t *testing.T) {
	m := New(hal.NewSimSafetyInputs(), Enforcing, 0)

	m.TriggerEmergency()
	if !m.Sample().Emergency {
		t.Fatal("latch not set")
	}
	// The latch survives repeated samples until an explicit reset.
	if !m.Sample().Emergency {
		t.Fatal("latch cleared without reset")
	}

	m.ClearEmergency()
	if m.Sample().Emergency {
		t.Error("latch survived reset")
	}
}

func TestOverheating(t *testing.T) {
	m := New(hal.NewSimSafetyInputs(), Enforcing, 60)

	// No reading yet: never overheating.
	if m.Sample().Overheating {
		t.Error("overheating without a temperature reading")
	}

	m.RecordTemperature(59.9)
	if m.Sample().Overheating {
		t.Error("overheating below threshold")
	}

	m.RecordTemperature(60.0)
	if !m.Sample().Overheating {
		t.Error("not overheating at threshold")
	}

	if c, ok := m.Temperature(); !ok || c != 60.0 {
		t.Errorf("Temperature = %v, %v, want 60, true", c, ok)
	}
}

func TestPolicyString(t *testing.T) {
	if Enforcing.String() != "enforcing" || Advisory.String() != "advisory" {
		t.Error("policy strings do not match config spelling")
	}
}
