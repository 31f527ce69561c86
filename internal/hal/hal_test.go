package hal

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func TestFilePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")

	p, err := OpenFilePersistence(path, 1024)
	if err != nil {
		t.Fatalf("OpenFilePersistence: %v", err)
	}

	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := p.Write(128, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	p.Close()

	// Reopen, simulating a restart.
	p, err = OpenFilePersistence(path, 1024)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p.Close()

	got, err := p.Read(128, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = % X, want % X", got, data)
	}
}

func TestFilePersistenceZeroFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")
	p, err := OpenFilePersistence(path, 64)
	if err != nil {
		t.Fatalf("OpenFilePersistence: %v", err)
	}
	defer p.Close()

	got, err := p.Read(0, 64)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = 0x%02X, want 0 on fresh region", i, b)
		}
	}
}

func TestFilePersistenceBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.bin")
	p, err := OpenFilePersistence(path, 64)
	if err != nil {
		t.Fatalf("OpenFilePersistence: %v", err)
	}
	defer p.Close()

	if _, err := p.Read(60, 8); err == nil {
		t.Error("Read past end should fail")
	}
	if err := p.Write(-1, []byte{1}); err == nil {
		t.Error("Write at negative offset should fail")
	}
}

func TestSimZoneOutput(t *testing.T) {
	z := NewSimZoneOutput()
	if err := z.SetZone(2, 200); err != nil {
		t.Fatalf("SetZone: %v", err)
	}
	if got := z.Levels(); got[2] != 200 || got[0] != 0 {
		t.Errorf("Levels = %v, want zone 2 at 200 only", got)
	}
	if err := z.SetZone(4, 1); err == nil {
		t.Error("SetZone(4) should fail")
	}
}

func TestSimClockAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewSimClock(start)
	c.Advance(250 * time.Millisecond)
	c.Sleep(250 * time.Millisecond)
	if got := c.Now().Sub(start); got != 500*time.Millisecond {
		t.Errorf("elapsed = %v, want 500ms", got)
	}
}

func TestSimSafetyInputsEmergencyEdge(t *testing.T) {
	in := NewSimSafetyInputs()
	if in.EmergencyPressed() {
		t.Error("emergency should start clear")
	}
	in.PressEmergency()
	if !in.EmergencyPressed() {
		t.Error("press not observed")
	}
	if in.EmergencyPressed() {
		t.Error("edge should auto-clear after one read")
	}
}
