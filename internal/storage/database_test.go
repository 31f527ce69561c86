package storage

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartRun("AGC_Lock_5_Second", "lobby-dome")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	if err := db.UpdateRunCycles(id, 3); err != nil {
		t.Fatalf("UpdateRunCycles: %v", err)
	}
	if err := db.EndRun(id, 5); err != nil {
		t.Fatalf("EndRun: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.PatternName != "AGC_Lock_5_Second" || r.TargetName != "lobby-dome" {
		t.Errorf("run = %+v", r)
	}
	if r.Cycles != 5 || !r.Ended {
		t.Errorf("run not closed correctly: cycles=%d ended=%v", r.Cycles, r.Ended)
	}
}

func TestCommandAudit(t *testing.T) {
	db := openTestDB(t)

	for _, line := range []string{"ARM", "START_CYCLE"} {
		if _, err := db.InsertCommandAudit(&CommandAudit{
			Channel:  "serial:/dev/ttyUSB0",
			Line:     line,
			Response: "ACK",
		}); err != nil {
			t.Fatalf("InsertCommandAudit: %v", err)
		}
	}

	entries, err := db.ListCommandAudit(10)
	if err != nil {
		t.Fatalf("ListCommandAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Line != "START_CYCLE" {
		t.Errorf("entries[0].Line = %q, want START_CYCLE", entries[0].Line)
	}
}

func TestSafetyEvents(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertSafetyEvent(&SafetyEvent{Kind: "emergency", Detail: "latched input"}); err != nil {
		t.Fatalf("InsertSafetyEvent: %v", err)
	}

	events, err := db.ListSafetyEvents(10)
	if err != nil {
		t.Fatalf("ListSafetyEvents: %v", err)
	}
	if len(events) != 1 || events[0].Kind != "emergency" {
		t.Errorf("events = %+v", events)
	}
}

func TestSensorSamples(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertSensorSample(&SensorSample{
		Temperature: 315, // 31.5C
		MotionX:     0.1, MotionY: -0.2, MotionZ: 0.98,
	}); err != nil {
		t.Fatalf("InsertSensorSample: %v", err)
	}

	samples, err := db.ListSensorSamples(10)
	if err != nil {
		t.Fatalf("ListSensorSamples: %v", err)
	}
	if len(samples) != 1 || samples[0].Temperature != 315 {
		t.Errorf("samples = %+v", samples)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	db.InsertSafetyEvent(&SafetyEvent{Kind: "reset"})

	stats, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["safety_events"] != 1 || stats["runs"] != 0 {
		t.Errorf("stats = %v", stats)
	}
}
