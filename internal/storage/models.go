// Package storage provides the SQLite telemetry log for the controller:
// cycling runs, a command audit trail, safety events, and sensor samples.
package storage

import "time"

// Run is one cycling session: from START_CYCLE until the cycle stops,
// the operator disarms, or an emergency halts output.
type Run struct {
	ID          string    `json:"id"` // UUID
	PatternName string    `json:"pattern_name"`
	TargetName  string    `json:"target_name"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	Cycles      uint32    `json:"cycles"`
	Ended       bool      `json:"ended"`
}

// CommandAudit is one processed command line and its response.
type CommandAudit struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Line      string    `json:"line"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// SafetyEvent records a safety escalation or recovery.
type SafetyEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // emergency, disengaged, overheat, reset
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorSample is one housekeeping reading.
type SensorSample struct {
	ID          int64     `json:"id"`
	Temperature int16     `json:"temperature"` // 0.1°C units
	MotionX     float32   `json:"motion_x"`
	MotionY     float32   `json:"motion_y"`
	MotionZ     float32   `json:"motion_z"`
	Timestamp   time.Time `json:"timestamp"`
}
