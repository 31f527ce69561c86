package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// Open opens or creates the SQLite database
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the database schema
func (db *DB) migrate() error {
	schema := `
	-- Cycling runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		pattern_name TEXT NOT NULL,
		target_name TEXT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		ended_at DATETIME,
		cycles INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Command audit trail
	CREATE TABLE IF NOT EXISTS command_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		line TEXT NOT NULL,
		response TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_command_audit_ts ON command_audit(timestamp);

	-- Safety events
	CREATE TABLE IF NOT EXISTS safety_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_safety_events_ts ON safety_events(timestamp);

	-- Sensor samples (temperature in 0.1C units, motion in g)
	CREATE TABLE IF NOT EXISTS sensor_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		temperature INTEGER,
		motion_x REAL,
		motion_y REAL,
		motion_z REAL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sensor_samples_ts ON sensor_samples(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// StartRun records the beginning of a cycling session and returns its ID.
func (db *DB) StartRun(patternName, targetName string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, pattern_name, target_name, started_at) VALUES (?, ?, ?, ?)`,
		id, patternName, targetName, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// UpdateRunCycles updates the completed-cycle count of an open run.
func (db *DB) UpdateRunCycles(id string, cycles uint32) error {
	_, err := db.conn.Exec(`UPDATE runs SET cycles = ? WHERE id = ?`, cycles, id)
	return err
}

// EndRun closes a run with its final cycle count.
func (db *DB) EndRun(id string, cycles uint32) error {
	_, err := db.conn.Exec(
		`UPDATE runs SET ended_at = ?, cycles = ? WHERE id = ?`,
		time.Now(), cycles, id,
	)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	rows, err := db.conn.Query(
		`SELECT id, pattern_name, COALESCE(target_name, ''), started_at, ended_at, cycles
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var ended sql.NullTime
		if err := rows.Scan(&r.ID, &r.PatternName, &r.TargetName, &r.StartedAt, &ended, &r.Cycles); err != nil {
			return nil, err
		}
		if ended.Valid {
			r.EndedAt = ended.Time
			r.Ended = true
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// InsertCommandAudit records one processed command line.
func (db *DB) InsertCommandAudit(a *CommandAudit) (int64, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	res, err := db.conn.Exec(
		`INSERT INTO command_audit (channel, line, response, timestamp) VALUES (?, ?, ?, ?)`,
		a.Channel, a.Line, a.Response, a.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert command audit: %w", err)
	}
	return res.LastInsertId()
}

// ListCommandAudit returns the most recent audit entries, newest first.
func (db *DB) ListCommandAudit(limit int) ([]*CommandAudit, error) {
	rows, err := db.conn.Query(
		`SELECT id, channel, line, response, timestamp
		 FROM command_audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*CommandAudit
	for rows.Next() {
		a := &CommandAudit{}
		if err := rows.Scan(&a.ID, &a.Channel, &a.Line, &a.Response, &a.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// InsertSafetyEvent records a safety escalation or recovery.
func (db *DB) InsertSafetyEvent(ev *SafetyEvent) (int64, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	res, err := db.conn.Exec(
		`INSERT INTO safety_events (kind, detail, timestamp) VALUES (?, ?, ?)`,
		ev.Kind, ev.Detail, ev.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert safety event: %w", err)
	}
	return res.LastInsertId()
}

// ListSafetyEvents returns the most recent safety events, newest first.
func (db *DB) ListSafetyEvents(limit int) ([]*SafetyEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, kind, COALESCE(detail, ''), timestamp
		 FROM safety_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SafetyEvent
	for rows.Next() {
		ev := &SafetyEvent{}
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Detail, &ev.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertSensorSample records one housekeeping reading.
func (db *DB) InsertSensorSample(s *SensorSample) (int64, error) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	res, err := db.conn.Exec(
		`INSERT INTO sensor_samples (temperature, motion_x, motion_y, motion_z, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		s.Temperature, s.MotionX, s.MotionY, s.MotionZ, s.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sensor sample: %w", err)
	}
	return res.LastInsertId()
}

// ListSensorSamples returns the most recent samples, newest first.
func (db *DB) ListSensorSamples(limit int) ([]*SensorSample, error) {
	rows, err := db.conn.Query(
		`SELECT id, temperature, motion_x, motion_y, motion_z, timestamp
		 FROM sensor_samples ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*SensorSample
	for rows.Next() {
		s := &SensorSample{}
		if err := rows.Scan(&s.ID, &s.Temperature, &s.MotionX, &s.MotionY, &s.MotionZ, &s.Timestamp); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Stats returns per-table row counts for the inspection CLI.
func (db *DB) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"runs", "command_audit", "safety_events", "sensor_samples"} {
		var count int64
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}
