// Package configstore persists the operator configuration (active pattern
// and active target) across power cycles. Records live at fixed,
// non-overlapping offsets in an EEPROM-style region; a corrupt or
// never-written record is replaced by safe defaults on load, never
// propagated into runtime state.
package configstore

import (
	"fmt"
	"log"

	"github.com/irwp/wearable-controller/internal/hal"
	"github.com/irwp/wearable-controller/internal/pattern"
)

// Region layout. Offsets are stable across firmware revisions; new
// optional fields go inside the versioned record payloads, not here.
const (
	TargetOffset  = 0
	TargetRegion  = 64
	PatternOffset = 128
	PatternRegion = 256

	// RegionSize is the total persistence region the store requires.
	RegionSize = 1024
)

// PersistedConfig is the only data that outlives a restart.
type PersistedConfig struct {
	ActivePattern pattern.Pattern
	ActiveTarget  pattern.TargetProfile
}

// DefaultConfig is the first-boot configuration: catalog entry 0 and an
// empty target.
func DefaultConfig() PersistedConfig {
	return PersistedConfig{ActivePattern: pattern.Default()}
}

// Store reads and writes PersistedConfig through the persistence
// capability. There is exactly one writer context (the command
// dispatcher, synchronous with the control loop), so the store itself
// carries no locking.
type Store struct {
	p hal.Persistence
}

// New creates a store over the given persistence region.
func New(p hal.Persistence) *Store {
	return &Store{p: p}
}

// Save writes both records and flushes. Save is not complete until the
// data is durable; callers must not emit a command response before Save
// returns.
func (s *Store) Save(cfg PersistedConfig) error {
	patRec, err := cfg.ActivePattern.EncodePattern()
	if err != nil {
		return fmt.Errorf("configstore: encode pattern: %w", err)
	}
	tgtRec, err := cfg.ActiveTarget.EncodeTarget()
	if err != nil {
		return fmt.Errorf("configstore: encode target: %w", err)
	}

	if err := s.p.Write(TargetOffset, tgtRec); err != nil {
		return fmt.Errorf("configstore: write target record: %w", err)
	}
	if err := s.p.Write(PatternOffset, patRec); err != nil {
		return fmt.Errorf("configstore: write pattern record: %w", err)
	}
	if err := s.p.Flush(); err != nil {
		return fmt.Errorf("configstore: flush: %w", err)
	}
	return nil
}

// Load reads both records. A record that fails its magic, CRC, or the
// pattern invariant is replaced by the default (catalog entry 0, empty
// target) with a recovery log line; Load only errors when the medium
// itself is unreadable.
func (s *Store) Load() (PersistedConfig, error) {
	cfg := DefaultConfig()

	patRaw, err := s.p.Read(PatternOffset, pattern.PatternRecordSize)
	if err != nil {
		return cfg, fmt.Errorf("configstore: read pattern region: %w", err)
	}
	if pat, err := pattern.DecodePattern(patRaw); err != nil {
		log.Printf("Recovered persisted pattern to %q: %v", cfg.ActivePattern.Name, err)
	} else {
		cfg.ActivePattern = pat
	}

	tgtRaw, err := s.p.Read(TargetOffset, pattern.TargetRecordSize)
	if err != nil {
		return cfg, fmt.Errorf("configstore: read target region: %w", err)
	}
	if tgt, err := pattern.DecodeTarget(tgtRaw); err != nil {
		log.Printf("Recovered persisted target to default: %v", err)
	} else {
		cfg.ActiveTarget = tgt
	}

	return cfg, nil
}

// FactoryReset zero-fills both record regions and flushes. It does not
// touch in-memory runtime state; the cleared configuration takes effect
// on the next restart, when Load recovers to defaults.
func (s *Store) FactoryReset() error {
	if err := s.p.Write(TargetOffset, make([]byte, TargetRegion)); err != nil {
		return fmt.Errorf("configstore: clear target region: %w", err)
	}
	if err := s.p.Write(PatternOffset, make([]byte, PatternRegion)); err != nil {
		return fmt.Errorf("configstore: clear pattern region: %w", err)
	}
	if err := s.p.Flush(); err != nil {
		return fmt.Errorf("configstore: flush: %w", err)
	}
	return nil
}
