// Package command parses newline-terminated ASCII commands, executes
// them against the state machine, cycle engine, and configuration store,
// and renders the textual acknowledgements and the status record. It is
// the only writer of mode transitions.
package command

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/irwp/wearable-controller/internal/configstore"
	"github.com/irwp/wearable-controller/internal/cycle"
	"github.com/irwp/wearable-controller/internal/hal"
	"github.com/irwp/wearable-controller/internal/pattern"
	"github.com/irwp/wearable-controller/internal/safety"
	"github.com/irwp/wearable-controller/internal/state"
)

// Response tokens. These are the wire contract; clients match them
// verbatim.
const (
	RespArmed            = "ACK_ARMED"
	RespDisarmed         = "ACK_DISARMED"
	RespCycleStarted     = "CYCLE_STARTED"
	RespCycleStopped     = "CYCLE_STOPPED"
	RespEmergencyStopped = "EMERGENCY_STOPPED"
	RespEmergencyCleared = "EMERGENCY_CLEARED"
	RespConfigCleared    = "CONFIG_CLEARED"
	RespPong             = "PONG"
	RespIdentify         = "IRWP_GO_v3.0"
	RespAllOff           = "ACK_ALL_OFF"
	RespZoneSet          = "ZONE_SET"
	RespTestStarted      = "TEST_STARTED"
	RespTestComplete     = "TEST_COMPLETE"

	ErrUnknownCommand   = "ERROR_UNKNOWN_COMMAND"
	ErrSafetyDisabled   = "ERROR_SAFETY_DISABLED"
	ErrNotArmed         = "ERROR_NOT_ARMED"
	ErrNotCycling       = "ERROR_NOT_CYCLING"
	ErrInvalidPattern   = "ERROR_INVALID_PATTERN"
	ErrInvalidTarget    = "ERROR_INVALID_TARGET"
	ErrInvalidZone      = "ERROR_INVALID_ZONE"
	ErrNotEmergency     = "ERROR_NOT_EMERGENCY"
	ErrBusy             = "ERROR_BUSY"
	ErrEmergencyLockout = "ERROR_EMERGENCY_LOCKOUT"
)

// Platform is the hosting-target identifier reported in status.
const Platform = "IRWP_GO"

// Dispatcher executes one command line at a time. It runs synchronously
// with the control loop; a mode-changing command is fully applied,
// persistence included, before its response string is returned.
type Dispatcher struct {
	machine *state.Machine
	engine  *cycle.Engine
	store   *configstore.Store
	monitor *safety.Monitor

	target pattern.TargetProfile
	clk    hal.Clock
}

// New creates a dispatcher. cfg is the configuration recovered at
// startup; its pattern is loaded into the cycle engine.
func New(machine *state.Machine, engine *cycle.Engine, store *configstore.Store,
	monitor *safety.Monitor, clk hal.Clock, cfg configstore.PersistedConfig) *Dispatcher {
	engine.Load(cfg.ActivePattern)
	return &Dispatcher{
		machine: machine,
		engine:  engine,
		store:   store,
		monitor: monitor,
		target:  cfg.ActiveTarget,
		clk:     clk,
	}
}

// ActiveTarget returns the current target profile.
func (d *Dispatcher) ActiveTarget() pattern.TargetProfile {
	return d.target
}

// Execute parses and runs one command line, returning the response line.
// Surrounding whitespace and CRLF are tolerated. An empty line returns
// an empty response, which the caller drops.
func (d *Dispatcher) Execute(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	keyword, arg := line, ""
	if i := strings.IndexByte(line, ':'); i >= 0 {
		keyword, arg = line[:i], line[i+1:]
	}

	// In Emergency only status, liveness, and the explicit reset pass.
	if d.machine.Mode() == state.Emergency {
		switch keyword {
		case "GET_STATUS", "PING", "IDENTIFY", "RESET_EMERGENCY":
		default:
			return ErrEmergencyLockout
		}
	}

	switch keyword {
	case "ARM":
		return d.arm()
	case "DISARM":
		return d.disarm()
	case "START_CYCLE":
		return d.startCycle()
	case "STOP_CYCLE":
		return d.stopCycle()
	case "LOAD_PATTERN":
		return d.loadPattern(arg)
	case "SET_TARGET":
		return d.setTarget(arg)
	case "GET_STATUS":
		return d.status()
	case "EMERGENCY":
		return d.emergency()
	case "RESET_EMERGENCY":
		return d.resetEmergency()
	case "FACTORY_RESET":
		return d.factoryReset()
	case "PING":
		return RespPong
	case "IDENTIFY":
		return RespIdentify
	case "ALL_OFF":
		d.engine.HaltOutput()
		return RespAllOff
	case "SET_ZONE":
		return d.setZone(arg)
	case "SELF_TEST":
		return d.selfTest()
	default:
		return ErrUnknownCommand
	}
}

func (d *Dispatcher) arm() string {
	if err := d.machine.Apply(state.EventArm, d.monitor.Sample()); err != nil {
		switch {
		case errors.Is(err, state.ErrNotSafetyEngaged), errors.Is(err, state.ErrOverheating):
			return ErrSafetyDisabled
		default:
			return ErrBusy
		}
	}
	d.persist()
	return RespArmed
}

func (d *Dispatcher) disarm() string {
	if err := d.machine.Apply(state.EventDisarm, d.monitor.Sample()); err != nil {
		return ErrEmergencyLockout
	}
	d.engine.HaltOutput()
	d.persist()
	return RespDisarmed
}

func (d *Dispatcher) startCycle() string {
	if err := d.machine.Apply(state.EventStartCycle, d.monitor.Sample()); err != nil {
		if errors.Is(err, state.ErrOverheating) {
			return ErrSafetyDisabled
		}
		return ErrNotArmed
	}
	d.engine.StartCycle(d.clk.Now())
	return RespCycleStarted
}

func (d *Dispatcher) stopCycle() string {
	if err := d.machine.Apply(state.EventStopCycle, d.monitor.Sample()); err != nil {
		return ErrNotCycling
	}
	d.engine.HaltOutput()
	return RespCycleStopped
}

func (d *Dispatcher) loadPattern(arg string) string {
	// Parsed as signed so negative indices are rejected, not wrapped.
	idx, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return ErrInvalidPattern
	}
	p, err := pattern.ByIndex(idx)
	if err != nil {
		// Out of range: the active pattern is left untouched.
		return ErrInvalidPattern
	}
	d.engine.Load(p)
	if d.machine.Mode() == state.Cycling {
		// A reload mid-cycle restarts the schedule from phase 0.
		d.engine.StartCycle(d.clk.Now())
	}
	d.persist()
	return fmt.Sprintf("PATTERN_LOADED:%s", p.Name)
}

func (d *Dispatcher) setTarget(arg string) string {
	t := pattern.TargetProfile{Name: strings.TrimSpace(arg)}
	if err := t.Validate(); err != nil {
		return ErrInvalidTarget
	}
	d.target = t
	d.persist()
	return fmt.Sprintf("TARGET_SET:%s", t.Name)
}

func (d *Dispatcher) emergency() string {
	// The trigger is unconditional; it latches until the explicit reset.
	d.monitor.TriggerEmergency()
	d.machine.Apply(state.EventEmergency, d.monitor.Sample())
	d.engine.HaltOutput()
	return RespEmergencyStopped
}

func (d *Dispatcher) resetEmergency() string {
	if err := d.machine.Apply(state.EventResetEmergency, d.monitor.Sample()); err != nil {
		return ErrNotEmergency
	}
	d.monitor.ClearEmergency()
	return RespEmergencyCleared
}

func (d *Dispatcher) factoryReset() string {
	if err := d.store.FactoryReset(); err != nil {
		log.Printf("Factory reset failed: %v", err)
	}
	// In-memory state is deliberately untouched; the cleared config
	// takes effect on the next restart.
	return RespConfigCleared
}

func (d *Dispatcher) setZone(arg string) string {
	mode := d.machine.Mode()
	if mode != state.Armed && mode != state.Test {
		return ErrNotArmed
	}

	parts := strings.SplitN(arg, ",", 2)
	if len(parts) != 2 {
		return ErrInvalidZone
	}
	zone, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || zone < 0 || zone > hal.NumZones {
		return ErrInvalidZone
	}
	intensity, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || intensity < 0 || intensity > 255 {
		return ErrInvalidZone
	}

	d.engine.SetZoneManual(zone, uint8(intensity))
	return RespZoneSet
}

func (d *Dispatcher) selfTest() string {
	if err := d.machine.Apply(state.EventStartTest, d.monitor.Sample()); err != nil {
		return ErrBusy
	}
	d.engine.StartSelfTest(d.clk.Now())
	return RespTestStarted
}

// persist writes the active configuration. A persistence failure is
// logged and never surfaced as a command failure; the loop continues.
func (d *Dispatcher) persist() {
	cfg := configstore.PersistedConfig{
		ActivePattern: d.engine.Active(),
		ActiveTarget:  d.target,
	}
	if err := d.store.Save(cfg); err != nil {
		log.Printf("Failed to persist config: %v", err)
	}
}
