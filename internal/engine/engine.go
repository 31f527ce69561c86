// Package engine owns the control loop that drives the wearable
// countermeasure controller: safety sampling, command dispatch, cycle
// scheduling, and housekeeping all execute sequentially inside one
// goroutine. The only value shared with another context is the
// emergency latch, set by the input watcher.
package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/irwp/wearable-controller/internal/command"
	"github.com/irwp/wearable-controller/internal/configstore"
	"github.com/irwp/wearable-controller/internal/cycle"
	"github.com/irwp/wearable-controller/internal/hal"
	"github.com/irwp/wearable-controller/internal/safety"
	"github.com/irwp/wearable-controller/internal/state"
	"github.com/irwp/wearable-controller/internal/storage"
	"github.com/irwp/wearable-controller/internal/transport"
)

// Config holds engine configuration
type Config struct {
	DatabasePath string
	PersistPath  string

	// Transports. An empty value disables that channel; at least one
	// must be configured.
	Serial      transport.PortOptions
	WSListen    string
	ZMQEndpoint string

	SafetyPolicy   safety.Policy
	TempThresholdC float64

	TickInterval   time.Duration
	TempInterval   time.Duration
	MotionInterval time.Duration

	// Hardware capabilities. Nil fields fall back to the simulated
	// implementations, used on host targets and in tests.
	Zones   hal.ZoneOutput
	Clock   hal.Clock
	Sensors hal.SensorSource
	Inputs  hal.SafetyInputs
	Persist hal.Persistence
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		DatabasePath:   "/var/lib/irwp/telemetry.db",
		PersistPath:    "/var/lib/irwp/config.bin",
		SafetyPolicy:   safety.Enforcing,
		TempThresholdC: safety.DefaultTempThresholdC,
		TickInterval:   5 * time.Millisecond,
		TempInterval:   5 * time.Second,
		MotionInterval: 1 * time.Second,
	}
}

// Engine wires the components together and runs the control loop.
type Engine struct {
	config     Config
	db         *storage.DB
	store      *configstore.Store
	monitor    *safety.Monitor
	machine    *state.Machine
	cycle      *cycle.Engine
	dispatcher *command.Dispatcher

	clk     hal.Clock
	sensors hal.SensorSource
	inputs  hal.SafetyInputs
	persist hal.Persistence

	channels []transport.Channel
	lines    chan transport.Line

	stopChan chan struct{}
	wg       sync.WaitGroup

	// Loop-local bookkeeping, touched only from the loop goroutine.
	runID      string
	lastTempAt time.Time
	lastMoveAt time.Time
	lastTempC  float64
}

// New creates an engine instance, recovers the persisted configuration,
// and opens the configured transports without starting them.
func New(config Config) (*Engine, error) {
	db, err := storage.Open(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	e := &Engine{
		config:   config,
		db:       db,
		clk:      config.Clock,
		sensors:  config.Sensors,
		inputs:   config.Inputs,
		persist:  config.Persist,
		lines:    make(chan transport.Line, 64),
		stopChan: make(chan struct{}),
	}
	if e.clk == nil {
		e.clk = hal.RealClock{}
	}
	if e.sensors == nil {
		e.sensors = hal.NewSimSensors()
	}
	if e.inputs == nil {
		e.inputs = hal.NewSimSafetyInputs()
	}
	if e.persist == nil {
		fp, err := hal.OpenFilePersistence(config.PersistPath, configstore.RegionSize)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open persistence region: %w", err)
		}
		e.persist = fp
	}

	zones := config.Zones
	if zones == nil {
		zones = hal.NewSimZoneOutput()
	}

	e.store = configstore.New(e.persist)
	e.monitor = safety.New(e.inputs, config.SafetyPolicy, config.TempThresholdC)
	e.machine = state.New(config.SafetyPolicy)
	e.cycle = cycle.New(zones, e.clk)

	// One-time fallback to defaults when the medium is unreadable; the
	// loop never runs with undefined state.
	cfg, err := e.store.Load()
	if err != nil {
		log.Printf("Persisted config unreadable, using defaults: %v", err)
		cfg = configstore.DefaultConfig()
	}
	e.dispatcher = command.New(e.machine, e.cycle, e.store, e.monitor, e.clk, cfg)
	log.Printf("Recovered config: pattern=%q target=%q policy=%s",
		cfg.ActivePattern.Name, cfg.ActiveTarget.Name, config.SafetyPolicy)

	if config.Serial.Device != "" {
		ch, err := transport.OpenSerial(config.Serial)
		if err != nil {
			e.closeResources()
			return nil, err
		}
		e.channels = append(e.channels, ch)
	}
	if config.WSListen != "" {
		e.channels = append(e.channels, transport.NewWSChannel(config.WSListen))
	}
	if config.ZMQEndpoint != "" {
		e.channels = append(e.channels, transport.NewZMQChannel(config.ZMQEndpoint))
	}

	return e, nil
}

// AddChannel registers an extra command channel. Must be called before
// Start; tests use it to attach mock channels.
func (e *Engine) AddChannel(ch transport.Channel) {
	e.channels = append(e.channels, ch)
}

// Start starts the transports, the emergency input watcher, and the
// control loop.
func (e *Engine) Start(ctx context.Context) error {
	if len(e.channels) == 0 {
		return fmt.Errorf("no command channels configured")
	}
	for _, ch := range e.channels {
		if err := ch.Start(e.lines); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", ch.Name(), err)
		}
	}

	e.wg.Add(1)
	go e.watchEmergencyInput(ctx)

	e.wg.Add(1)
	go e.run(ctx)

	log.Println("Engine started")
	return nil
}

// Stop stops the engine
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	for _, ch := range e.channels {
		if err := ch.Stop(); err != nil {
			log.Printf("Error stopping channel %s: %v", ch.Name(), err)
		}
	}

	e.closeResources()
	log.Println("Engine stopped")
	return nil
}

func (e *Engine) closeResources() {
	if closer, ok := e.persist.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Printf("Error closing persistence region: %v", err)
		}
	}
	if err := e.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

// watchEmergencyInput is the one context allowed to run alongside the
// loop. It samples the emergency edge and sets the latch; nothing else
// is touched here, so no further locking exists anywhere.
func (e *Engine) watchEmergencyInput(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.inputs.EmergencyPressed() {
				e.monitor.TriggerEmergency()
			}
		}
	}
}

// run is the control loop. Iteration order: safety sample, command
// drain, cycle tick, housekeeping.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			e.cycle.HaltOutput()
			return
		case <-ctx.Done():
			e.cycle.HaltOutput()
			return
		case <-ticker.C:
			e.iterate()
		}
	}
}

func (e *Engine) iterate() {
	now := e.clk.Now()

	verdict := e.monitor.Sample()
	e.enforceSafety(verdict)

	// Drain everything queued by the channel readers. The shared queue
	// preserves arrival order, so no channel can starve another.
drain:
	for {
		select {
		case ln := <-e.lines:
			e.handleLine(ln)
		default:
			break drain
		}
	}

	for _, ev := range e.cycle.Tick(now, e.machine.Mode()) {
		e.handleCycleEvent(ev)
	}

	e.housekeeping(now)
}

// enforceSafety escalates on the sampled verdict. Under the advisory
// policy verdicts are status-only and nothing here fires.
func (e *Engine) enforceSafety(v safety.Verdict) {
	if e.monitor.Policy() != safety.Enforcing {
		return
	}
	mode := e.machine.Mode()
	if mode == state.Emergency {
		return
	}

	if v.Emergency || (!v.SafetyEngaged && mode != state.Idle) {
		kind := "emergency"
		if !v.Emergency {
			kind = "disengaged"
			// Disengagement escalates like the latch would; arm again
			// requires the explicit reset.
			e.monitor.TriggerEmergency()
		}
		e.machine.Apply(state.EventEmergency, v)
		e.cycle.HaltOutput()
		e.endRun()
		e.broadcast(command.RespEmergencyStopped)
		e.logSafetyEvent(kind, fmt.Sprintf("escalated from %s", mode))
		log.Printf("EMERGENCY: %s while %s, output halted", kind, mode)
		return
	}

	if v.Overheating && mode == state.Cycling {
		e.machine.Apply(state.EventStopCycle, v)
		e.cycle.HaltOutput()
		e.endRun()
		e.broadcast(command.RespCycleStopped)
		e.logSafetyEvent("overheat", fmt.Sprintf("%.1fC", e.lastTempC))
		log.Printf("Overheat: cycle stopped, holding Armed")
	}
}

func (e *Engine) handleLine(ln transport.Line) {
	resp := e.dispatcher.Execute(ln.Text)
	if resp == "" {
		return
	}

	// The command is fully applied, persistence included, before the
	// response goes out.
	if err := ln.Channel.Send(resp); err != nil {
		log.Printf("Failed to send response on %s: %v", ln.Channel.Name(), err)
	}

	if _, err := e.db.InsertCommandAudit(&storage.CommandAudit{
		Channel:  ln.Channel.Name(),
		Line:     ln.Text,
		Response: resp,
	}); err != nil {
		log.Printf("Failed to audit command: %v", err)
	}

	switch resp {
	case command.RespCycleStarted:
		e.startRun()
	case command.RespCycleStopped, command.RespDisarmed, command.RespEmergencyStopped:
		e.endRun()
	}
}

func (e *Engine) handleCycleEvent(ev cycle.Event) {
	switch ev.Kind {
	case cycle.EventCycleComplete:
		e.broadcast(fmt.Sprintf("CYCLE_COMPLETE:%d", ev.Cycle))
		if e.runID != "" {
			if err := e.db.UpdateRunCycles(e.runID, ev.Cycle); err != nil {
				log.Printf("Failed to update run cycles: %v", err)
			}
		}
	case cycle.EventTestComplete:
		e.machine.Apply(state.EventFinishTest, e.monitor.Sample())
		e.broadcast(command.RespTestComplete)
	}
}

func (e *Engine) housekeeping(now time.Time) {
	if now.Sub(e.lastTempAt) >= e.config.TempInterval {
		e.lastTempAt = now
		if c, err := e.sensors.ReadTemperature(); err != nil {
			log.Printf("Temperature read failed: %v", err)
		} else {
			e.lastTempC = c
			e.monitor.RecordTemperature(c)
		}
	}

	if now.Sub(e.lastMoveAt) >= e.config.MotionInterval {
		e.lastMoveAt = now
		motion, err := e.sensors.ReadMotion()
		if err != nil {
			log.Printf("Motion read failed: %v", err)
			return
		}
		if _, err := e.db.InsertSensorSample(&storage.SensorSample{
			Temperature: int16(e.lastTempC * 10),
			MotionX:     float32(motion[0]),
			MotionY:     float32(motion[1]),
			MotionZ:     float32(motion[2]),
		}); err != nil {
			log.Printf("Failed to store sensor sample: %v", err)
		}
	}
}

func (e *Engine) startRun() {
	id, err := e.db.StartRun(e.cycle.Active().Name, e.dispatcher.ActiveTarget().Name)
	if err != nil {
		log.Printf("Failed to start run record: %v", err)
		return
	}
	e.runID = id
}

func (e *Engine) endRun() {
	if e.runID == "" {
		return
	}
	if err := e.db.EndRun(e.runID, e.cycle.CycleCount()); err != nil {
		log.Printf("Failed to end run record: %v", err)
	}
	e.runID = ""
}

func (e *Engine) logSafetyEvent(kind, detail string) {
	if _, err := e.db.InsertSafetyEvent(&storage.SafetyEvent{Kind: kind, Detail: detail}); err != nil {
		log.Printf("Failed to store safety event: %v", err)
	}
}

// broadcast sends an unsolicited event line to every channel.
func (e *Engine) broadcast(line string) {
	for _, ch := range e.channels {
		if err := ch.Send(line); err != nil {
			log.Printf("Failed to broadcast on %s: %v", ch.Name(), err)
		}
	}
}
