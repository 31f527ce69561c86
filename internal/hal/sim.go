package hal

import (
	"fmt"
	"sync"
	"time"
)

// SimZoneOutput records zone intensities in memory. It backs host runs
// without driver hardware and lets tests assert on output levels.
type SimZoneOutput struct {
	mu     sync.Mutex
	levels [NumZones]uint8
	writes int
}

// NewSimZoneOutput creates a simulated zone output with all zones off.
func NewSimZoneOutput() *SimZoneOutput {
	return &SimZoneOutput{}
}

// SetZone records the intensity for one zone.
func (s *SimZoneOutput) SetZone(zone int, intensity uint8) error {
	if zone < 0 || zone >= NumZones {
		return fmt.Errorf("hal: zone %d out of range", zone)
	}
	s.mu.Lock()
	s.levels[zone] = intensity
	s.writes++
	s.mu.Unlock()
	return nil
}

// Levels returns a snapshot of the current zone intensities.
func (s *SimZoneOutput) Levels() [NumZones]uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels
}

// WriteCount returns the total number of SetZone calls.
func (s *SimZoneOutput) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// RealClock is the wall-clock implementation used outside of tests.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// SimClock is a manually advanced clock. Sleep advances it immediately,
// so bounded blocking bursts complete without real delay in tests.
type SimClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewSimClock creates a simulated clock starting at t.
func NewSimClock(t time.Time) *SimClock {
	return &SimClock{now: t}
}

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// MemPersistence is an in-memory persistence region. Flushed marks how
// many times Flush was called so tests can verify save durability.
type MemPersistence struct {
	mu      sync.Mutex
	region  []byte
	flushes int

	// FailReads forces Read to error, simulating an unreadable medium.
	FailReads bool
}

// NewMemPersistence creates an in-memory region of the given size.
func NewMemPersistence(size int) *MemPersistence {
	return &MemPersistence{region: make([]byte, size)}
}

func (m *MemPersistence) Read(offset, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, fmt.Errorf("hal: simulated read failure")
	}
	if offset < 0 || offset+length > len(m.region) {
		return nil, fmt.Errorf("hal: read [%d,%d) outside region of %d bytes", offset, offset+length, len(m.region))
	}
	out := make([]byte, length)
	copy(out, m.region[offset:offset+length])
	return out, nil
}

func (m *MemPersistence) Write(offset int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+len(data) > len(m.region) {
		return fmt.Errorf("hal: write [%d,%d) outside region of %d bytes", offset, offset+len(data), len(m.region))
	}
	copy(m.region[offset:], data)
	return nil
}

func (m *MemPersistence) Flush() error {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	return nil
}

// FlushCount returns the number of Flush calls.
func (m *MemPersistence) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// SimSensors returns fixed readings settable by tests and host runs.
type SimSensors struct {
	mu      sync.Mutex
	tempC   float64
	motion  [3]float64
	tempErr error
}

// NewSimSensors creates a simulated sensor source at room temperature.
func NewSimSensors() *SimSensors {
	return &SimSensors{tempC: 21.0}
}

// SetTemperature sets the value the next ReadTemperature returns.
func (s *SimSensors) SetTemperature(c float64) {
	s.mu.Lock()
	s.tempC = c
	s.mu.Unlock()
}

// SetTemperatureError forces ReadTemperature to fail with err.
func (s *SimSensors) SetTemperatureError(err error) {
	s.mu.Lock()
	s.tempErr = err
	s.mu.Unlock()
}

// SetMotion sets the value the next ReadMotion returns.
func (s *SimSensors) SetMotion(x, y, z float64) {
	s.mu.Lock()
	s.motion = [3]float64{x, y, z}
	s.mu.Unlock()
}

func (s *SimSensors) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tempErr != nil {
		return 0, s.tempErr
	}
	return s.tempC, nil
}

func (s *SimSensors) ReadMotion() ([3]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motion, nil
}

// SimSafetyInputs is a settable pair of safety inputs. The emergency
// input auto-clears after one read, modelling a momentary button edge.
type SimSafetyInputs struct {
	mu        sync.Mutex
	engaged   bool
	emergency bool
}

// NewSimSafetyInputs creates simulated inputs with the enable switch
// initially engaged.
func NewSimSafetyInputs() *SimSafetyInputs {
	return &SimSafetyInputs{engaged: true}
}

// SetEngaged sets the enable-switch level.
func (s *SimSafetyInputs) SetEngaged(v bool) {
	s.mu.Lock()
	s.engaged = v
	s.mu.Unlock()
}

// PressEmergency simulates one emergency-button edge.
func (s *SimSafetyInputs) PressEmergency() {
	s.mu.Lock()
	s.emergency = true
	s.mu.Unlock()
}

func (s *SimSafetyInputs) EnableEngaged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engaged
}

func (s *SimSafetyInputs) EmergencyPressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.emergency
	s.emergency = false
	return v
}
