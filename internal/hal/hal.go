// Package hal defines the hardware capability interfaces the controller
// core depends on, plus simulated implementations for host runs and tests.
// Core logic never touches a device directly; it sees only these
// interfaces, implemented once per target.
package hal

import "time"

// NumZones is the number of independently addressable output zones:
// hat, hoodie, pants, shoes.
const NumZones = 4

// ZoneOutput drives the LED output zones. Implementations map intensity
// 0-255 onto whatever the driver electronics need (PWM duty, current
// limit); the core only hands over the number.
type ZoneOutput interface {
	// SetZone sets one zone's intensity. zone is 0..NumZones-1.
	SetZone(zone int, intensity uint8) error
}

// Persistence is an EEPROM-style byte region with fixed offsets. Write
// is not considered durable until Flush returns.
type Persistence interface {
	Read(offset int, length int) ([]byte, error)
	Write(offset int, data []byte) error
	Flush() error
}

// Clock provides monotonic-ish time to the scheduler. The simulated
// clock lets tests advance time explicitly instead of sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SensorSource yields periodic environment readings. Readings are pulled
// by the housekeeping tick, never pushed.
type SensorSource interface {
	ReadTemperature() (float64, error)
	ReadMotion() ([3]float64, error)
}

// SafetyInputs exposes the two physical safety inputs. EmergencyPressed
// is sampled by the edge watcher, which does nothing but set a latch.
type SafetyInputs interface {
	EnableEngaged() bool
	EmergencyPressed() bool
}
