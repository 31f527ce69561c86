package command

import (
	"encoding/json"
	"log"

	"github.com/irwp/wearable-controller/internal/state"
)

// Status is the GET_STATUS record, emitted as one JSON line. The field
// set is additive-only across firmware revisions; clients must tolerate
// unknown extras.
type Status struct {
	State        int      `json:"state"`
	Safety       bool     `json:"safety"`
	Armed        bool     `json:"armed"`
	Cycle        uint32   `json:"cycle"`
	Platform     string   `json:"platform"`
	Emergency    bool     `json:"emergency"`
	TemperatureC *float64 `json:"temperature_c"`
	LedPowerW    float64  `json:"led_power_w"`
	Pattern      string   `json:"pattern"`
	Target       string   `json:"target"`
}

// Snapshot builds the current status record.
func (d *Dispatcher) Snapshot() Status {
	v := d.monitor.Sample()
	mode := d.machine.Mode()

	s := Status{
		State:     int(mode),
		Safety:    v.SafetyEngaged,
		Armed:     mode != state.Idle,
		Cycle:     d.engine.CycleCount(),
		Platform:  Platform,
		Emergency: mode == state.Emergency || v.Emergency,
		LedPowerW: d.engine.LedPowerW(),
		Pattern:   d.engine.Active().Name,
		Target:    d.target.Name,
	}
	if c, ok := d.monitor.Temperature(); ok {
		s.TemperatureC = &c
	}
	return s
}

func (d *Dispatcher) status() string {
	data, err := json.Marshal(d.Snapshot())
	if err != nil {
		log.Printf("Failed to marshal status: %v", err)
		return ErrBusy
	}
	return string(data)
}
