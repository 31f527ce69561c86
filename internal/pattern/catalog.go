package pattern

import "fmt"

// builtin is the catalog shipped with the firmware image. Entries are
// index-addressable via LOAD_PATTERN:<index> and must stay in this order;
// clients hold indices, not names.
var builtin = []Pattern{
	{
		Name: "AGC_Lock_5_Second",
		Phases: []Phase{
			{Zone: AllZones, DurationMs: 50, Intensity: 255},
			{Zone: AllZones, DurationMs: 50, Intensity: 0},
			{Zone: AllZones, DurationMs: 50, Intensity: 255},
			{Zone: AllZones, DurationMs: 50, Intensity: 0},
			{Zone: AllZones, DurationMs: 50, Intensity: 255},
			{Zone: AllZones, DurationMs: 50, Intensity: 0},
			{Zone: AllZones, DurationMs: 50, Intensity: 255},
			{Zone: AllZones, DurationMs: 50, Intensity: 0},
			{Zone: AllZones, DurationMs: 5000, Intensity: 255},
		},
		RepeatCount: 1,
		Enabled:     true,
	},
	{
		Name: "Sensor_Saturation_Blast",
		Phases: []Phase{
			{Zone: AllZones, DurationMs: 5000, Intensity: 255},
		},
		RepeatCount: 1,
		Enabled:     true,
	},
	{
		Name: "Rolling_Shutter_Flicker",
		Phases: []Phase{
			{Zone: FlickerAll, DurationMs: 100, Intensity: 200},
		},
		RepeatCount: 3,
		Enabled:     true,
	},
	{
		Name: "Face_Dazzle_Anti_Biometric",
		Phases: []Phase{
			{Zone: Zone0, DurationMs: 120, Intensity: 255, JitterPercent: 15},
			{Zone: Zone0, DurationMs: 80, Intensity: 0, JitterPercent: 15},
			{Zone: Zone1, DurationMs: 120, Intensity: 220, JitterPercent: 15},
			{Zone: Zone1, DurationMs: 80, Intensity: 0, JitterPercent: 15},
		},
		RepeatCount: 4,
		Enabled:     true,
	},
	{
		Name: "People_Count_Spoof",
		Phases: []Phase{
			{Zone: Zone0, DurationMs: 400, Intensity: 255, JitterPercent: 30},
			{Zone: Zone3, DurationMs: 400, Intensity: 255, JitterPercent: 30},
			{Zone: AllZones, DurationMs: 200, Intensity: 0, JitterPercent: 30},
			{Zone: Zone1, DurationMs: 400, Intensity: 255, JitterPercent: 30},
			{Zone: Zone2, DurationMs: 400, Intensity: 255, JitterPercent: 30},
			{Zone: AllZones, DurationMs: 600, Intensity: 0, JitterPercent: 30},
		},
		RepeatCount: 2,
		Enabled:     true,
	},
	{
		Name: "PTZ_Overflow_Jam",
		Phases: []Phase{
			{Zone: Zone0, DurationMs: 150, Intensity: 255},
			{Zone: Zone1, DurationMs: 150, Intensity: 255},
			{Zone: Zone2, DurationMs: 150, Intensity: 255},
			{Zone: Zone3, DurationMs: 150, Intensity: 255},
			{Zone: Zone2, DurationMs: 150, Intensity: 255},
			{Zone: Zone1, DurationMs: 150, Intensity: 255},
		},
		RepeatCount: 8,
		Enabled:     true,
	},
	{
		Name: "ALPR_Character_Corrupt",
		Phases: []Phase{
			{Zone: Zone2, DurationMs: 33, Intensity: 255},
			{Zone: Zone2, DurationMs: 33, Intensity: 0},
			{Zone: Zone3, DurationMs: 33, Intensity: 255},
			{Zone: Zone3, DurationMs: 33, Intensity: 0},
		},
		RepeatCount: 20,
		Enabled:     true,
	},
	{
		Name: "Heat_Map_Poison_Zone",
		Phases: []Phase{
			{Zone: AllZones, DurationMs: 2000, Intensity: 180, JitterPercent: 20},
			{Zone: AllZones, DurationMs: 3000, Intensity: 60, JitterPercent: 20},
			{Zone: AllZones, DurationMs: 1500, Intensity: 255, JitterPercent: 20},
		},
		RepeatCount: 2,
		Enabled:     true,
	},
	{
		Name: "Queue_Length_Spoof",
		Phases: []Phase{
			{Zone: Zone3, DurationMs: 800, Intensity: 255, JitterPercent: 40},
			{Zone: Zone3, DurationMs: 800, Intensity: 0, JitterPercent: 40},
			{Zone: Zone2, DurationMs: 800, Intensity: 255, JitterPercent: 40},
			{Zone: Zone2, DurationMs: 800, Intensity: 0, JitterPercent: 40},
		},
		RepeatCount: 5,
		Enabled:     true,
	},
	{
		Name: "Parking_Blind_Spot",
		Phases: []Phase{
			{Zone: AllZones, DurationMs: 60000, Intensity: 200},
		},
		RepeatCount: 1,
		Enabled:     true,
	},
	{
		Name: "SelfCheckout_Vision_Block",
		Phases: []Phase{
			{Zone: Zone0, DurationMs: 250, Intensity: 255},
			{Zone: Zone1, DurationMs: 250, Intensity: 255},
			{Zone: AllZones, DurationMs: 100, Intensity: 0},
			{Zone: FlickerAll, DurationMs: 100, Intensity: 220},
		},
		RepeatCount: 6,
		Enabled:     true,
	},
	{
		Name: "Inventory_Tracking_Mask",
		Phases: []Phase{
			{Zone: Zone1, DurationMs: 1000, Intensity: 160, JitterPercent: 25},
			{Zone: Zone2, DurationMs: 1000, Intensity: 160, JitterPercent: 25},
			{Zone: AllZones, DurationMs: 500, Intensity: 0, JitterPercent: 25},
		},
		RepeatCount: 3,
		Enabled:     true,
	},
}

// CatalogSize is the number of built-in patterns.
func CatalogSize() int {
	return len(builtin)
}

// ByIndex returns a copy of the built-in pattern at index i.
func ByIndex(i int) (Pattern, error) {
	if i < 0 || i >= len(builtin) {
		return Pattern{}, fmt.Errorf("pattern: index %d out of range 0-%d", i, len(builtin)-1)
	}
	return builtin[i].Clone(), nil
}

// Default returns the pattern substituted when no valid persisted pattern
// exists: catalog entry 0.
func Default() Pattern {
	return builtin[0].Clone()
}

// CatalogNames returns the catalog names in index order.
func CatalogNames() []string {
	names := make([]string, len(builtin))
	for i, p := range builtin {
		names[i] = p.Name
	}
	return names
}
