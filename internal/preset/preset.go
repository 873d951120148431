// Package preset holds the built-in zone presets and the slot store the
// network layer saves user snapshots into.
package preset

import (
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/compose"
	"github.com/lumenweave/stripzones/internal/layout"
)

// Preset pairs a display name with an engine snapshot.
type Preset struct {
	Name     string           `yaml:"name"`
	Snapshot compose.Snapshot `yaml:"snapshot"`
}

func zone(effect int, brightness, speed uint8, mode blend.Mode, enabled bool) compose.ZoneSnapshot {
	return compose.ZoneSnapshot{
		Effect:     effect,
		Brightness: brightness,
		Speed:      speed,
		Blend:      mode,
		Enabled:    enabled,
		Audio:      compose.AudioConfig{BeatDecay: 128},
		Trigger:    compose.TriggerConfig{Interval: 4},
	}
}

// BuiltIn returns the factory presets. Effect ids follow the builtin
// registry order: 0 solid, 1 rainbow, 2 pulse, 3 comet, 4 sparkle.
func BuiltIn() []Preset {
	return []Preset{
		{
			Name: "Unified",
			Snapshot: compose.Snapshot{
				Enabled:  true,
				Segments: layout.Single,
				Zones: []compose.ZoneSnapshot{
					zone(1, 255, 15, blend.Overwrite, true),
				},
			},
		},
		{
			Name: "Dual Split",
			Snapshot: compose.Snapshot{
				Enabled:  true,
				Segments: layout.Triple,
				Zones: []compose.ZoneSnapshot{
					zone(3, 255, 15, blend.Overwrite, true),
					zone(1, 200, 20, blend.Additive, true),
					zone(1, 200, 20, blend.Additive, false),
				},
			},
		},
		{
			Name: "Triple Rings",
			Snapshot: compose.Snapshot{
				Enabled:  true,
				Segments: layout.Triple,
				Zones: []compose.ZoneSnapshot{
					zone(2, 255, 20, blend.Overwrite, true),
					zone(1, 220, 25, blend.Additive, true),
					zone(4, 180, 30, blend.Additive, true),
				},
			},
		},
		{
			Name: "Quad Active",
			Snapshot: compose.Snapshot{
				Enabled:  true,
				Segments: layout.Quad,
				Zones: []compose.ZoneSnapshot{
					zone(3, 255, 15, blend.Overwrite, true),
					zone(2, 230, 20, blend.Additive, true),
					zone(1, 200, 25, blend.Additive, true),
					zone(4, 170, 30, blend.Additive, true),
				},
			},
		},
		{
			Name: "Heartbeat Focus",
			Snapshot: compose.Snapshot{
				Enabled:  true,
				Segments: layout.Triple,
				Zones: []compose.ZoneSnapshot{
					zone(2, 255, 15, blend.Overwrite, true),
					zone(2, 150, 10, blend.Alpha, true),
					zone(2, 100, 8, blend.Alpha, true),
				},
			},
		},
	}
}

// Find returns the built-in preset with the given name.
func Find(name string) (Preset, bool) {
	for _, p := range BuiltIn() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
