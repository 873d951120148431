package compose

import (
	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
)

// Config value limits.
const (
	SpeedMin = 1
	SpeedMax = 100

	// MaxTriggerEffects caps the beat-trigger rotation list.
	MaxTriggerEffects = 8

	// TempoScaleMax is the upper bound of TempoSpeedScale in percent.
	TempoScaleMax = 200
)

// triggerIntervals are the allowed beats-between-rotations values.
var triggerIntervals = []uint8{1, 2, 4, 8, 16, 32}

// AudioConfig is a zone's audio-reactive modulation sub-state. It is always
// read and written as a unit so concurrent callers cannot observe a half
// update.
type AudioConfig struct {
	TempoSync       bool  `yaml:"tempo_sync" json:"tempoSync"`
	BeatModulation  uint8 `yaml:"beat_modulation" json:"beatModulation"`
	TempoSpeedScale uint8 `yaml:"tempo_speed_scale" json:"tempoSpeedScale"` // percent, 0-200
	BeatDecay       uint8 `yaml:"beat_decay" json:"beatDecay"`              // envelope decay per frame
	Band            uint8 `yaml:"band" json:"band"`
}

func defaultAudioConfig() AudioConfig {
	return AudioConfig{BeatDecay: 128, Band: audio.BandFull}
}

func clampAudioConfig(c AudioConfig) AudioConfig {
	if c.TempoSpeedScale > TempoScaleMax {
		c.TempoSpeedScale = TempoScaleMax
	}
	c.Band = audio.ClampBand(c.Band)
	return c
}

// TriggerConfig is a zone's beat-triggered effect rotation sub-state.
type TriggerConfig struct {
	Enabled  bool  `yaml:"enabled" json:"enabled"`
	Interval uint8 `yaml:"interval" json:"interval"` // beats between rotations
	Effects  []int `yaml:"effects" json:"effects"`   // up to MaxTriggerEffects ids
	Index    uint8 `yaml:"index" json:"index"`       // rotation cursor
}

// clampInterval snaps v to the nearest allowed interval.
func clampInterval(v uint8) uint8 {
	best := triggerIntervals[0]
	bestDist := distance(v, best)
	for _, iv := range triggerIntervals[1:] {
		if d := distance(v, iv); d < bestDist {
			best, bestDist = iv, d
		}
	}
	return best
}

func distance(a, b uint8) int {
	if a > b {
		return int(a) - int(b)
	}
	return int(b) - int(a)
}

func clampSpeed(v uint8) uint8 {
	if v < SpeedMin {
		return SpeedMin
	}
	if v > SpeedMax {
		return SpeedMax
	}
	return v
}

// zoneState is the full per-slot state. Configuration fields are written by
// the control task through setters; render-side fields (timeMS, frame,
// beatEnv, inited) are touched only inside the composer's lock.
type zoneState struct {
	effectID   int
	brightness uint8
	speed      uint8
	paletteID  uint8
	blendMode  blend.Mode
	enabled    bool

	audio   AudioConfig
	trigger TriggerConfig

	beatCount uint8 // beats since last rotation

	timeMS  float64 // speed-scaled private time accumulator
	frame   uint32
	beatEnv uint8
	inited  bool
}

func defaultZoneState(enabled bool) zoneState {
	return zoneState{
		effectID:   0,
		brightness: 255,
		speed:      15,
		paletteID:  0,
		blendMode:  blend.Overwrite,
		enabled:    enabled,
		audio:      defaultAudioConfig(),
		trigger:    TriggerConfig{Interval: 4},
	}
}
