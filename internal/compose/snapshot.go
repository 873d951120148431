package compose

import (
	"fmt"

	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/layout"
)

// ZoneSnapshot is one zone's exportable configuration.
type ZoneSnapshot struct {
	Effect     int           `yaml:"effect" json:"effect"`
	Brightness uint8         `yaml:"brightness" json:"brightness"`
	Speed      uint8         `yaml:"speed" json:"speed"`
	Palette    uint8         `yaml:"palette" json:"palette"`
	Blend      blend.Mode    `yaml:"blend" json:"blend"`
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Audio      AudioConfig   `yaml:"audio" json:"audio"`
	Trigger    TriggerConfig `yaml:"trigger" json:"trigger"`
}

// Snapshot is the full exportable engine state: system flag, layout and one
// ZoneSnapshot per slot. Checksumming and versioning belong to the
// persistence collaborator, not here.
type Snapshot struct {
	Enabled  bool             `yaml:"enabled" json:"enabled"`
	Segments []layout.Segment `yaml:"segments" json:"segments"`
	Zones    []ZoneSnapshot   `yaml:"zones" json:"zones"`
}

// Export copies the current engine state into a Snapshot.
func (c *Composer) Export() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Enabled:  c.enabled,
		Segments: make([]layout.Segment, c.zoneCount),
		Zones:    make([]ZoneSnapshot, c.zoneCount),
	}
	copy(s.Segments, c.segments[:c.zoneCount])
	for i := 0; i < c.zoneCount; i++ {
		z := c.zones[i]
		s.Zones[i] = ZoneSnapshot{
			Effect:     z.effectID,
			Brightness: z.brightness,
			Speed:      z.speed,
			Palette:    z.paletteID,
			Blend:      z.blendMode,
			Enabled:    z.enabled,
			Audio:      z.audio,
			Trigger: TriggerConfig{
				Enabled:  z.trigger.Enabled,
				Interval: z.trigger.Interval,
				Effects:  append([]int(nil), z.trigger.Effects...),
				Index:    z.trigger.Index,
			},
		}
	}
	return s
}

// Import validates the snapshot and applies it atomically: the layout is
// checked first and any error leaves every field of the engine untouched.
// Out-of-range numeric values are clamped the same way the live setters
// clamp them.
func (c *Composer) Import(s Snapshot) error {
	if err := layout.Validate(s.Segments); err != nil {
		return fmt.Errorf("compose: snapshot layout: %w", err)
	}
	if len(s.Zones) != len(s.Segments) {
		return fmt.Errorf("compose: snapshot has %d zones for %d segments", len(s.Zones), len(s.Segments))
	}
	for i, z := range s.Zones {
		if !c.reg.Valid(z.Effect) {
			return fmt.Errorf("%w: zone %d effect %d", ErrUnknownEffect, i, z.Effect)
		}
		for _, id := range z.Trigger.Effects {
			if !c.reg.Valid(id) {
				return fmt.Errorf("%w: zone %d trigger effect %d", ErrEffectList, i, id)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = s.Enabled
	c.zoneCount = len(s.Segments)
	for i := range s.Segments {
		c.segments[i] = s.Segments[i]
		c.segments[i].ZoneID = uint8(i)
	}
	for i := range c.zones {
		c.zones[i] = defaultZoneState(false)
		clearBuf(c.buffers[i])
	}
	for i, z := range s.Zones {
		zs := &c.zones[i]
		zs.effectID = z.Effect
		zs.brightness = z.Brightness
		zs.speed = clampSpeed(z.Speed)
		zs.paletteID = c.palettes.Clamp(z.Palette)
		zs.blendMode = blend.Clamp(z.Blend)
		zs.enabled = z.Enabled
		zs.audio = clampAudioConfig(z.Audio)
		zs.trigger = TriggerConfig{
			Enabled:  z.Trigger.Enabled,
			Interval: clampInterval(z.Trigger.Interval),
			Effects:  append([]int(nil), z.Trigger.Effects...),
			Index:    z.Trigger.Index,
		}
		if len(zs.trigger.Effects) > MaxTriggerEffects {
			zs.trigger.Effects = zs.trigger.Effects[:MaxTriggerEffects]
		}
		if int(zs.trigger.Index) >= len(zs.trigger.Effects) {
			zs.trigger.Index = 0
		}
		c.notifyLocked(i)
	}
	c.log.Info().Int("zones", c.zoneCount).Bool("enabled", c.enabled).Msg("snapshot imported")
	return nil
}
