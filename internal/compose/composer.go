// Package compose renders every enabled zone's effect into its persistent
// buffer and composites the configured segment ranges onto a shared output
// buffer once per render tick. It owns all zone state and all buffers; the
// control layer mutates configuration exclusively through its setters.
package compose

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/effect"
	"github.com/lumenweave/stripzones/internal/layout"
	"github.com/lumenweave/stripzones/internal/palette"
)

var (
	ErrUnknownEffect = errors.New("compose: effect id not in registry")
	ErrEffectList    = errors.New("compose: invalid beat-trigger effect list")
)

// StateCallback is invoked after a zone's state changes, throttled per zone.
// It runs inside the composer's critical section and must not block; network
// consumers enqueue and return.
type StateCallback func(zone int)

// notifyThrottle caps state-change broadcasts at 10 per second per zone.
const notifyThrottle = 100 * time.Millisecond

// Delta-time clamp bounds for the render tick, in milliseconds. Frame drops
// beyond the ceiling advance animations by the ceiling only.
const (
	deltaFloorMS = 1
	deltaCeilMS  = 50
)

// Composer is the zone composition engine. One mutex guards configuration,
// buffer addressing and the render tick, so a layout swap can never race a
// frame in flight.
type Composer struct {
	mu sync.Mutex

	enabled   bool
	zoneCount int
	segments  [layout.MaxZones]layout.Segment
	zones     [layout.MaxZones]zoneState

	// Per-zone persistent full-strip buffers plus the composited output.
	// Allocated once here, never reallocated, never cleared between frames.
	buffers [layout.MaxZones][]blend.Color
	out     []blend.Color

	reg      *effect.Registry
	palettes *palette.Registry
	src      audio.Source
	tempo    *audio.Smoother

	onChange   StateCallback
	lastNotify [layout.MaxZones]time.Time
	now        func() time.Time

	totalTimeMS  uint32
	lastBeatTick bool

	metrics Metrics
	log     zerolog.Logger
}

// New builds a composer with the Triple layout, zone 0 enabled, and no audio
// source attached.
func New(reg *effect.Registry, palettes *palette.Registry, log zerolog.Logger) *Composer {
	c := &Composer{
		reg:      reg,
		palettes: palettes,
		src:      audio.NullSource{},
		tempo:    audio.NewSmoother(0.1),
		now:      time.Now,
		out:      make([]blend.Color, layout.TotalLeds),
		log:      log.With().Str("component", "compose").Logger(),
	}
	for i := range c.buffers {
		c.buffers[i] = make([]blend.Color, layout.TotalLeds)
		c.zones[i] = defaultZoneState(i == 0)
	}
	c.zoneCount = len(layout.Triple)
	copy(c.segments[:], layout.Triple)
	return c
}

// SetAudioSource attaches the analysis pipeline. Passing nil restores the
// silent source.
func (c *Composer) SetAudioSource(src audio.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src == nil {
		src = audio.NullSource{}
	}
	c.src = src
}

// AudioSource returns the attached analysis source. The hop feeder reads it
// back so beat triggers and the render tick always see the same source.
func (c *Composer) AudioSource() audio.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src
}

// SetEnabled switches the whole zone system on or off.
func (c *Composer) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *Composer) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Composer) ZoneCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoneCount
}

// Segments returns a copy of the active layout.
func (c *Composer) Segments() []layout.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]layout.Segment, c.zoneCount)
	copy(out, c.segments[:c.zoneCount])
	return out
}

// SetLayout validates and atomically replaces the layout. On any validation
// error the previous layout is untouched. Zone buffers are cleared because
// the old contents belong to different addressing.
func (c *Composer) SetLayout(segs []layout.Segment) error {
	if err := layout.Validate(segs); err != nil {
		c.log.Warn().Err(err).Msg("layout rejected")
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoneCount = len(segs)
	for i := range segs {
		c.segments[i] = segs[i]
		c.segments[i].ZoneID = uint8(i)
	}
	for i := range c.buffers {
		clearBuf(c.buffers[i])
	}
	c.log.Info().Int("zones", c.zoneCount).Msg("layout set")
	return nil
}

// ReorderZones applies a permutation of the active zones. The permutation is
// rejected wholesale if it would move a segment without the centre pair into
// zone 0; on rejection the current assignment is untouched. Buffers travel
// with their zones so running animations survive the reorder.
func (c *Composer) ReorderZones(order []uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	segs := c.segments[:c.zoneCount]
	if err := layout.CheckPermutation(segs, order); err != nil {
		c.log.Warn().Err(err).Msg("reorder rejected")
		return err
	}
	var (
		newSegs  [layout.MaxZones]layout.Segment
		newZones [layout.MaxZones]zoneState
		newBufs  [layout.MaxZones][]blend.Color
	)
	copy(newSegs[:], c.segments[:])
	copy(newZones[:], c.zones[:])
	copy(newBufs[:], c.buffers[:])
	for i, idx := range order {
		newSegs[i] = c.segments[idx]
		newSegs[i].ZoneID = uint8(i)
		newZones[i] = c.zones[idx]
		newBufs[i] = c.buffers[idx]
	}
	c.segments = newSegs
	c.zones = newZones
	c.buffers = newBufs
	for i := range order {
		c.notifyLocked(i)
	}
	return nil
}

// clampZone maps out-of-range ids to zone 0 so a bad id can never index out
// of bounds.
func (c *Composer) clampZone(zone int) int {
	if zone < 0 || zone >= c.zoneCount {
		return 0
	}
	return zone
}

// SetZoneEffect selects a zone's effect. Unknown ids are rejected and the
// current effect retained. Switching clears the zone's buffer: the new
// effect's state has nothing to do with the old one's trails.
func (c *Composer) SetZoneEffect(zone, effectID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setZoneEffectLocked(zone, effectID)
}

func (c *Composer) setZoneEffectLocked(zone, effectID int) error {
	zone = c.clampZone(zone)
	if !c.reg.Valid(effectID) {
		return fmt.Errorf("%w: %d", ErrUnknownEffect, effectID)
	}
	z := &c.zones[zone]
	if z.effectID != effectID {
		clearBuf(c.buffers[zone])
		z.inited = false
	}
	z.effectID = effectID
	c.notifyLocked(zone)
	return nil
}

// SetZoneBrightness stores the zone brightness and returns the stored value.
func (c *Composer) SetZoneBrightness(zone int, brightness uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	c.zones[zone].brightness = brightness
	c.notifyLocked(zone)
	return brightness
}

// SetZoneSpeed clamps speed into [1,100] and returns the stored value.
func (c *Composer) SetZoneSpeed(zone int, speed uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	v := clampSpeed(speed)
	c.zones[zone].speed = v
	c.notifyLocked(zone)
	return v
}

// SetZonePalette stores a palette selector, clamped against the registry.
// Id 0 keeps the zone on the global palette.
func (c *Composer) SetZonePalette(zone int, paletteID uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	v := c.palettes.Clamp(paletteID)
	c.zones[zone].paletteID = v
	c.notifyLocked(zone)
	return v
}

// SetZoneBlendMode stores the compositing operator for the zone.
func (c *Composer) SetZoneBlendMode(zone int, mode blend.Mode) blend.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	v := blend.Clamp(mode)
	c.zones[zone].blendMode = v
	c.notifyLocked(zone)
	return v
}

// SetZoneEnabled toggles a zone. The zone's buffer is deliberately left
// alone so a re-enabled zone resumes its animation without a visible reset.
func (c *Composer) SetZoneEnabled(zone int, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	c.zones[zone].enabled = enabled
	c.notifyLocked(zone)
}

func (c *Composer) ZoneEffect(zone int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].effectID
}

func (c *Composer) ZoneBrightness(zone int) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].brightness
}

func (c *Composer) ZoneSpeed(zone int) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].speed
}

func (c *Composer) ZonePalette(zone int) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].paletteID
}

func (c *Composer) ZoneBlendMode(zone int) blend.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].blendMode
}

func (c *Composer) ZoneEnabled(zone int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].enabled
}

// ZoneAudioConfig returns the zone's audio sub-state as a unit.
func (c *Composer) ZoneAudioConfig(zone int) AudioConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones[c.clampZone(zone)].audio
}

// SetZoneAudioConfig replaces the zone's audio sub-state as a unit, clamping
// out-of-range fields, and returns what was stored.
func (c *Composer) SetZoneAudioConfig(zone int, cfg AudioConfig) AudioConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)
	v := clampAudioConfig(cfg)
	c.zones[zone].audio = v
	c.notifyLocked(zone)
	return v
}

// ZoneTrigger returns the zone's beat-trigger sub-state. The effect list is
// copied so callers cannot alias internal storage.
func (c *Composer) ZoneTrigger(zone int) TriggerConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.zones[c.clampZone(zone)].trigger
	t.Effects = append([]int(nil), t.Effects...)
	return t
}

// SetZoneTrigger replaces the zone's beat-trigger sub-state. The interval is
// snapped to the nearest allowed value; the effect list is truncated to
// MaxTriggerEffects and every id must exist in the registry, otherwise the
// whole update is rejected. Enabling resets the beat counter.
func (c *Composer) SetZoneTrigger(zone int, cfg TriggerConfig) (TriggerConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zone = c.clampZone(zone)

	cfg.Interval = clampInterval(cfg.Interval)
	if len(cfg.Effects) > MaxTriggerEffects {
		cfg.Effects = cfg.Effects[:MaxTriggerEffects]
	}
	for _, id := range cfg.Effects {
		if !c.reg.Valid(id) {
			return TriggerConfig{}, fmt.Errorf("%w: effect %d", ErrEffectList, id)
		}
	}
	cfg.Effects = append([]int(nil), cfg.Effects...)
	if int(cfg.Index) >= len(cfg.Effects) {
		cfg.Index = 0
	}

	z := &c.zones[zone]
	z.trigger = cfg
	z.beatCount = 0
	if cfg.Enabled && len(cfg.Effects) > 0 {
		if err := c.setZoneEffectLocked(zone, cfg.Effects[cfg.Index]); err != nil {
			return TriggerConfig{}, err
		}
	}
	c.notifyLocked(zone)
	out := cfg
	out.Effects = append([]int(nil), cfg.Effects...)
	return out, nil
}

// SetStateChangeCallback registers the change listener. A single slot;
// the last registration wins.
func (c *Composer) SetStateChangeCallback(cb StateCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = cb
}

func (c *Composer) notifyLocked(zone int) {
	if c.onChange == nil {
		return
	}
	now := c.now()
	if now.Sub(c.lastNotify[zone]) < notifyThrottle {
		return
	}
	c.lastNotify[zone] = now
	c.onChange(zone)
}

func clearBuf(buf []blend.Color) {
	for i := range buf {
		buf[i] = blend.Color{}
	}
}
