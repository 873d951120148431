package compose

import (
	"time"

	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/effect"
	"github.com/lumenweave/stripzones/internal/layout"
	"github.com/lumenweave/stripzones/internal/palette"
)

// Render runs one tick: every enabled zone's effect renders into its
// persistent buffer, the zone's segment ranges are extracted and blended
// onto the output buffer innermost-first, and the result is copied into dst.
// Returns false when the zone system is disabled, in which case dst is
// untouched and the caller falls back to its single-effect path.
func (c *Composer) Render(dst []blend.Color, global palette.Palette, hue uint8, deltaMS uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return false
	}
	frameStart := time.Now()

	if deltaMS < deltaFloorMS {
		deltaMS = deltaFloorMS
	}
	if deltaMS > deltaCeilMS {
		deltaMS = deltaCeilMS
	}
	c.totalTimeMS += deltaMS

	af := c.src.Frame()
	ratio := c.tempo.Update(af.TempoRatio)

	// The output buffer is overwritten every tick; zone buffers are not.
	clearBuf(c.out)

	for z := 0; z < c.zoneCount; z++ {
		zs := &c.zones[z]
		if !zs.enabled {
			c.metrics.ZoneRenderUS[z] = 0
			continue
		}
		zoneStart := time.Now()
		c.renderZone(z, global, hue, deltaMS, af, ratio)
		c.metrics.ZoneRenderUS[z] = time.Since(zoneStart).Microseconds()
	}

	blendStart := time.Now()
	copy(dst, c.out)
	c.metrics.BlendUS = time.Since(blendStart).Microseconds()

	c.metrics.TotalUS = time.Since(frameStart).Microseconds()
	c.metrics.Frames++
	c.metrics.cumulativeUS += c.metrics.TotalUS
	if c.metrics.TotalUS > frameSkipThresholdUS {
		c.metrics.FrameSkips++
	}
	if c.metrics.Frames%300 == 0 {
		c.log.Debug().
			Uint64("frames", c.metrics.Frames).
			Float64("avg_ms", c.metrics.AverageFrameMS()).
			Uint64("skips", c.metrics.FrameSkips).
			Msg("render stats")
	}
	return true
}

func (c *Composer) renderZone(z int, global palette.Palette, hue uint8, deltaMS uint32, af audio.Frame, ratio float64) {
	zs := &c.zones[z]
	seg := c.segments[z]

	r, ok := c.reg.Get(zs.effectID)
	if !ok {
		return
	}

	// Advance the zone's private clock: elapsed time scaled by zone speed
	// (speed 10 == real time) and, when tempo-synced, by the smoothed tempo
	// ratio weighted by TempoSpeedScale.
	scale := float64(zs.speed) / 10.0
	if zs.audio.TempoSync {
		scale *= 1.0 + (ratio-1.0)*float64(zs.audio.TempoSpeedScale)/100.0
	}
	zs.timeMS += float64(deltaMS) * scale
	zs.frame++

	// Beat envelope: charged by ProcessAudioHop, decayed here per frame.
	effBrightness := zs.brightness
	if zs.audio.BeatModulation > 0 {
		effBrightness = blend.AddSat(zs.brightness, blend.ScaleChan(zs.beatEnv, zs.audio.BeatModulation))
		zs.beatEnv = blend.SubSat(zs.beatEnv, zs.audio.BeatDecay)
	}

	pal := global
	if zs.paletteID != 0 {
		pal = c.palettes.Resolve(zs.paletteID)
	}

	ctx := effect.Context{
		Buf:        c.buffers[z],
		Palette:    pal,
		Hue:        hue,
		Brightness: effBrightness,
		Speed:      zs.speed,
		Frame:      zs.frame,
		TimeMS:     uint32(zs.timeMS),
		DeltaMS:    deltaMS,
		ZoneID:     uint8(z),
		ZoneStart:  int(seg.LeftStart),
		ZoneLen:    seg.TotalLeds(),
		Audio:      audio.FilterBand(af, zs.audio.Band),
	}

	if !zs.inited {
		if !r.Init(&ctx) {
			// Transient failure: keep the buffer's last-good contents and
			// skip the zone this tick.
			c.log.Warn().Int("zone", z).Str("effect", r.Name()).Msg("effect init failed, zone skipped")
			return
		}
		zs.inited = true
	}
	r.Render(&ctx)

	c.compositeZone(z, seg, effBrightness)
}

// compositeZone extracts the zone's segment ranges from its buffer and
// blends them onto the output, clamped at buffer boundaries. Strip 2 mirrors
// strip 1 at +StripLength.
func (c *Composer) compositeZone(z int, seg layout.Segment, brightness uint8) {
	fn := blend.ForMode(c.zones[z].blendMode)
	buf := c.buffers[z]

	span := func(start, end int) {
		for i := start; i <= end; i++ {
			if i < 0 || i >= len(buf) || i >= len(c.out) {
				break
			}
			p := blend.Scale(buf[i], brightness)
			c.out[i] = fn(c.out[i], p)
		}
	}
	span(int(seg.LeftStart), int(seg.LeftEnd))
	span(int(seg.RightStart), int(seg.RightEnd))
	span(int(seg.LeftStart)+layout.StripLength, int(seg.LeftEnd)+layout.StripLength)
	span(int(seg.RightStart)+layout.StripLength, int(seg.RightEnd)+layout.StripLength)
}

// ProcessAudioHop runs at the analysis pipeline's hop rate, not per render
// tick. It edge-detects beat ticks, recharges beat envelopes, and advances
// beat-triggered effect rotations.
func (c *Composer) ProcessAudioHop(af audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	beatEdge := af.BeatTick && !c.lastBeatTick
	c.lastBeatTick = af.BeatTick
	if !beatEdge {
		return
	}

	for z := 0; z < c.zoneCount; z++ {
		zs := &c.zones[z]
		if zs.audio.BeatModulation > 0 {
			zs.beatEnv = 255
		}
		t := &zs.trigger
		if !t.Enabled || len(t.Effects) == 0 {
			continue
		}
		zs.beatCount++
		if zs.beatCount < t.Interval {
			continue
		}
		zs.beatCount = 0
		t.Index = uint8((int(t.Index) + 1) % len(t.Effects))
		if err := c.setZoneEffectLocked(z, t.Effects[t.Index]); err != nil {
			c.log.Warn().Err(err).Int("zone", z).Msg("beat trigger rotation skipped")
		}
	}
}
