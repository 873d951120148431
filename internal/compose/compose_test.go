package compose

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/effect"
	"github.com/lumenweave/stripzones/internal/layout"
	"github.com/lumenweave/stripzones/internal/palette"
)

// solidFx fills the whole buffer with one color every tick.
type solidFx struct {
	name  string
	color blend.Color
}

func (f *solidFx) Name() string                  { return f.name }
func (f *solidFx) Init(ctx *effect.Context) bool { return true }
func (f *solidFx) Render(ctx *effect.Context) {
	for i := range ctx.Buf {
		ctx.Buf[i] = f.color
	}
}

// onceFx paints during Init and never touches the buffer again, so whatever
// it painted only survives if the engine preserves the buffer.
type onceFx struct {
	color blend.Color
}

func (f *onceFx) Name() string { return "once" }
func (f *onceFx) Init(ctx *effect.Context) bool {
	for i := range ctx.Buf {
		ctx.Buf[i] = f.color
	}
	return true
}
func (f *onceFx) Render(ctx *effect.Context) {}

// flakyFx fails Init until allowed.
type flakyFx struct {
	ready bool
	inits int
}

func (f *flakyFx) Name() string                  { return "flaky" }
func (f *flakyFx) Init(ctx *effect.Context) bool { f.inits++; return f.ready }
func (f *flakyFx) Render(ctx *effect.Context) {
	for i := range ctx.Buf {
		ctx.Buf[i] = blend.Color{R: 1}
	}
}

const (
	fxWhite = iota
	fxRed
	fxGreen
	fxOnceBlue
)

func newTestComposer(t *testing.T) (*Composer, *flakyFx) {
	t.Helper()
	reg := effect.NewRegistry()
	reg.Register(&solidFx{name: "white", color: blend.Color{R: 255, G: 255, B: 255}})
	reg.Register(&solidFx{name: "red", color: blend.Color{R: 255}})
	reg.Register(&solidFx{name: "green", color: blend.Color{G: 255}})
	reg.Register(&onceFx{color: blend.Color{B: 255}})
	flaky := &flakyFx{}
	reg.Register(flaky)
	return New(reg, palette.NewRegistry(), zerolog.Nop()), flaky
}

func renderOnce(c *Composer) []blend.Color {
	dst := make([]blend.Color, layout.TotalLeds)
	c.Render(dst, palette.Palette{}, 0, 16)
	return dst
}

func TestNewDefaults(t *testing.T) {
	c, _ := newTestComposer(t)
	assert.False(t, c.Enabled())
	assert.Equal(t, 3, c.ZoneCount())
	assert.True(t, c.ZoneEnabled(0))
	assert.False(t, c.ZoneEnabled(1))
	assert.Equal(t, uint8(255), c.ZoneBrightness(0))
	assert.Equal(t, uint8(15), c.ZoneSpeed(0))
	assert.Equal(t, blend.Overwrite, c.ZoneBlendMode(0))
}

func TestRenderDisabledReturnsFalse(t *testing.T) {
	c, _ := newTestComposer(t)
	dst := make([]blend.Color, layout.TotalLeds)
	dst[0] = blend.Color{R: 9}
	require.False(t, c.Render(dst, palette.Palette{}, 0, 16))
	// dst untouched so the caller's fallback output survives.
	assert.Equal(t, blend.Color{R: 9}, dst[0])
}

func TestRenderCompositesZoneSegmentsMirrored(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	dst := renderOnce(c)

	white := blend.Color{R: 255, G: 255, B: 255}
	// Zone 0 of the triple layout: 65-94 on strip 1, mirrored at +160.
	for i := 65; i <= 94; i++ {
		assert.Equal(t, white, dst[i], "strip1 led %d", i)
		assert.Equal(t, white, dst[i+layout.StripLength], "strip2 led %d", i)
	}
	// Disabled zones stay dark.
	assert.Equal(t, blend.Color{}, dst[0])
	assert.Equal(t, blend.Color{}, dst[130])
	assert.Equal(t, blend.Color{}, dst[319])
}

func TestZoneBrightnessScalesComposite(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	c.SetZoneBrightness(0, 128)
	dst := renderOnce(c)
	assert.Equal(t, uint8(128), dst[80].R)
}

func TestAdditiveBlendPreScalesOntoBlack(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	c.SetZoneBlendMode(0, blend.Additive)
	dst := renderOnce(c)
	// Additive against the cleared output: white arrives pre-scaled to ~70%.
	assert.Equal(t, uint8(178), dst[80].R)
}

func TestSpeedClamp(t *testing.T) {
	c, _ := newTestComposer(t)
	assert.Equal(t, uint8(SpeedMin), c.SetZoneSpeed(0, 0))
	assert.Equal(t, uint8(SpeedMax), c.SetZoneSpeed(0, 255))
	assert.Equal(t, uint8(42), c.SetZoneSpeed(0, 42))
	assert.Equal(t, uint8(42), c.ZoneSpeed(0))
}

func TestZoneIDClampsToZero(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetZoneBrightness(17, 42)
	assert.Equal(t, uint8(42), c.ZoneBrightness(0))
	c.SetZoneBrightness(-3, 77)
	assert.Equal(t, uint8(77), c.ZoneBrightness(0))
	assert.Equal(t, uint8(77), c.ZoneBrightness(99))
}

func TestUnknownEffectRejected(t *testing.T) {
	c, _ := newTestComposer(t)
	require.NoError(t, c.SetZoneEffect(0, fxRed))
	err := c.SetZoneEffect(0, 99)
	assert.ErrorIs(t, err, ErrUnknownEffect)
	assert.Equal(t, fxRed, c.ZoneEffect(0))
}

func TestEffectSwitchClearsBuffer(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	require.NoError(t, c.SetZoneEffect(0, fxOnceBlue))
	dst := renderOnce(c)
	assert.Equal(t, blend.Color{B: 255}, dst[80])

	// Switching to another effect discards the old trails.
	require.NoError(t, c.SetZoneEffect(0, fxRed))
	assert.Equal(t, blend.Color{}, c.buffers[0][80])

	// Re-selecting the same effect is a no-op for the buffer.
	dst = renderOnce(c)
	assert.Equal(t, blend.Color{R: 255}, dst[80])
	require.NoError(t, c.SetZoneEffect(0, fxRed))
	assert.Equal(t, blend.Color{R: 255}, c.buffers[0][80])
}

func TestBufferSurvivesDisableEnable(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	require.NoError(t, c.SetZoneEffect(0, fxOnceBlue))
	dst := renderOnce(c)
	require.Equal(t, blend.Color{B: 255}, dst[80])

	c.SetZoneEnabled(0, false)
	dst = renderOnce(c)
	assert.Equal(t, blend.Color{}, dst[80])

	// The effect paints only during Init, so the blue pixels below can only
	// come from the preserved buffer.
	c.SetZoneEnabled(0, true)
	dst = renderOnce(c)
	assert.Equal(t, blend.Color{B: 255}, dst[80])
}

func TestSetLayoutClearsBuffersAndRejectsInvalid(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	require.NoError(t, c.SetZoneEffect(0, fxOnceBlue))
	renderOnce(c)
	require.Equal(t, blend.Color{B: 255}, c.buffers[0][80])

	// Invalid layout: nothing changes.
	bad := []layout.Segment{{LeftStart: 0, LeftEnd: 10, RightStart: 80, RightEnd: 90}}
	require.Error(t, c.SetLayout(bad))
	assert.Equal(t, 3, c.ZoneCount())
	assert.Equal(t, blend.Color{B: 255}, c.buffers[0][80])

	// Valid layout: old buffer contents belong to dead addressing.
	require.NoError(t, c.SetLayout(layout.Quad))
	assert.Equal(t, 4, c.ZoneCount())
	assert.Equal(t, blend.Color{}, c.buffers[0][80])
}

func TestReorderZones(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetZoneBrightness(1, 111)
	c.SetZoneBrightness(2, 222)
	c.buffers[1][0] = blend.Color{R: 1}

	// Outer ring cannot move into zone 0.
	err := c.ReorderZones([]uint8{2, 1, 0})
	assert.ErrorIs(t, err, layout.ErrCenterOrigin)
	assert.Equal(t, uint8(111), c.ZoneBrightness(1))

	// Swapping 1 and 2 moves state and buffers together.
	require.NoError(t, c.ReorderZones([]uint8{0, 2, 1}))
	assert.Equal(t, uint8(222), c.ZoneBrightness(1))
	assert.Equal(t, uint8(111), c.ZoneBrightness(2))
	assert.Equal(t, blend.Color{R: 1}, c.buffers[2][0])
	segs := c.Segments()
	assert.Equal(t, uint8(1), segs[1].ZoneID)
	assert.Equal(t, layout.Triple[2].LeftStart, segs[1].LeftStart)
}

func TestDeltaClamp(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	c.SetZoneSpeed(0, 10) // speed 10 == real time
	dst := make([]blend.Color, layout.TotalLeds)

	c.Render(dst, palette.Palette{}, 0, 500)
	assert.Equal(t, float64(deltaCeilMS), c.zones[0].timeMS)

	c.Render(dst, palette.Palette{}, 0, 0)
	assert.Equal(t, float64(deltaCeilMS+deltaFloorMS), c.zones[0].timeMS)
}

func TestTempoSyncScalesZoneClock(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	c.SetZoneSpeed(0, 10)
	c.SetZoneAudioConfig(0, AudioConfig{TempoSync: true, TempoSpeedScale: 100})
	// Smoothing keeps the first step well below the raw 2.0 target.
	c.SetAudioSource(stubSource{audio.Frame{TempoRatio: 2.0}})

	dst := make([]blend.Color, layout.TotalLeds)
	c.Render(dst, palette.Palette{}, 0, 10)
	got := c.zones[0].timeMS
	assert.Greater(t, got, 10.0)
	assert.Less(t, got, 20.0)
}

type stubSource struct{ f audio.Frame }

func (s stubSource) Frame() audio.Frame { return s.f }

func TestAudioSourceSharedByHopAndRender(t *testing.T) {
	c, _ := newTestComposer(t)
	assert.Equal(t, audio.NullSource{}, c.AudioSource())

	s := stubSource{audio.Frame{TempoRatio: 1.5}}
	c.SetAudioSource(s)
	// The hop feeder reads the source back, so it can never diverge from
	// the one the render tick consumes.
	assert.Equal(t, audio.Source(s), c.AudioSource())

	c.SetAudioSource(nil)
	assert.Equal(t, audio.NullSource{}, c.AudioSource())
}

func TestInitFailureSkipsZoneKeepsBuffer(t *testing.T) {
	c, flaky := newTestComposer(t)
	c.SetEnabled(true)
	require.NoError(t, c.SetZoneEffect(0, fxOnceBlue))
	renderOnce(c)
	require.Equal(t, blend.Color{B: 255}, c.buffers[0][80])

	require.NoError(t, c.SetZoneEffect(0, 4))
	dst := renderOnce(c)
	// Switch cleared the buffer; failed init leaves the zone dark this tick.
	assert.Equal(t, blend.Color{}, dst[80])
	assert.Equal(t, 1, flaky.inits)

	flaky.ready = true
	dst = renderOnce(c)
	assert.Equal(t, uint8(1), dst[80].R)
	assert.Equal(t, 2, flaky.inits)

	// Init runs once; later ticks go straight to Render.
	renderOnce(c)
	assert.Equal(t, 2, flaky.inits)
}

func beat(c *Composer) {
	c.ProcessAudioHop(audio.Frame{BeatTick: true})
	c.ProcessAudioHop(audio.Frame{BeatTick: false})
}

func TestBeatTriggerRotation(t *testing.T) {
	c, _ := newTestComposer(t)
	stored, err := c.SetZoneTrigger(0, TriggerConfig{
		Enabled:  true,
		Interval: 4,
		Effects:  []int{fxWhite, fxRed, fxGreen},
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(4), stored.Interval)
	assert.Equal(t, fxWhite, c.ZoneEffect(0))

	for cycle, want := range []int{fxRed, fxGreen, fxWhite} {
		for i := 0; i < 4; i++ {
			beat(c)
		}
		assert.Equal(t, want, c.ZoneEffect(0), "cycle %d", cycle)
	}
}

func TestBeatEdgeDetection(t *testing.T) {
	c, _ := newTestComposer(t)
	_, err := c.SetZoneTrigger(0, TriggerConfig{Enabled: true, Interval: 1, Effects: []int{fxWhite, fxRed}})
	require.NoError(t, err)
	require.Equal(t, fxWhite, c.ZoneEffect(0))

	// A held-high tick is one beat, not many.
	c.ProcessAudioHop(audio.Frame{BeatTick: true})
	c.ProcessAudioHop(audio.Frame{BeatTick: true})
	c.ProcessAudioHop(audio.Frame{BeatTick: true})
	assert.Equal(t, fxRed, c.ZoneEffect(0))
}

func TestTriggerIntervalSnapsToNearest(t *testing.T) {
	cases := map[uint8]uint8{0: 1, 1: 1, 3: 2, 5: 4, 7: 8, 12: 8, 16: 16, 25: 32, 200: 32}
	c, _ := newTestComposer(t)
	for in, want := range cases {
		stored, err := c.SetZoneTrigger(0, TriggerConfig{Interval: in})
		require.NoError(t, err)
		assert.Equal(t, want, stored.Interval, "interval %d", in)
	}
}

func TestTriggerRejectsUnknownEffectWholesale(t *testing.T) {
	c, _ := newTestComposer(t)
	_, err := c.SetZoneTrigger(0, TriggerConfig{Enabled: true, Effects: []int{fxWhite, 99}})
	assert.ErrorIs(t, err, ErrEffectList)
	// The previous trigger state is untouched.
	assert.Empty(t, c.ZoneTrigger(0).Effects)
	assert.False(t, c.ZoneTrigger(0).Enabled)
}

func TestTriggerListTruncated(t *testing.T) {
	c, _ := newTestComposer(t)
	long := make([]int, MaxTriggerEffects+4)
	stored, err := c.SetZoneTrigger(0, TriggerConfig{Effects: long})
	require.NoError(t, err)
	assert.Len(t, stored.Effects, MaxTriggerEffects)
}

func TestBeatEnvelopeChargesAndDecays(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	c.SetZoneBrightness(0, 100)
	c.SetZoneAudioConfig(0, AudioConfig{BeatModulation: 255, BeatDecay: 100})

	beat(c)
	require.Equal(t, uint8(255), c.zones[0].beatEnv)

	// Full envelope saturates effective brightness for this frame.
	dst := renderOnce(c)
	assert.Equal(t, uint8(255), dst[80].R)
	assert.Equal(t, uint8(155), c.zones[0].beatEnv)

	// The envelope drains to zero over subsequent frames.
	renderOnce(c)
	assert.Equal(t, uint8(55), c.zones[0].beatEnv)
	renderOnce(c)
	assert.Equal(t, uint8(0), c.zones[0].beatEnv)
	dst = renderOnce(c)
	assert.Equal(t, uint8(100), dst[80].R)
}

func TestAudioConfigClamped(t *testing.T) {
	c, _ := newTestComposer(t)
	stored := c.SetZoneAudioConfig(0, AudioConfig{TempoSpeedScale: 255, Band: 9})
	assert.Equal(t, uint8(TempoScaleMax), stored.TempoSpeedScale)
	assert.Equal(t, uint8(audio.BandFull), stored.Band)
}

func TestCallbackThrottle(t *testing.T) {
	c, _ := newTestComposer(t)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	var calls []int
	c.SetStateChangeCallback(func(zone int) { calls = append(calls, zone) })

	c.SetZoneBrightness(0, 10)
	c.SetZoneBrightness(0, 20)
	c.SetZoneBrightness(0, 30)
	assert.Equal(t, []int{0}, calls)

	// Another zone has its own throttle window.
	c.SetZoneBrightness(1, 10)
	assert.Equal(t, []int{0, 1}, calls)

	clock = clock.Add(notifyThrottle)
	c.SetZoneBrightness(0, 40)
	assert.Equal(t, []int{0, 1, 0}, calls)
}

func TestExportImportRoundTrip(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	require.NoError(t, c.SetZoneEffect(1, fxRed))
	c.SetZoneBrightness(1, 90)
	c.SetZoneSpeed(1, 33)
	c.SetZoneBlendMode(1, blend.Screen)
	c.SetZoneEnabled(1, true)
	_, err := c.SetZoneTrigger(2, TriggerConfig{Enabled: true, Interval: 8, Effects: []int{fxWhite, fxGreen}})
	require.NoError(t, err)

	snap := c.Export()

	other, _ := newTestComposer(t)
	require.NoError(t, other.Import(snap))
	assert.True(t, other.Enabled())
	assert.Equal(t, fxRed, other.ZoneEffect(1))
	assert.Equal(t, uint8(90), other.ZoneBrightness(1))
	assert.Equal(t, uint8(33), other.ZoneSpeed(1))
	assert.Equal(t, blend.Screen, other.ZoneBlendMode(1))
	assert.True(t, other.ZoneEnabled(1))
	tr := other.ZoneTrigger(2)
	assert.True(t, tr.Enabled)
	assert.Equal(t, uint8(8), tr.Interval)
	assert.Equal(t, []int{fxWhite, fxGreen}, tr.Effects)
}

func TestImportRejectsBadSnapshots(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetZoneBrightness(0, 42)

	bad := c.Export()
	bad.Segments = bad.Segments[:1]
	require.Error(t, c.Import(bad))

	badEffect := c.Export()
	badEffect.Zones[0].Effect = 99
	assert.ErrorIs(t, c.Import(badEffect), ErrUnknownEffect)

	badTrigger := c.Export()
	badTrigger.Zones[0].Trigger.Effects = []int{99}
	assert.ErrorIs(t, c.Import(badTrigger), ErrEffectList)

	// Nothing was applied.
	assert.Equal(t, uint8(42), c.ZoneBrightness(0))
	assert.Equal(t, 3, c.ZoneCount())
}

func TestMetricsCountFrames(t *testing.T) {
	c, _ := newTestComposer(t)
	c.SetEnabled(true)
	renderOnce(c)
	renderOnce(c)
	m := c.Metrics()
	assert.Equal(t, uint64(2), m.Frames)
	c.ResetMetrics()
	assert.Equal(t, uint64(0), c.Metrics().Frames)
}
