package effect

import (
	"math"

	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/layout"
)

// RegisterBuiltins fills a registry with the stock renderers. Id 0 is the
// solid fill so a zero-valued zone config renders something sane.
func RegisterBuiltins(g *Registry) {
	g.Register(&Solid{})
	g.Register(&Rainbow{})
	g.Register(&Pulse{})
	g.Register(&Comet{})
	g.Register(&Sparkle{})
}

// Solid paints the whole buffer with the palette color at the global hue.
type Solid struct{}

func (*Solid) Name() string           { return "solid" }
func (*Solid) Init(ctx *Context) bool { return true }
func (*Solid) Render(ctx *Context) {
	c := ctx.Palette.Sample(ctx.Hue)
	for i := range ctx.Buf {
		ctx.Buf[i] = c
	}
}

// Rainbow sweeps the palette along the strip, mirrored about the centre.
type Rainbow struct{}

func (*Rainbow) Name() string           { return "rainbow" }
func (*Rainbow) Init(ctx *Context) bool { return true }
func (*Rainbow) Render(ctx *Context) {
	shift := uint8(ctx.TimeMS / 20)
	for i := 0; i < layout.StripLength && i < len(ctx.Buf); i++ {
		d := i - layout.CenterLeft
		if d < 0 {
			d = -d
		}
		c := ctx.Palette.Sample(uint8(d*3) + ctx.Hue + shift)
		ctx.Buf[i] = c
		if j := i + layout.StripLength; j < len(ctx.Buf) {
			ctx.Buf[j] = c
		}
	}
}

// Pulse breathes the palette color with a raised-cosine envelope; audio band
// energy widens the envelope when present.
type Pulse struct{}

func (*Pulse) Name() string           { return "pulse" }
func (*Pulse) Init(ctx *Context) bool { return true }
func (*Pulse) Render(ctx *Context) {
	phase := float64(ctx.TimeMS) / 1000.0 * 2 * math.Pi / 3.0
	env := 0.5 - 0.5*math.Cos(phase)
	env += ctx.Audio.Bands[0] * 0.5
	if env > 1 {
		env = 1
	}
	c := blend.Scale(ctx.Palette.Sample(ctx.Hue), uint8(env*255))
	for i := range ctx.Buf {
		ctx.Buf[i] = c
	}
}

// Comet runs a bright head outward from the centre leaving a decaying tail.
// The tail depends on the buffer persisting between frames.
type Comet struct {
	pos float64
}

func (*Comet) Name() string { return "comet" }

func (c *Comet) Init(ctx *Context) bool {
	c.pos = 0
	return true
}

func (c *Comet) Render(ctx *Context) {
	// fade existing trail
	for i := range ctx.Buf {
		ctx.Buf[i] = blend.Scale(ctx.Buf[i], 230)
	}
	c.pos += float64(ctx.DeltaMS) * float64(ctx.Speed) / 400.0
	span := float64(layout.CenterLeft + 1)
	off := int(math.Mod(c.pos, span))
	head := ctx.Palette.Sample(ctx.Hue)
	set := func(i int) {
		if i >= 0 && i < len(ctx.Buf) {
			ctx.Buf[i] = head
		}
	}
	set(layout.CenterLeft - off)
	set(layout.CenterRight + off)
	set(layout.StripLength + layout.CenterLeft - off)
	set(layout.StripLength + layout.CenterRight + off)
}

// Sparkle lights pseudo-random LEDs each frame over a fading background.
type Sparkle struct {
	rng uint32
}

func (*Sparkle) Name() string { return "sparkle" }

func (s *Sparkle) Init(ctx *Context) bool {
	s.rng = 0x2545f491 + uint32(ctx.ZoneID)
	return true
}

func (s *Sparkle) next() uint32 {
	// xorshift32
	s.rng ^= s.rng << 13
	s.rng ^= s.rng >> 17
	s.rng ^= s.rng << 5
	return s.rng
}

func (s *Sparkle) Render(ctx *Context) {
	for i := range ctx.Buf {
		ctx.Buf[i] = blend.Scale(ctx.Buf[i], 210)
	}
	n := 2 + int(ctx.Speed)/20
	for i := 0; i < n; i++ {
		idx := int(s.next()) % len(ctx.Buf)
		if idx < 0 {
			idx += len(ctx.Buf)
		}
		ctx.Buf[idx] = ctx.Palette.Sample(uint8(s.next()))
	}
}
