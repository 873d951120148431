package blend

// Color is one 8-bit-per-channel RGB pixel.
type Color struct{ R, G, B uint8 }

// Mode selects the per-channel operator used when compositing a zone's
// pixel onto the shared output buffer.
type Mode uint8

const (
	Overwrite Mode = iota
	Additive
	Multiply
	Screen
	Overlay
	Alpha
	Lighten
	Darken

	modeCount
)

var modeNames = [modeCount]string{
	"overwrite", "additive", "multiply", "screen",
	"overlay", "alpha", "lighten", "darken",
}

func (m Mode) String() string {
	if m >= modeCount {
		return "overwrite"
	}
	return modeNames[m]
}

// Valid reports whether m is one of the eight defined modes.
func (m Mode) Valid() bool { return m < modeCount }

// Clamp maps any out-of-range mode back to Overwrite.
func Clamp(m Mode) Mode {
	if m >= modeCount {
		return Overwrite
	}
	return m
}

// ParseMode returns the mode for a lowercase name, Overwrite if unknown.
func ParseMode(name string) (Mode, bool) {
	for i, n := range modeNames {
		if n == name {
			return Mode(i), true
		}
	}
	return Overwrite, false
}

// additivePreScale leaves headroom before the saturating add so that two
// bright zones do not immediately slam to solid white. 178/255 ~= 0.70.
const additivePreScale = 178

func qadd8(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// AddSat and SubSat are the saturating channel primitives; the composition
// engine uses them for beat-envelope arithmetic.
func AddSat(a, b uint8) uint8 { return qadd8(a, b) }

func SubSat(a, b uint8) uint8 {
	if b >= a {
		return 0
	}
	return a - b
}

// ScaleChan scales a single channel value by s/255.
func ScaleChan(a, s uint8) uint8 { return scale8(a, s) }

func scale8(a, b uint8) uint8 {
	return uint8(uint16(a) * uint16(b) / 255)
}

// Func composites one new zone pixel over the existing output pixel.
type Func func(base, over Color) Color

func blendOverwrite(_, over Color) Color { return over }

func blendAdditive(base, over Color) Color {
	return Color{
		qadd8(scale8(base.R, additivePreScale), scale8(over.R, additivePreScale)),
		qadd8(scale8(base.G, additivePreScale), scale8(over.G, additivePreScale)),
		qadd8(scale8(base.B, additivePreScale), scale8(over.B, additivePreScale)),
	}
}

func blendMultiply(base, over Color) Color {
	return Color{
		scale8(base.R, over.R),
		scale8(base.G, over.G),
		scale8(base.B, over.B),
	}
}

func screen8(a, b uint8) uint8 { return 255 - scale8(255-a, 255-b) }

func blendScreen(base, over Color) Color {
	return Color{
		screen8(base.R, over.R),
		screen8(base.G, over.G),
		screen8(base.B, over.B),
	}
}

// overlay8 multiplies against the doubled base below the midpoint and
// screens against the doubled inverse above it.
func overlay8(base, over uint8) uint8 {
	if base < 128 {
		return scale8(qadd8(base, base), over)
	}
	inv := 255 - base
	return 255 - scale8(qadd8(inv, inv), 255-over)
}

func blendOverlay(base, over Color) Color {
	return Color{
		overlay8(base.R, over.R),
		overlay8(base.G, over.G),
		overlay8(base.B, over.B),
	}
}

func blendAlpha(base, over Color) Color {
	return Color{
		uint8((uint16(base.R) + uint16(over.R)) / 2),
		uint8((uint16(base.G) + uint16(over.G)) / 2),
		uint8((uint16(base.B) + uint16(over.B)) / 2),
	}
}

func max8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func min8(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

func blendLighten(base, over Color) Color {
	return Color{max8(base.R, over.R), max8(base.G, over.G), max8(base.B, over.B)}
}

func blendDarken(base, over Color) Color {
	return Color{min8(base.R, over.R), min8(base.G, over.G), min8(base.B, over.B)}
}

var funcs = [modeCount]Func{
	blendOverwrite, blendAdditive, blendMultiply, blendScreen,
	blendOverlay, blendAlpha, blendLighten, blendDarken,
}

// ForMode returns the operator for m; unknown modes fall back to Overwrite.
func ForMode(m Mode) Func {
	if m >= modeCount {
		return blendOverwrite
	}
	return funcs[m]
}

// Pixels composites over onto base using m.
func Pixels(base, over Color, m Mode) Color { return ForMode(m)(base, over) }

// Scale returns c with each channel scaled by s/255.
func Scale(c Color, s uint8) Color {
	return Color{scale8(c.R, s), scale8(c.G, s), scale8(c.B, s)}
}

func lerp8(a, b, t uint8) uint8 {
	if b >= a {
		return a + scale8(b-a, t)
	}
	return a - scale8(a-b, t)
}

// Lerp interpolates between a and b by t/255, used for palette sampling.
func Lerp(a, b Color, t uint8) Color {
	return Color{lerp8(a.R, b.R, t), lerp8(a.G, b.G, t), lerp8(a.B, b.B, t)}
}
