// Package palette provides 16-entry color gradients and the registry the
// composition engine resolves per-zone palette ids against. Id 0 is reserved
// to mean "use the global palette".
package palette

import "github.com/lumenweave/stripzones/internal/blend"

// Palette is a 16-entry gradient sampled with 8-bit interpolation across
// the full 0..255 index range.
type Palette [16]blend.Color

// Sample returns the interpolated color at idx. Index 0..255 maps onto the
// 16 entries with linear blending between neighbours, wrapping at the end.
func (p Palette) Sample(idx uint8) blend.Color {
	slot := idx >> 4
	frac := (idx & 0x0f) << 4
	next := (slot + 1) & 0x0f
	return blend.Lerp(p[slot], p[next], frac)
}

// Registry holds the selectable palettes. Index 0 doubles as the fallback
// for out-of-range ids.
type Registry struct {
	palettes []Palette
	names    []string
}

func rgb(r, g, b uint8) blend.Color { return blend.Color{R: r, G: g, B: b} }

// gradient fills a palette by interpolating evenly between anchor colors.
func gradient(anchors ...blend.Color) Palette {
	var p Palette
	if len(anchors) == 0 {
		return p
	}
	if len(anchors) == 1 {
		for i := range p {
			p[i] = anchors[0]
		}
		return p
	}
	spans := len(anchors) - 1
	for i := range p {
		pos := i * spans * 255 / 15
		span := pos / 255
		if span >= spans {
			span = spans - 1
		}
		t := uint8(pos - span*255)
		p[i] = blend.Lerp(anchors[span], anchors[span+1], t)
	}
	return p
}

// NewRegistry returns the built-in palette set.
func NewRegistry() *Registry {
	r := &Registry{}
	r.add("rainbow", gradient(
		rgb(255, 0, 0), rgb(255, 170, 0), rgb(0, 255, 0),
		rgb(0, 170, 255), rgb(0, 0, 255), rgb(255, 0, 170), rgb(255, 0, 0)))
	r.add("fire", gradient(rgb(0, 0, 0), rgb(180, 0, 0), rgb(255, 120, 0), rgb(255, 255, 160)))
	r.add("ocean", gradient(rgb(0, 0, 40), rgb(0, 60, 160), rgb(0, 180, 200), rgb(200, 255, 255)))
	r.add("forest", gradient(rgb(0, 20, 0), rgb(0, 120, 30), rgb(120, 200, 60), rgb(220, 255, 180)))
	r.add("lava", gradient(rgb(20, 0, 0), rgb(140, 20, 0), rgb(255, 80, 0), rgb(255, 200, 40)))
	r.add("aurora", gradient(rgb(0, 10, 30), rgb(0, 180, 120), rgb(120, 60, 200), rgb(10, 20, 60)))
	return r
}

func (r *Registry) add(name string, p Palette) {
	r.names = append(r.names, name)
	r.palettes = append(r.palettes, p)
}

// Resolve returns the palette for id, falling back to palette 0 for ids
// outside the registry.
func (r *Registry) Resolve(id uint8) Palette {
	if int(id) >= len(r.palettes) {
		return r.palettes[0]
	}
	return r.palettes[id]
}

// Clamp maps id onto the valid range, returning 0 when out of bounds.
func (r *Registry) Clamp(id uint8) uint8 {
	if int(id) >= len(r.palettes) {
		return 0
	}
	return id
}

func (r *Registry) Len() int        { return len(r.palettes) }
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }
