// Package effect defines the renderer capability the composition engine
// invokes per zone, and the registry that owns renderer lifetimes. Effects
// are opaque and possibly stateful; the engine never resets them between
// frames.
package effect

import (
	"github.com/lumenweave/stripzones/internal/audio"
	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/palette"
)

// Context carries everything a renderer needs for one frame of one zone.
// Buf is the zone's full-strip persistent buffer; renderers accumulate into
// it across frames (trails, smoothing) and must not assume it starts zeroed.
type Context struct {
	Buf        []blend.Color
	Palette    palette.Palette
	Hue        uint8
	Brightness uint8
	Speed      uint8
	Frame      uint32
	TimeMS     uint32
	DeltaMS    uint32
	ZoneID     uint8
	ZoneStart  int
	ZoneLen    int
	Audio      audio.Frame
}

// Renderer is the opaque effect capability. Init is called once before the
// first Render; returning false marks a transient failure and the engine
// skips the zone for that tick without touching its buffer.
type Renderer interface {
	Name() string
	Init(ctx *Context) bool
	Render(ctx *Context)
}

// Registry assigns stable integer handles to renderers. Handles are indices;
// once registered a renderer is never removed, so ids stay valid for the
// process lifetime.
type Registry struct {
	effects []Renderer
}

func NewRegistry() *Registry { return &Registry{} }

// Register adds r and returns its id. Nil renderers are ignored and get -1.
func (g *Registry) Register(r Renderer) int {
	if r == nil {
		return -1
	}
	g.effects = append(g.effects, r)
	return len(g.effects) - 1
}

// Get returns the renderer for id, or false when the id was never issued.
func (g *Registry) Get(id int) (Renderer, bool) {
	if id < 0 || id >= len(g.effects) {
		return nil, false
	}
	return g.effects[id], true
}

// Valid reports whether id names a registered renderer.
func (g *Registry) Valid(id int) bool { return id >= 0 && id < len(g.effects) }

func (g *Registry) Len() int { return len(g.effects) }

func (g *Registry) Names() []string {
	out := make([]string, len(g.effects))
	for i, e := range g.effects {
		out[i] = e.Name()
	}
	return out
}
