// Package led provides strip transmission drivers. The composition engine
// hands finished frames to a Driver and knows nothing about timing or
// protocol.
package led

import (
	"github.com/rs/zerolog"

	"github.com/lumenweave/stripzones/internal/blend"
)

// Driver accepts a finished output frame.
type Driver interface {
	Write(frame []blend.Color) error
}

// Fake counts frames and logs a compact summary, for headless runs and
// tests.
type Fake struct {
	Frames int
	Last   []blend.Color
	Log    zerolog.Logger
}

func (d *Fake) Write(frame []blend.Color) error {
	d.Frames++
	if cap(d.Last) < len(frame) {
		d.Last = make([]blend.Color, len(frame))
	}
	d.Last = d.Last[:len(frame)]
	copy(d.Last, frame)

	var r, g, b int
	for _, c := range frame {
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}
	n := len(frame)
	if n == 0 {
		n = 1
	}
	d.Log.Debug().Int("frame", d.Frames).
		Int("avg_r", r/n).Int("avg_g", g/n).Int("avg_b", b/n).
		Msg("frame written")
	return nil
}
