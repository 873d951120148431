// Package audio is the boundary to the external analysis pipeline: the
// composition engine reads smoothed tempo, beat ticks and band energies from
// here and never pushes anything back.
package audio

// Aggregate band selectors for per-zone frequency routing.
const (
	BandFull uint8 = iota
	BandBass
	BandMid
	BandHigh

	BandCount = 4
)

// Frame is one hop of the analysis pipeline. Band energies are normalized
// to 0..1; TempoRatio is the detected tempo relative to the effect's nominal
// animation rate (1.0 = no change).
type Frame struct {
	TempoRatio float64
	BeatTick   bool
	Bands      [BandCount]float64
}

// Source hands out the most recent frame. Implementations must be safe for
// concurrent readers and must never block.
type Source interface {
	Frame() Frame
}

// NullSource is the silent fallback when no pipeline is attached.
type NullSource struct{}

func (NullSource) Frame() Frame { return Frame{TempoRatio: 1.0} }

// ClampBand maps out-of-range band selectors back to BandFull.
func ClampBand(band uint8) uint8 {
	if band >= BandCount {
		return BandFull
	}
	return band
}

// FilterBand returns f with every band other than the selected one zeroed,
// so a zone's effect only sees its assigned frequency range. BandFull passes
// the frame through untouched.
func FilterBand(f Frame, band uint8) Frame {
	if band == BandFull || band >= BandCount {
		return f
	}
	keep := f.Bands[band]
	f.Bands = [BandCount]float64{}
	f.Bands[band] = keep
	f.Bands[BandFull] = keep
	return f
}

// Smoother low-passes tempo ratio updates so zone time accumulators never
// see a raw step; a step would read as a visible jump in every tempo-synced
// animation.
type Smoother struct {
	ratio float64
	alpha float64
}

// NewSmoother builds a smoother with the given per-update coefficient
// (0 < alpha <= 1; higher tracks faster). The ratio starts at 1.0.
func NewSmoother(alpha float64) *Smoother {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &Smoother{ratio: 1.0, alpha: alpha}
}

// Update moves the smoothed ratio toward target and returns the new value.
// Non-positive targets are ignored.
func (s *Smoother) Update(target float64) float64 {
	if target > 0 {
		s.ratio += (target - s.ratio) * s.alpha
	}
	return s.ratio
}

// Ratio returns the current smoothed value.
func (s *Smoother) Ratio() float64 { return s.ratio }
