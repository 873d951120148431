// Package layout defines the zone geometry of the mirrored dual-strip panel
// and validates zone layouts before the composition engine applies them.
package layout

import (
	"errors"
	"fmt"
	"sort"
)

// Panel geometry. Two mirrored strips of 160 LEDs; strip 2 repeats the
// strip-1 ranges at +StripLength. The physical centre pair is LEDs 79/80.
const (
	StripLength = 160
	TotalLeds   = 320
	CenterLeft  = 79
	CenterRight = 80
	MaxZones    = 4
)

var (
	ErrZoneCount    = errors.New("layout: zone count must be 1..4")
	ErrSegmentRange = errors.New("layout: segment out of strip bounds")
	ErrAsymmetric   = errors.New("layout: left/right segments not symmetric about centre")
	ErrOverlap      = errors.New("layout: segments overlap")
	ErrCoverage     = errors.New("layout: segments do not cover the full strip")
	ErrCenterOrigin = errors.New("layout: zone 0 must contain the centre pair")
	ErrOrdering     = errors.New("layout: zones not ordered centre-outward")
	ErrPermutation  = errors.New("layout: order is not a valid permutation")
)

// Segment is one zone's LED address ranges. Left covers [LeftStart, LeftEnd]
// and Right covers [RightStart, RightEnd], inclusive strip-1 indices.
type Segment struct {
	ZoneID     uint8 `yaml:"zone" json:"zone"`
	LeftStart  uint8 `yaml:"left_start" json:"leftStart"`
	LeftEnd    uint8 `yaml:"left_end" json:"leftEnd"`
	RightStart uint8 `yaml:"right_start" json:"rightStart"`
	RightEnd   uint8 `yaml:"right_end" json:"rightEnd"`
}

func (s Segment) LeftCount() int  { return int(s.LeftEnd) - int(s.LeftStart) + 1 }
func (s Segment) RightCount() int { return int(s.RightEnd) - int(s.RightStart) + 1 }

// TotalLeds is the strip-1 LED count of the segment; the mirrored strip
// doubles it on the panel.
func (s Segment) TotalLeds() int { return s.LeftCount() + s.RightCount() }

// Contains reports whether strip-1 index idx is inside the segment.
func (s Segment) Contains(idx int) bool {
	return (idx >= int(s.LeftStart) && idx <= int(s.LeftEnd)) ||
		(idx >= int(s.RightStart) && idx <= int(s.RightEnd))
}

// ContainsCentre reports whether the segment holds the physical centre pair.
func (s Segment) ContainsCentre() bool {
	return s.Contains(CenterLeft) || s.Contains(CenterRight)
}

// CentreDistance is the distance of the segment's nearest edge from the
// centre pair; 0 for the innermost ring.
func (s Segment) CentreDistance() int {
	left := CenterLeft - int(s.LeftEnd)
	right := int(s.RightStart) - CenterRight
	if left < right {
		return left
	}
	return right
}

func (s Segment) String() string {
	return fmt.Sprintf("zone %d: %d-%d + %d-%d", s.ZoneID, s.LeftStart, s.LeftEnd, s.RightStart, s.RightEnd)
}

// Built-in concentric layouts.
var (
	Single = []Segment{
		{ZoneID: 0, LeftStart: 0, LeftEnd: 79, RightStart: 80, RightEnd: 159},
	}
	Triple = []Segment{
		{ZoneID: 0, LeftStart: 65, LeftEnd: 79, RightStart: 80, RightEnd: 94},
		{ZoneID: 1, LeftStart: 20, LeftEnd: 64, RightStart: 95, RightEnd: 139},
		{ZoneID: 2, LeftStart: 0, LeftEnd: 19, RightStart: 140, RightEnd: 159},
	}
	Quad = []Segment{
		{ZoneID: 0, LeftStart: 60, LeftEnd: 79, RightStart: 80, RightEnd: 99},
		{ZoneID: 1, LeftStart: 40, LeftEnd: 59, RightStart: 100, RightEnd: 119},
		{ZoneID: 2, LeftStart: 20, LeftEnd: 39, RightStart: 120, RightEnd: 139},
		{ZoneID: 3, LeftStart: 0, LeftEnd: 19, RightStart: 140, RightEnd: 159},
	}
)

// Validate checks a candidate layout in full. It never mutates its input;
// callers apply the layout only when Validate returns nil.
func Validate(segs []Segment) error {
	if len(segs) == 0 || len(segs) > MaxZones {
		return fmt.Errorf("%w: got %d", ErrZoneCount, len(segs))
	}

	var coverage [StripLength]bool
	for i, seg := range segs {
		if seg.LeftStart > seg.LeftEnd || seg.LeftEnd > CenterLeft {
			return fmt.Errorf("%w: zone %d left %d-%d", ErrSegmentRange, i, seg.LeftStart, seg.LeftEnd)
		}
		if seg.RightStart < CenterRight || seg.RightStart > seg.RightEnd || seg.RightEnd >= StripLength {
			return fmt.Errorf("%w: zone %d right %d-%d", ErrSegmentRange, i, seg.RightStart, seg.RightEnd)
		}
		if seg.LeftCount() != seg.RightCount() {
			return fmt.Errorf("%w: zone %d left=%d right=%d", ErrAsymmetric, i, seg.LeftCount(), seg.RightCount())
		}
		if CenterLeft-int(seg.LeftEnd) != int(seg.RightStart)-CenterRight {
			return fmt.Errorf("%w: zone %d unequal centre distances", ErrAsymmetric, i)
		}
		for led := seg.LeftStart; led <= seg.LeftEnd; led++ {
			if coverage[led] {
				return fmt.Errorf("%w: led %d", ErrOverlap, led)
			}
			coverage[led] = true
		}
		for led := seg.RightStart; led <= seg.RightEnd; led++ {
			if coverage[led] {
				return fmt.Errorf("%w: led %d", ErrOverlap, led)
			}
			coverage[led] = true
		}
	}

	for led := 0; led < StripLength; led++ {
		if !coverage[led] {
			return fmt.Errorf("%w: led %d unassigned", ErrCoverage, led)
		}
	}

	if !segs[0].ContainsCentre() {
		return ErrCenterOrigin
	}

	// Zones must run centre-outward: left edges descend, right edges ascend.
	for i := 0; i+1 < len(segs); i++ {
		if segs[i].LeftEnd <= segs[i+1].LeftEnd || segs[i].RightStart >= segs[i+1].RightStart {
			return fmt.Errorf("%w: zone %d vs %d", ErrOrdering, i, i+1)
		}
	}
	return nil
}

// OrderByCentreDistance returns a copy of segs sorted by ascending distance
// of each segment's nearest edge from the centre pair, renumbering ZoneID to
// match the new positions. The sort is stable so ties keep input order. Used
// to normalize externally supplied layouts before Validate.
func OrderByCentreDistance(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	copy(out, segs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CentreDistance() < out[j].CentreDistance()
	})
	for i := range out {
		out[i].ZoneID = uint8(i)
	}
	return out
}

// CheckPermutation validates a zone reorder request against the current
// layout: order must be a permutation of 0..len(segs)-1 and the segment
// moved into position 0 must contain the centre pair. The layout itself is
// not modified.
func CheckPermutation(segs []Segment, order []uint8) error {
	if len(order) != len(segs) {
		return fmt.Errorf("%w: want %d entries, got %d", ErrPermutation, len(segs), len(order))
	}
	var seen [MaxZones]bool
	for _, idx := range order {
		if int(idx) >= len(segs) || seen[idx] {
			return fmt.Errorf("%w: index %d", ErrPermutation, idx)
		}
		seen[idx] = true
	}
	if !segs[order[0]].ContainsCentre() {
		return ErrCenterOrigin
	}
	return nil
}

// Apply returns segs rearranged by order with ZoneIDs renumbered. Callers
// must run CheckPermutation first.
func Apply(segs []Segment, order []uint8) []Segment {
	out := make([]Segment, len(segs))
	for i, idx := range order {
		out[i] = segs[idx]
		out[i].ZoneID = uint8(i)
	}
	return out
}
