package compose

import "github.com/lumenweave/stripzones/internal/layout"

// frameSkipThresholdUS flags frames where zone work exceeded the real-time
// budget.
const frameSkipThresholdUS = 2000

// Metrics tracks per-zone render cost and whole-frame compositing overhead.
type Metrics struct {
	ZoneRenderUS [layout.MaxZones]int64 `json:"zoneRenderUs"`
	BlendUS      int64                  `json:"blendUs"`
	TotalUS      int64                  `json:"totalUs"`
	Frames       uint64                 `json:"frames"`
	FrameSkips   uint64                 `json:"frameSkips"`

	cumulativeUS int64
}

// AverageFrameMS is the mean zone-system cost per frame.
func (m Metrics) AverageFrameMS() float64 {
	if m.Frames == 0 {
		return 0
	}
	return float64(m.cumulativeUS) / float64(m.Frames) / 1000.0
}

// Metrics returns a snapshot of the timing counters.
func (c *Composer) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// ResetMetrics zeroes all timing counters.
func (c *Composer) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = Metrics{}
}
