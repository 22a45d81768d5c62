package fingerprint

import "github.com/roach88/lagprobe/internal/latency"

// Auto-region size used when no region is configured.
const (
	AutoRegionWidth  = 200
	AutoRegionHeight = 200
)

// ResolveRegion fits the configured region to a screen of the given size.
//
// A zero region becomes a 200x200 square centred on the screen. Otherwise
// width and height are clamped so the region ends at the screen edge.
func ResolveRegion(screenW, screenH int, r latency.Region) latency.Region {
	if r.IsZero() {
		w := min(AutoRegionWidth, screenW)
		h := min(AutoRegionHeight, screenH)
		return latency.Region{
			X: screenW/2 - w/2,
			Y: screenH/2 - h/2,
			W: w,
			H: h,
		}
	}
	if r.X+r.W > screenW {
		r.W = max(screenW-r.X, 0)
	}
	if r.Y+r.H > screenH {
		r.H = max(screenH-r.Y, 0)
	}
	return r
}
