package fingerprint

// DefaultRefreshHz is assumed when no display mode reports a usable rate.
const DefaultRefreshHz = 60

// DisplayMode is one mode reported by a display, with its refresh rate as a
// rational number.
type DisplayMode struct {
	Width       int
	Height      int
	Numerator   uint32
	Denominator uint32
}

// RefreshHz returns the integer refresh rate, or 0 if the mode has none.
func (m DisplayMode) RefreshHz() int {
	if m.Numerator == 0 || m.Denominator == 0 {
		return 0
	}
	return int(m.Numerator / m.Denominator)
}

// HighestRefreshRate returns the fastest integer rate among modes, never
// less than DefaultRefreshHz.
func HighestRefreshRate(modes []DisplayMode) int {
	best := DefaultRefreshHz
	for _, m := range modes {
		if hz := m.RefreshHz(); hz > best {
			best = hz
		}
	}
	return best
}

// FrameTimeMs returns the duration of one refresh in milliseconds.
func FrameTimeMs(refreshHz int) float64 {
	if refreshHz <= 0 {
		refreshHz = DefaultRefreshHz
	}
	return 1000.0 / float64(refreshHz)
}
