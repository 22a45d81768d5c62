package latency

import (
	"fmt"
	"time"
)

// MaxPlausibleLatency is the upper bound of an acceptable sample. Anything
// longer is attributed to an unrelated change, not to the stimulus.
const MaxPlausibleLatency = 500 * time.Millisecond

// Verdict is the correlation result for one attempt.
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictImplausible
	VerdictNoChange
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictImplausible:
		return "implausible"
	case VerdictNoChange:
		return "no_change"
	default:
		return "unknown"
	}
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, bool) {
	for _, v := range []Verdict{VerdictAccepted, VerdictImplausible, VerdictNoChange} {
		if v.String() == s {
			return v, true
		}
	}
	return 0, false
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, ok := ParseVerdict(string(b))
	if !ok {
		return fmt.Errorf("unknown verdict %q", b)
	}
	*v = parsed
	return nil
}

// SampleResult is the outcome of Correlate.
type SampleResult struct {
	Verdict Verdict

	// Latency is observed-minus-dispatch for detected outcomes, whether
	// accepted or not. Zero for no-change outcomes.
	Latency time.Duration
}

// Accepted reports whether the result carries a usable sample.
func (r SampleResult) Accepted() bool {
	return r.Verdict == VerdictAccepted
}

// Correlate pairs a dispatch instant with a detection outcome and returns
// the sample verdict together with the baseline for the next attempt.
//
// A detected change advances the baseline to the observed fingerprint even
// when the latency is rejected. No-change and transient outcomes leave the
// previous baseline in force, so a missed change can still be picked up by a
// later attempt.
func Correlate(dispatchedAt Timestamp, out DetectOutcome, baseline Fingerprint) (SampleResult, Fingerprint) {
	if out.Kind != OutcomeDetected {
		return SampleResult{Verdict: VerdictNoChange}, baseline
	}

	lat := out.At.Sub(dispatchedAt)
	if !Plausible(lat) {
		return SampleResult{Verdict: VerdictImplausible, Latency: lat}, out.Fingerprint
	}
	return SampleResult{Verdict: VerdictAccepted, Latency: lat}, out.Fingerprint
}

// Plausible reports whether 0 < lat <= MaxPlausibleLatency.
func Plausible(lat time.Duration) bool {
	return lat > 0 && lat <= MaxPlausibleLatency
}
