package latency

import "fmt"

// DiagnosticCounters tallies polling and attempt outcomes for a session.
//
// Per poll tick exactly one of Timeouts, UnchangedPolls, InjectorOnlyNoise or
// DetectorErrors is incremented, except for the tick that produced an
// accepted detection. Per completed attempt exactly one of
// SuccessfulDetections or NoChangeOutcomes is incremented; implausible
// detections count as successful detections and additionally bump
// ImplausibleSamples.
//
// The session owns the counters and resets them only when it starts.
type DiagnosticCounters struct {
	Attempts             int `json:"attempts"`
	SuccessfulDetections int `json:"successful_detections"`
	Timeouts             int `json:"timeouts"`
	UnchangedPolls       int `json:"unchanged_polls"`
	InjectorOnlyNoise    int `json:"injector_only_noise"`
	DetectorErrors       int `json:"detector_errors"`
	NoChangeOutcomes     int `json:"no_change_outcomes"`
	ImplausibleSamples   int `json:"implausible_samples"`
}

// PollTicks returns the number of classified poll ticks.
func (c DiagnosticCounters) PollTicks() int {
	return c.Timeouts + c.UnchangedPolls + c.InjectorOnlyNoise + c.DetectorErrors
}

// Add returns the field-wise sum of c and o.
func (c DiagnosticCounters) Add(o DiagnosticCounters) DiagnosticCounters {
	return DiagnosticCounters{
		Attempts:             c.Attempts + o.Attempts,
		SuccessfulDetections: c.SuccessfulDetections + o.SuccessfulDetections,
		Timeouts:             c.Timeouts + o.Timeouts,
		UnchangedPolls:       c.UnchangedPolls + o.UnchangedPolls,
		InjectorOnlyNoise:    c.InjectorOnlyNoise + o.InjectorOnlyNoise,
		DetectorErrors:       c.DetectorErrors + o.DetectorErrors,
		NoChangeOutcomes:     c.NoChangeOutcomes + o.NoChangeOutcomes,
		ImplausibleSamples:   c.ImplausibleSamples + o.ImplausibleSamples,
	}
}

// Tally folds one correlated attempt into the counters.
func (c DiagnosticCounters) Tally(a AttemptRecord) DiagnosticCounters {
	c.Attempts++
	c.Timeouts += a.Tally.Timeouts
	c.UnchangedPolls += a.Tally.Unchanged
	c.DetectorErrors += a.Tally.Errors

	if a.DispatchFailed {
		c.DetectorErrors++
	}

	switch a.Verdict {
	case VerdictAccepted:
		c.SuccessfulDetections++
	case VerdictImplausible:
		c.SuccessfulDetections++
		c.ImplausibleSamples++
		c.InjectorOnlyNoise++
	default:
		c.NoChangeOutcomes++
	}
	return c
}

// Advisory thresholds. Rates strictly above these are flagged.
const (
	NoChangeRateThreshold  = 0.10
	UnchangedRateThreshold = 0.30
	TimeoutRateThreshold   = 0.20
)

// AdvisoryCode identifies an advisory.
type AdvisoryCode string

const (
	AdvisoryExclusiveCapture  AdvisoryCode = "EXCLUSIVE_CAPTURE"
	AdvisoryRegionInsensitive AdvisoryCode = "REGION_INSENSITIVE"
	AdvisorySystemLoad        AdvisoryCode = "SYSTEM_LOAD"
)

// Advisory is a hint attached to a report. It never changes control flow.
type Advisory struct {
	Code      AdvisoryCode `json:"code"`
	Message   string       `json:"message"`
	Rate      float64      `json:"rate"`
	Threshold float64      `json:"threshold"`
}

func (a Advisory) String() string {
	return fmt.Sprintf("%s (%.1f%% > %.0f%%)", a.Message, a.Rate*100, a.Threshold*100)
}

// Classify derives advisories from the counters.
//
// The no-change rate is relative to attempts; the unchanged and timeout
// rates are relative to classified poll ticks. Empty denominators produce no
// advisory.
func Classify(c DiagnosticCounters) []Advisory {
	var out []Advisory

	if c.Attempts > 0 {
		if rate := float64(c.NoChangeOutcomes) / float64(c.Attempts); rate > NoChangeRateThreshold {
			out = append(out, Advisory{
				Code:      AdvisoryExclusiveCapture,
				Message:   "likely exclusive-capture-mode interference",
				Rate:      rate,
				Threshold: NoChangeRateThreshold,
			})
		}
	}

	if ticks := c.PollTicks(); ticks > 0 {
		if rate := float64(c.UnchangedPolls) / float64(ticks); rate > UnchangedRateThreshold {
			out = append(out, Advisory{
				Code:      AdvisoryRegionInsensitive,
				Message:   "region insensitive to stimulus",
				Rate:      rate,
				Threshold: UnchangedRateThreshold,
			})
		}
		if rate := float64(c.Timeouts) / float64(ticks); rate > TimeoutRateThreshold {
			out = append(out, Advisory{
				Code:      AdvisorySystemLoad,
				Message:   "system under load / driver issue",
				Rate:      rate,
				Threshold: TimeoutRateThreshold,
			})
		}
	}

	return out
}
