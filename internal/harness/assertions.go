package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/lagprobe/internal/latency"
	"github.com/roach88/lagprobe/internal/report"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// counterValue looks up a diagnostic counter by its JSON name.
func counterValue(c latency.DiagnosticCounters, name string) (int, bool) {
	switch name {
	case "attempts":
		return c.Attempts, true
	case "successful_detections":
		return c.SuccessfulDetections, true
	case "timeouts":
		return c.Timeouts, true
	case "unchanged_polls":
		return c.UnchangedPolls, true
	case "injector_only_noise":
		return c.InjectorOnlyNoise, true
	case "detector_errors":
		return c.DetectorErrors, true
	case "no_change_outcomes":
		return c.NoChangeOutcomes, true
	case "implausible_samples":
		return c.ImplausibleSamples, true
	default:
		return 0, false
	}
}

func within(v float64, a Assertion) bool {
	if a.Min != nil && v < *a.Min {
		return false
	}
	if a.Max != nil && v > *a.Max {
		return false
	}
	return true
}

func bounds(a Assertion) string {
	lo, hi := "-inf", "+inf"
	if a.Min != nil {
		lo = fmt.Sprintf("%g", *a.Min)
	}
	if a.Max != nil {
		hi = fmt.Sprintf("%g", *a.Max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

func assertPooledCount(rep *latency.Report, a Assertion) error {
	got := 0
	if rep.HasPooled {
		got = rep.Pooled.Count
	}
	if got != a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d pooled samples", a.Count), Actual: fmt.Sprintf("%d", got)}
	}
	return nil
}

func assertMeanBetween(rep *latency.Report, a Assertion) error {
	if !rep.HasPooled {
		return &AssertionError{Type: a.Type, Expected: "mean in " + bounds(a) + " ms", Actual: "no data"}
	}
	mean := rep.Pooled.Mean / float64(time.Millisecond)
	if !within(mean, a) {
		return &AssertionError{Type: a.Type, Expected: "mean in " + bounds(a) + " ms", Actual: fmt.Sprintf("%.3f ms", mean)}
	}
	return nil
}

func assertVerdict(rep *latency.Report, refreshHz int, a Assertion) error {
	if !rep.HasPooled {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("verdict %q", a.Verdict), Actual: "no data"}
	}
	got := report.Verdict(report.Frames(time.Duration(rep.Pooled.Mean), refreshHz))
	if !strings.HasPrefix(got, a.Verdict) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("verdict %q", a.Verdict), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}

func assertNoData(rep *latency.Report, a Assertion) error {
	if rep.HasPooled {
		return &AssertionError{Type: a.Type, Expected: "no pooled samples", Actual: fmt.Sprintf("%d", rep.Pooled.Count)}
	}
	return nil
}

func assertAdvisory(rep *latency.Report, a Assertion) error {
	codes := make([]string, 0, len(rep.Advisories))
	for _, adv := range rep.Advisories {
		codes = append(codes, string(adv.Code))
	}
	if !slices.Contains(codes, a.Code) {
		return &AssertionError{Type: a.Type, Expected: "advisory " + a.Code, Actual: fmt.Sprintf("%v", codes)}
	}
	return nil
}

func assertCounter(rep *latency.Report, a Assertion) error {
	v, ok := counterValue(rep.Diagnostics, a.Counter)
	if !ok {
		return fmt.Errorf("unknown counter %q", a.Counter)
	}
	if !within(float64(v), a) {
		return &AssertionError{Type: a.Type, Expected: a.Counter + " in " + bounds(a), Actual: fmt.Sprintf("%d", v)}
	}
	return nil
}

func assertFailedRuns(rep *latency.Report, a Assertion) error {
	if got := rep.FailedRuns(); got != a.Count {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d failed runs", a.Count), Actual: fmt.Sprintf("%d", got)}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	rep := result.Report

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPooledCount:
			err = assertPooledCount(rep, assertion)
		case AssertMeanBetween:
			err = assertMeanBetween(rep, assertion)
		case AssertVerdict:
			err = assertVerdict(rep, result.RefreshHz, assertion)
		case AssertNoData:
			err = assertNoData(rep, assertion)
		case AssertAdvisory:
			err = assertAdvisory(rep, assertion)
		case AssertCounter:
			err = assertCounter(rep, assertion)
		case AssertFailedRuns:
			err = assertFailedRuns(rep, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
