package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lagprobe/internal/report"
)

// Digest renders the timing-independent parts of a result: the figures a
// scenario is expected to reproduce exactly on the fake clock.
func Digest(name string, result *Result) []byte {
	rep := result.Report
	ms := func(v float64) string {
		return fmt.Sprintf("%.2f", v/float64(time.Millisecond))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "refresh_hz: %d\n", result.RefreshHz)
	fmt.Fprintf(&b, "runs: %d (failed %d)\n", len(rep.Runs), rep.FailedRuns())
	for _, run := range rep.Runs {
		fmt.Fprintf(&b, "  run %d: attempts=%d accepted=%d samples=%d", run.Index, len(run.Attempts), run.Accepted(), len(run.Samples))
		if run.Failed() {
			fmt.Fprintf(&b, " failure=%q", run.Failure)
		}
		b.WriteString("\n")
	}

	if rep.HasPooled {
		s := rep.Pooled
		fmt.Fprintf(&b, "pooled: %d samples\n", s.Count)
		fmt.Fprintf(&b, "latency_ms: min %s mean %s median %s max %s p95 %s p99 %s stddev %s\n",
			ms(float64(s.Min)), ms(s.Mean), ms(s.Median), ms(float64(s.Max)),
			ms(float64(s.P95)), ms(float64(s.P99)), ms(s.StdDev))
		frames := report.Frames(time.Duration(s.Mean), result.RefreshHz)
		fmt.Fprintf(&b, "verdict: %s (%.2f frames)\n", report.Verdict(frames), frames)
	} else {
		b.WriteString("pooled: none\n")
	}

	d := rep.Diagnostics
	fmt.Fprintf(&b, "diagnostics: attempts=%d successful=%d no_change=%d implausible=%d timeouts=%d unchanged=%d noise=%d errors=%d\n",
		d.Attempts, d.SuccessfulDetections, d.NoChangeOutcomes, d.ImplausibleSamples,
		d.Timeouts, d.UnchangedPolls, d.InjectorOnlyNoise, d.DetectorErrors)

	codes := make([]string, 0, len(rep.Advisories))
	for _, adv := range rep.Advisories {
		codes = append(codes, string(adv.Code))
	}
	if len(codes) == 0 {
		codes = append(codes, "none")
	}
	fmt.Fprintf(&b, "advisories: %s\n", strings.Join(codes, ", "))
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its digest against
// testdata/golden/{scenario.Name}.golden.
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the digest doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Digest(scenario.Name, result))
	return result, nil
}
