package harness

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lagprobe/internal/latency"
)

func TestRun_Scenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)

			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Golden(t *testing.T) {
	for _, name := range []string{"fixed_latency", "two_runs"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/seeded_jitter.yaml")
	require.NoError(t, err)

	a, err := Run(context.Background(), s)
	require.NoError(t, err)
	b, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, a.Report.Runs[0].Samples, b.Report.Runs[0].Samples)
	assert.Equal(t, Digest(s.Name, a), Digest(s.Name, b))
	assert.Equal(t, "scenario-seeded_jitter", a.SessionID)
}

func TestRun_FailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
description: expectations that a 12 ms display cannot meet
display:
  refresh_hz: 1000
  latency: 12ms
config:
  samples: 6
  warmup: 1
  interval: 10ms
  timeout: 100ms
  poll_interval: 1ms
  start_delay: 0s
  refresh_hz: 100
assertions:
  - type: pooled_count
    count: 99
  - type: mean_between
    max: 5
  - type: no_data
  - type: advisory
    code: EXCLUSIVE_CAPTURE
  - type: verdict
    verdict: EXCELLENT
  - type: failed_runs
    count: 1
  - type: counter
    counter: attempts
    max: 3
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "99 pooled samples")
	assert.Contains(t, result.Errors[1], "12.000 ms")
	assert.Contains(t, result.Errors[2], "no pooled samples")
	assert.Contains(t, result.Errors[3], "[SYSTEM_LOAD]")
	assert.Contains(t, result.Errors[4], "VERY GOOD")
	assert.Contains(t, result.Errors[5], "1 failed runs")
	assert.Contains(t, result.Errors[6], "attempts in [-inf, 3]")
}

func TestRun_NoDataIsAResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/implausible_latency.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Report.HasPooled)
	for _, a := range result.Report.Runs[0].Attempts {
		assert.Equal(t, latency.VerdictImplausible, a.Verdict)
		assert.Equal(t, 600*time.Millisecond, a.Latency)
	}
	assert.Contains(t, string(Digest(s.Name, result)), "pooled: none\n")
}

func TestRun_CancelledContext(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/fixed_latency.yaml")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
