package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lagprobe/internal/testutil"
)

// simArgs make every stimulus visible after exactly 12ms.
var simArgs = []string{
	"--start-delay", "0s",
	"--interval", "10ms",
	"--sim-latency", "12ms",
	"--sim-jitter", "0s",
	"--sim-refresh-hz", "1000",
	"--refresh-hz", "100",
}

func executeMeasure(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	opts := &MeasureOptions{
		RootOptions: &RootOptions{Format: format},
		IDGenerator: testutil.NewFixedIDGenerator("session-1"),
		Clock:       testutil.NewFakeClock(0),
	}
	buf := &bytes.Buffer{}
	cmd := newMeasureCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(append([]string{}, simArgs...), args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestMeasure_SimulatedSession(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lagprobe.db")
	metricsPath := filepath.Join(dir, "lagprobe.prom")

	out, err := executeMeasure(t, "text",
		"--samples", "6", "--warmup", "1",
		"--db", dbPath, "--label", "desk",
		"--metrics-file", metricsPath,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "[1/6] Latency: 12.00 ms (1.20 frames) (warm-up)\n")
	assert.Contains(t, out, "[6/6] Latency: 12.00 ms (1.20 frames)\n")
	assert.Contains(t, out, "Session: session-1 (desk)")
	assert.Contains(t, out, "    Samples       : 5\n")
	assert.Contains(t, out, "    Avg           : 12.00 ms (1.20 frames)\n")
	assert.Contains(t, out, "VERY GOOD - Under 2 frames lag")

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `lagprobe_attempts_total{verdict="accepted"} 6`)

	// The archived session renders the same statistics.
	buf := &bytes.Buffer{}
	cmd := NewReportCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "session-1"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Session: session-1 (desk)")
	assert.Contains(t, buf.String(), "    Avg           : 12.00 ms (1.20 frames)\n")

	buf.Reset()
	cmd = NewSessionsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "session-1")
	assert.Contains(t, buf.String(), "[desk]")
	assert.Contains(t, buf.String(), "1 run(s), 5 samples, avg 12.00 ms @ 100Hz")
}

func TestMeasure_JSON(t *testing.T) {
	out, err := executeMeasure(t, "json", "--samples", "3", "--warmup", "0")
	require.NoError(t, err)

	assert.NotContains(t, out, "Latency:", "no progress lines in JSON mode")
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"verdict": "VERY GOOD - Under 2 frames lag"`)
}

func TestMeasure_Language(t *testing.T) {
	out, err := executeMeasure(t, "text", "--samples", "3", "--warmup", "0", "--language", "de")
	require.NoError(t, err)
	assert.Contains(t, out, "[3/3] Latency: 12,00 ms (1,20 frames)\n")

	_, err = executeMeasure(t, "text", "--samples", "3", "--language", "??")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMeasure_NoAcceptedSamples(t *testing.T) {
	// Every change lands after the plausibility bound.
	out, err := executeMeasure(t, "text", "--samples", "2", "--warmup", "0", "--sim-latency", "600ms")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no valid measurements collected")
	assert.Contains(t, out, "[1/2] Ignored change after 600.00 ms")
	assert.Contains(t, out, "[ERROR] No valid measurements collected")
}

func TestMeasure_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"warmup not below samples", []string{"--samples", "5", "--warmup", "5"}, "failed to load configuration"},
		{"bad region", []string{"--region", "1,2,3"}, "invalid flags"},
		{"unknown backend", []string{"--backend", "dxgi"}, "unknown backend"},
		{"bad resolution", []string{"--sim-resolution", "wide"}, "invalid flags"},
		{"missing profile", []string{"--config", "does-not-exist.yaml"}, "failed to load configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeMeasure(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMeasure_ConfigProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("samples: 4\nwarmup: 2\n"), 0644))

	out, err := executeMeasure(t, "text", "--config", path, "--warmup", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "[4/4]")
	assert.Contains(t, out, "    Samples       : 3\n", "flag beats profile")
}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("10, 20,300,200")
	require.NoError(t, err)
	assert.Equal(t, 10, r.X)
	assert.Equal(t, 200, r.H)

	_, err = parseRegion("a,b,c,d")
	assert.Error(t, err)
}

func TestParseResolution(t *testing.T) {
	w, h, err := parseResolution("1920X1080")
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	_, _, err = parseResolution("0x10")
	assert.Error(t, err)
}
