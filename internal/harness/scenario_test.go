package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/fixed_latency.yaml")
	require.NoError(t, err)

	assert.Equal(t, "fixed_latency", s.Name)
	assert.Equal(t, "bench", s.Label)
	assert.Equal(t, 1000, s.Display.RefreshHz)
	assert.Equal(t, "12ms", s.Display.Latency)
	require.NotNil(t, s.Config.Samples)
	assert.Equal(t, 12, *s.Config.Samples)
	require.NotNil(t, s.Config.Interval)
	assert.Equal(t, "10ms", *s.Config.Interval)
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertPooledCount, s.Assertions[0].Type)
	assert.Equal(t, 10, s.Assertions[0].Count)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"testdata/invalid/typo.yaml", "field assertion not found"},
		{"testdata/invalid/bad_duration.yaml", "display.latency"},
		{"testdata/invalid/missing.yaml", "failed to read scenario file"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := LoadScenario(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nassertions: [{type: no_data}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nassertions: [{type: no_data}]\n",
			want: "description is required",
		},
		{
			name: "no assertions",
			yaml: "name: n\ndescription: d\n",
			want: "assertions list is required",
		},
		{
			name: "unknown assertion type",
			yaml: "name: n\ndescription: d\nassertions: [{type: trace_count}]\n",
			want: `unknown assertion type "trace_count"`,
		},
		{
			name: "unknown counter",
			yaml: "name: n\ndescription: d\nassertions: [{type: counter, counter: frames, min: 1}]\n",
			want: `unknown counter "frames"`,
		},
		{
			name: "unbounded mean",
			yaml: "name: n\ndescription: d\nassertions: [{type: mean_between}]\n",
			want: "min or max is required",
		},
		{
			name: "inverted bounds",
			yaml: "name: n\ndescription: d\nassertions: [{type: mean_between, min: 5, max: 1}]\n",
			want: "exceeds max",
		},
		{
			name: "verdict without text",
			yaml: "name: n\ndescription: d\nassertions: [{type: verdict}]\n",
			want: "verdict is required",
		},
		{
			name: "advisory without code",
			yaml: "name: n\ndescription: d\nassertions: [{type: advisory}]\n",
			want: "code is required",
		},
		{
			name: "negative refresh",
			yaml: "name: n\ndescription: d\ndisplay: {refresh_hz: -1}\nassertions: [{type: no_data}]\n",
			want: "must be non-negative",
		},
		{
			name: "bad config duration",
			yaml: "name: n\ndescription: d\nconfig: {interval: soon}\nassertions: [{type: no_data}]\n",
			want: "config:",
		},
		{
			name: "unknown config field",
			yaml: "name: n\ndescription: d\nconfig: {sample: 3}\nassertions: [{type: no_data}]\n",
			want: "field sample not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"testdata/scenarios/fixed_latency.yaml",
		"testdata/scenarios/implausible_latency.yaml",
		"testdata/scenarios/seeded_jitter.yaml",
		"testdata/scenarios/two_runs.yaml",
	}, files)

	files, err = FindScenarios("testdata/scenarios", "*_latency")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = FindScenarios("testdata/scenarios", "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}
