package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_EvenCount(t *testing.T) {
	stats, err := Reduce([]time.Duration{10, 20, 30, 40})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, time.Duration(10), stats.Min)
	assert.Equal(t, time.Duration(40), stats.Max)
	assert.Equal(t, 25.0, stats.Mean)
	assert.Equal(t, 25.0, stats.Median)
	assert.Equal(t, time.Duration(40), stats.P95) // floor(4*0.95) = 3
	assert.Equal(t, time.Duration(40), stats.P99)
	assert.InDelta(t, 11.1803, stats.StdDev, 1e-4) // sqrt(500/4), population
}

func TestReduce_OddCountUnsortedInput(t *testing.T) {
	input := []time.Duration{30, 10, 20}

	stats, err := Reduce(input)
	require.NoError(t, err)

	assert.Equal(t, 20.0, stats.Median)
	assert.Equal(t, time.Duration(10), stats.Min)
	assert.Equal(t, time.Duration(30), stats.Max)
	assert.Equal(t, []time.Duration{30, 10, 20}, input, "input must not be reordered")
}

func TestReduce_SingleSample(t *testing.T) {
	stats, err := Reduce([]time.Duration{7})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 7.0, stats.Median)
	assert.Equal(t, time.Duration(7), stats.P95)
	assert.Equal(t, time.Duration(7), stats.P99)
	assert.Equal(t, 0.0, stats.StdDev)
}

func TestReduce_EmptyIsNoData(t *testing.T) {
	_, err := Reduce(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.True(t, IsNoData(err))
}

func TestReduce_Idempotent(t *testing.T) {
	samples := []time.Duration{12, 3, 99, 41, 41, 7}

	first, err := Reduce(samples)
	require.NoError(t, err)
	second, err := Reduce(samples)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReduce_MedianAveragesMiddlePair(t *testing.T) {
	stats, err := Reduce([]time.Duration{10, 21})
	require.NoError(t, err)
	assert.Equal(t, 15.5, stats.Median)
}

func TestPercentileIndex(t *testing.T) {
	tests := []struct {
		n, pct, want int
	}{
		{1, 95, 0},
		{4, 95, 3},
		{10, 99, 9},
		{20, 95, 19},
		{100, 95, 95},
		{100, 99, 99},
		{200, 95, 190},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentileIndex(tt.n, tt.pct), "n=%d pct=%d", tt.n, tt.pct)
	}
}

func TestPool_IsFreshReductionNotAverage(t *testing.T) {
	runs := []*Run{
		{Index: 1, Samples: []time.Duration{10, 20}},
		{Index: 2, Samples: []time.Duration{30, 40}},
	}

	pooled, err := Reduce(Pool(runs))
	require.NoError(t, err)
	direct, err := Reduce([]time.Duration{10, 20, 30, 40})
	require.NoError(t, err)
	assert.Equal(t, direct, pooled)

	r1, _ := Reduce(runs[0].Samples)
	r2, _ := Reduce(runs[1].Samples)
	assert.NotEqual(t, (r1.P95+r2.P95)/2, pooled.P95)
}

func TestPool_SkipsFailedRuns(t *testing.T) {
	runs := []*Run{
		{Index: 1, Samples: []time.Duration{10}, Failure: "COLLABORATOR_FATAL: gone"},
		{Index: 2, Samples: []time.Duration{30, 40}},
		nil,
	}
	assert.Equal(t, []time.Duration{30, 40}, Pool(runs))
}
