package latency

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosticCounters_Tally(t *testing.T) {
	var c DiagnosticCounters

	c = c.Tally(AttemptRecord{Verdict: VerdictAccepted, Tally: TickTally{Unchanged: 2, Timeouts: 1}})
	c = c.Tally(AttemptRecord{Verdict: VerdictImplausible})
	c = c.Tally(AttemptRecord{Verdict: VerdictNoChange, Tally: TickTally{Timeouts: 5}})
	c = c.Tally(AttemptRecord{Verdict: VerdictNoChange, DispatchFailed: true})

	assert.Equal(t, DiagnosticCounters{
		Attempts:             4,
		SuccessfulDetections: 2,
		Timeouts:             6,
		UnchangedPolls:       2,
		InjectorOnlyNoise:    1,
		DetectorErrors:       1,
		NoChangeOutcomes:     2,
		ImplausibleSamples:   1,
	}, c)
	assert.Equal(t, 10, c.PollTicks())
}

func TestDiagnosticCounters_Add(t *testing.T) {
	a := DiagnosticCounters{Attempts: 1, Timeouts: 2, NoChangeOutcomes: 1}
	b := DiagnosticCounters{Attempts: 3, Timeouts: 1, SuccessfulDetections: 3}

	assert.Equal(t, DiagnosticCounters{
		Attempts:             4,
		Timeouts:             3,
		NoChangeOutcomes:     1,
		SuccessfulDetections: 3,
	}, a.Add(b))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		c    DiagnosticCounters
		want []AdvisoryCode
	}{
		{
			name: "empty",
			c:    DiagnosticCounters{},
			want: nil,
		},
		{
			name: "below thresholds",
			c:    DiagnosticCounters{Attempts: 100, SuccessfulDetections: 95, NoChangeOutcomes: 5, UnchangedPolls: 2, Timeouts: 1, InjectorOnlyNoise: 7},
			want: nil,
		},
		{
			name: "exactly at thresholds is not flagged",
			c:    DiagnosticCounters{Attempts: 10, NoChangeOutcomes: 1, SuccessfulDetections: 9, UnchangedPolls: 3, Timeouts: 2, InjectorOnlyNoise: 5},
			want: nil,
		},
		{
			name: "no-change outcomes over 10 percent",
			c:    DiagnosticCounters{Attempts: 10, NoChangeOutcomes: 2, SuccessfulDetections: 8},
			want: []AdvisoryCode{AdvisoryExclusiveCapture},
		},
		{
			name: "unchanged polls over 30 percent",
			c:    DiagnosticCounters{Attempts: 10, SuccessfulDetections: 10, UnchangedPolls: 4, InjectorOnlyNoise: 6},
			want: []AdvisoryCode{AdvisoryRegionInsensitive},
		},
		{
			name: "timeouts over 20 percent",
			c:    DiagnosticCounters{Attempts: 10, SuccessfulDetections: 10, Timeouts: 3, InjectorOnlyNoise: 7},
			want: []AdvisoryCode{AdvisorySystemLoad},
		},
		{
			name: "everything",
			c:    DiagnosticCounters{Attempts: 4, NoChangeOutcomes: 4, UnchangedPolls: 5, Timeouts: 5},
			want: []AdvisoryCode{AdvisoryExclusiveCapture, AdvisoryRegionInsensitive, AdvisorySystemLoad},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []AdvisoryCode
			for _, a := range Classify(tt.c) {
				got = append(got, a.Code)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvisory_String(t *testing.T) {
	a := Advisory{Message: "system under load / driver issue", Rate: 0.25, Threshold: 0.20}
	assert.Equal(t, "system under load / driver issue (25.0% > 20%)", a.String())
}
