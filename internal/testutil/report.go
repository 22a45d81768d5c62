package testutil

import (
	"time"

	"github.com/roach88/lagprobe/internal/latency"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func acceptedAttempt(run, index int, warmup bool, at, lat time.Duration) latency.AttemptRecord {
	return latency.AttemptRecord{
		Run:          run,
		Index:        index,
		Target:       4,
		Polarity:     latency.PolarityFor(index),
		Warmup:       warmup,
		DispatchedAt: latency.Timestamp(at),
		DetectedAt:   latency.Timestamp(at + lat),
		Outcome:      latency.OutcomeDetected,
		Verdict:      latency.VerdictAccepted,
		Latency:      lat,
		Ticks:        2,
		Tally:        latency.TickTally{Timeouts: 1},
	}
}

// SampleReport returns a finalized two-run report with known figures.
//
// Run 1 has a warm-up, two accepted samples (10ms, 20ms) and a no-change
// attempt. Run 2 has one accepted sample (99ms), excluded from pooling, and
// was aborted by a source failure during its third attempt. The session
// lasts 2600ms.
func SampleReport() *latency.Report {
	cfg := latency.DefaultConfig()
	cfg.Samples, cfg.Warmup, cfg.Runs = 4, 1, 2

	run1 := &latency.Run{
		Index: 1, Target: 4, Warmup: 1,
		StartedAt: 0, FinishedAt: latency.Timestamp(ms(400)),
		Attempts: []latency.AttemptRecord{
			acceptedAttempt(1, 1, true, ms(50), ms(30)),
			acceptedAttempt(1, 2, false, ms(130), ms(10)),
			{
				Run: 1, Index: 3, Target: 4, Polarity: latency.Positive,
				DispatchedAt: latency.Timestamp(ms(190)),
				Outcome:      latency.OutcomeNoChange, Verdict: latency.VerdictNoChange,
				Ticks: 5, Tally: latency.TickTally{Unchanged: 2, Timeouts: 3},
			},
			acceptedAttempt(1, 4, false, ms(300), ms(20)),
		},
	}
	run2 := &latency.Run{
		Index: 2, Target: 4, Warmup: 1,
		StartedAt: latency.Timestamp(ms(2400)), FinishedAt: latency.Timestamp(ms(2600)),
		Failure: "COLLABORATOR_FATAL: source failed (run=2, attempt=3): device lost",
		Attempts: []latency.AttemptRecord{
			acceptedAttempt(2, 1, true, ms(2450), ms(15)),
			acceptedAttempt(2, 2, false, ms(2520), ms(99)),
			{
				Run: 2, Index: 3, Target: 4, Polarity: latency.Positive,
				DispatchedAt: latency.Timestamp(ms(2580)),
				Outcome:      latency.OutcomeTransientError, Verdict: latency.VerdictNoChange,
				Ticks: 2, Tally: latency.TickTally{Unchanged: 1, Errors: 1},
				Error: "device lost",
			},
		},
	}

	rep := &latency.Report{
		Config:     cfg,
		Region:     latency.Region{X: 860, Y: 440, W: 200, H: 200},
		Runs:       []*latency.Run{run1, run2},
		StartedAt:  0,
		FinishedAt: latency.Timestamp(ms(2600)),
	}
	if err := rep.Finalize(); err != nil {
		panic(err)
	}
	return rep
}
