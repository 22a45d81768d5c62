package latency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OutcomeKind is the result of one detection phase.
type OutcomeKind int

const (
	// OutcomeDetected means the fingerprint diverged from the baseline.
	OutcomeDetected OutcomeKind = iota
	// OutcomeNoChange means the attempt budget ran out without divergence.
	OutcomeNoChange
	// OutcomeTransientError means a non-transient source error cut the
	// attempt short. The run continues with the next attempt.
	OutcomeTransientError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDetected:
		return "detected"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// ParseOutcomeKind is the inverse of OutcomeKind.String.
func ParseOutcomeKind(s string) (OutcomeKind, bool) {
	for _, k := range []OutcomeKind{OutcomeDetected, OutcomeNoChange, OutcomeTransientError} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(b []byte) error {
	parsed, ok := ParseOutcomeKind(string(b))
	if !ok {
		return fmt.Errorf("unknown outcome %q", b)
	}
	*k = parsed
	return nil
}

// TickTally counts how the non-detecting ticks of one detection phase went.
type TickTally struct {
	Unchanged int `json:"unchanged"`
	Timeouts  int `json:"timeouts"`
	Errors    int `json:"errors"`
}

// Total returns the number of tallied ticks.
func (t TickTally) Total() int {
	return t.Unchanged + t.Timeouts + t.Errors
}

// DetectOutcome is what ChangeDetector.Detect observed.
type DetectOutcome struct {
	Kind OutcomeKind

	// Fingerprint and At are set only for OutcomeDetected.
	Fingerprint Fingerprint
	At          Timestamp

	// Ticks is the number of polls performed, including the detecting one.
	Ticks int

	// Tally classifies every tick except the detecting one.
	Tally TickTally

	// Err is the source error behind OutcomeTransientError.
	Err error
}

// ChangeDetector polls a FrameFingerprintSource until the region's
// fingerprint diverges from a baseline.
type ChangeDetector struct {
	source       FrameFingerprintSource
	clock        Clock
	region       Region
	pollInterval time.Duration
	observer     Observer
}

// NewChangeDetector creates a detector that sleeps pollInterval between
// ticks. A non-positive pollInterval falls back to DefaultPollInterval.
func NewChangeDetector(source FrameFingerprintSource, clock Clock, region Region, pollInterval time.Duration, observer Observer) *ChangeDetector {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &ChangeDetector{
		source:       source,
		clock:        clock,
		region:       region,
		pollInterval: pollInterval,
		observer:     observer,
	}
}

// Detect polls at most budget ticks for a fingerprint different from
// baseline.
//
// A source ErrNoNewFrame costs a tick and polling continues. Any other source
// error ends the attempt with OutcomeTransientError, unless it wraps
// ErrCollaboratorFatal: that, and context cancellation, come back as the
// returned error and end the run. The outcome returned with a fatal error
// still carries the ticks polled so far.
//
// Every tick is reported to the observer, the detecting one included.
//
// run and attempt only label the Tick callbacks.
func (d *ChangeDetector) Detect(ctx context.Context, run, attempt int, baseline Fingerprint, budget int) (DetectOutcome, error) {
	var out DetectOutcome

	for out.Ticks < budget {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		fp, at, err := d.source.Sample(ctx, d.region)
		out.Ticks++
		d.observer.OnTick(Tick{Run: run, Attempt: attempt, Phase: PhasePoll, At: d.clock.Now()})

		switch {
		case err == nil && fp != baseline:
			out.Kind = OutcomeDetected
			out.Fingerprint = fp
			out.At = at
			return out, nil

		case err == nil:
			out.Tally.Unchanged++

		case errors.Is(err, ErrNoNewFrame):
			out.Tally.Timeouts++

		case errors.Is(err, ErrCollaboratorFatal):
			out.Tally.Errors++
			return out, err

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return out, err

		default:
			out.Tally.Errors++
			out.Kind = OutcomeTransientError
			out.Err = err
			return out, nil
		}

		d.clock.Sleep(d.pollInterval)
	}

	out.Kind = OutcomeNoChange
	return out, nil
}
