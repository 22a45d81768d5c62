package latency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Defaults match the original measurement tool.
const (
	DefaultSamples      = 210
	DefaultWarmup       = 10
	DefaultInterval     = 50 * time.Millisecond
	DefaultTimeout      = 1000 * time.Millisecond
	DefaultPollInterval = time.Millisecond
	DefaultRuns         = 1
	DefaultRunPause     = 2 * time.Second
	DefaultStartDelay   = 3 * time.Second
)

// Config is the configuration surface of the measurement loop.
type Config struct {
	// Samples is the number of attempts per run.
	Samples int `json:"samples"`

	// Warmup is the number of leading attempts excluded from statistics.
	// They still count toward Samples.
	Warmup int `json:"warmup"`

	// Interval is the minimum gap between the end of one detection phase and
	// the next dispatch.
	Interval time.Duration `json:"interval_ns"`

	// Timeout bounds one detection phase. The attempt budget is
	// Timeout/PollInterval ticks.
	Timeout time.Duration `json:"timeout_ns"`

	// PollInterval is the cooperative sleep after every poll tick.
	PollInterval time.Duration `json:"poll_interval_ns"`

	// Runs is the number of runs in a session.
	Runs int `json:"runs"`

	// RunPause separates consecutive runs. No pause follows the last run.
	RunPause time.Duration `json:"run_pause_ns"`

	// StartDelay is waited once before the first run.
	StartDelay time.Duration `json:"start_delay_ns"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Samples:      DefaultSamples,
		Warmup:       DefaultWarmup,
		Interval:     DefaultInterval,
		Timeout:      DefaultTimeout,
		PollInterval: DefaultPollInterval,
		Runs:         DefaultRuns,
		RunPause:     DefaultRunPause,
		StartDelay:   DefaultStartDelay,
	}
}

// Budget returns the per-attempt tick budget, at least 1.
func (c Config) Budget() int {
	poll := c.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return max(int(c.Timeout/poll), 1)
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Samples <= 0:
		return fmt.Errorf("samples must be positive, got %d", c.Samples)
	case c.Warmup < 0:
		return fmt.Errorf("warmup must not be negative, got %d", c.Warmup)
	case c.Warmup >= c.Samples:
		return fmt.Errorf("warmup (%d) must be less than samples (%d)", c.Warmup, c.Samples)
	case c.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	case c.Runs <= 0:
		return fmt.Errorf("runs must be positive, got %d", c.Runs)
	case c.RunPause < 0:
		return fmt.Errorf("run pause must not be negative, got %s", c.RunPause)
	case c.StartDelay < 0:
		return fmt.Errorf("start delay must not be negative, got %s", c.StartDelay)
	}
	return nil
}

// AttemptRecord is the correlated outcome of one stimulus.
type AttemptRecord struct {
	Run      int      `json:"run"`
	Index    int      `json:"index"`
	Target   int      `json:"target"`
	Polarity Polarity `json:"polarity"`
	Warmup   bool     `json:"warmup"`

	DispatchedAt Timestamp `json:"dispatched_at_ns"`
	DetectedAt   Timestamp `json:"detected_at_ns,omitempty"`

	Outcome OutcomeKind   `json:"outcome"`
	Verdict Verdict       `json:"verdict"`
	Latency time.Duration `json:"latency_ns"`

	Ticks int       `json:"ticks"`
	Tally TickTally `json:"tally"`

	// DispatchFailed is set when the injector returned a non-fatal error;
	// no detection phase ran.
	DispatchFailed bool `json:"dispatch_failed,omitempty"`

	// Error describes a transient source or dispatch failure.
	Error string `json:"error,omitempty"`
}

// Counted reports whether the attempt's sample lands in the statistical set.
func (a AttemptRecord) Counted() bool {
	return a.Verdict == VerdictAccepted && !a.Warmup
}

// Run is one fixed-size sequence of attempts.
type Run struct {
	Index  int `json:"index"`
	Target int `json:"target"`
	Warmup int `json:"warmup"`

	Attempts []AttemptRecord `json:"attempts"`

	// Samples holds accepted latencies of non-warm-up attempts in order.
	Samples []time.Duration `json:"samples_ns"`

	// Stats is valid only when HasStats is true. A failed run has no stats,
	// matching its exclusion from the pooled reduction.
	Stats    Stats `json:"stats"`
	HasStats bool  `json:"has_stats"`

	Diagnostics DiagnosticCounters `json:"diagnostics"`

	StartedAt  Timestamp `json:"started_at_ns"`
	FinishedAt Timestamp `json:"finished_at_ns"`

	// Failure is set when a fatal collaborator error aborted the run.
	Failure string `json:"failure,omitempty"`
}

// Failed reports whether the run was aborted.
func (r *Run) Failed() bool {
	return r.Failure != ""
}

// Accepted returns the number of accepted attempts, warm-up included.
func (r *Run) Accepted() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Verdict == VerdictAccepted {
			n++
		}
	}
	return n
}

// Finalize recomputes Samples, Stats and Diagnostics from Attempts.
func (r *Run) Finalize() {
	r.Samples = r.Samples[:0]
	r.Diagnostics = DiagnosticCounters{}
	for _, a := range r.Attempts {
		r.Diagnostics = r.Diagnostics.Tally(a)
		if a.Counted() {
			r.Samples = append(r.Samples, a.Latency)
		}
	}
	if r.Failed() {
		r.Stats, r.HasStats = Stats{}, false
		return
	}
	stats, err := Reduce(r.Samples)
	r.Stats, r.HasStats = stats, err == nil
}

// runController drives one run: baseline capture, then paced
// dispatch/poll/correlate cycles until the sample target is reached.
type runController struct {
	cfg      Config
	clock    Clock
	injector StimulusInjector
	source   FrameFingerprintSource
	detector *ChangeDetector
	region   Region
	observer Observer
}

// execute runs one run. baseline carries the last observed fingerprint from
// the previous run (hasBaseline false for the first run). It returns the run,
// the baseline to carry into the next run, and a non-nil error only for
// context cancellation. Fatal collaborator errors are recorded on the run,
// after the partial record of the attempt they interrupted.
func (c *runController) execute(ctx context.Context, index int, baseline Fingerprint, hasBaseline bool) (*Run, Fingerprint, error) {
	run := &Run{
		Index:     index,
		Target:    c.cfg.Samples,
		Warmup:    c.cfg.Warmup,
		Attempts:  make([]AttemptRecord, 0, c.cfg.Samples),
		StartedAt: c.clock.Now(),
	}
	slog.Info("run starting", "run", index, "samples", c.cfg.Samples, "warmup", c.cfg.Warmup)

	baseline, err := c.captureBaseline(ctx, index, baseline, hasBaseline)
	if err != nil {
		return c.close(run, err), baseline, cancelled(err)
	}

	budget := c.cfg.Budget()
	nextDispatch := c.clock.Now().Add(c.cfg.Interval)

	for attempt := 1; attempt <= c.cfg.Samples; attempt++ {
		if err := c.pace(ctx, index, attempt, nextDispatch); err != nil {
			return c.close(run, err), baseline, err
		}

		rec, next, err := c.attempt(ctx, index, attempt, baseline, budget)
		if err != nil {
			if cancelled(err) == nil {
				c.record(run, rec)
			}
			return c.close(run, err), baseline, cancelled(err)
		}
		baseline = next
		c.record(run, rec)

		nextDispatch = c.clock.Now().Add(c.cfg.Interval)
	}

	return c.close(run, nil), baseline, nil
}

func (c *runController) record(run *Run, rec AttemptRecord) {
	run.Attempts = append(run.Attempts, rec)
	logAttempt(rec)
	c.observer.OnAttempt(rec)
}

// attempt performs one Dispatch -> Poll -> Correlate cycle. On a fatal
// collaborator error the returned record holds what the attempt got through
// before it failed.
func (c *runController) attempt(ctx context.Context, run, attempt int, baseline Fingerprint, budget int) (AttemptRecord, Fingerprint, error) {
	polarity := PolarityFor(attempt)
	rec := AttemptRecord{
		Run:      run,
		Index:    attempt,
		Target:   c.cfg.Samples,
		Polarity: polarity,
		Warmup:   attempt <= c.cfg.Warmup,
	}

	c.observer.OnTick(Tick{Run: run, Attempt: attempt, Phase: PhaseDispatch, At: c.clock.Now()})
	dispatchedAt, err := c.injector.Fire(ctx, polarity)
	if err != nil {
		if ctx.Err() != nil {
			return rec, baseline, ctx.Err()
		}
		rec.Outcome = OutcomeTransientError
		rec.Verdict = VerdictNoChange
		rec.DispatchFailed = true
		rec.Error = err.Error()
		if errors.Is(err, ErrCollaboratorFatal) {
			return rec, baseline, newFatalError(run, attempt, "stimulus injector failed", err)
		}
		return rec, baseline, nil
	}
	rec.DispatchedAt = dispatchedAt

	out, err := c.detector.Detect(ctx, run, attempt, baseline, budget)
	if err != nil {
		if ctx.Err() != nil {
			return rec, baseline, ctx.Err()
		}
		rec.Outcome = OutcomeTransientError
		rec.Verdict = VerdictNoChange
		rec.Ticks = out.Ticks
		rec.Tally = out.Tally
		rec.Error = err.Error()
		return rec, baseline, newFatalError(run, attempt, "fingerprint source failed", err)
	}

	c.observer.OnTick(Tick{Run: run, Attempt: attempt, Phase: PhaseCorrelate, At: c.clock.Now()})
	res, next := Correlate(dispatchedAt, out, baseline)

	rec.Outcome = out.Kind
	rec.Verdict = res.Verdict
	rec.Latency = res.Latency
	rec.Ticks = out.Ticks
	rec.Tally = out.Tally
	if out.Kind == OutcomeDetected {
		rec.DetectedAt = out.At
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return rec, next, nil
}

// captureBaseline reads the region before the first stimulus. The read is
// outside every attempt budget but bounded by one budget of its own.
//
// A carried baseline is kept when the source has no new frame: nothing was
// presented since it was observed.
func (c *runController) captureBaseline(ctx context.Context, run int, carried Fingerprint, hasCarried bool) (Fingerprint, error) {
	budget := c.cfg.Budget()
	for tick := 0; tick < budget; tick++ {
		if err := ctx.Err(); err != nil {
			return carried, err
		}
		c.observer.OnTick(Tick{Run: run, Phase: PhaseBaselineCapture, At: c.clock.Now()})

		fp, _, err := c.source.Sample(ctx, c.region)
		switch {
		case err == nil:
			slog.Debug("baseline captured", "run", run, "fingerprint", fp)
			return fp, nil
		case errors.Is(err, ErrNoNewFrame):
			if hasCarried {
				slog.Debug("baseline carried over", "run", run, "fingerprint", carried)
				return carried, nil
			}
		case ctx.Err() != nil:
			return carried, ctx.Err()
		case errors.Is(err, ErrCollaboratorFatal):
			return carried, newFatalError(run, 0, "baseline capture failed", err)
		default:
			slog.Debug("baseline capture tick failed", "run", run, "error", err)
		}
		c.clock.Sleep(c.cfg.PollInterval)
	}

	if hasCarried {
		slog.Warn("no frame for baseline, keeping carried fingerprint", "run", run, "fingerprint", carried)
	} else {
		slog.Warn("no frame for baseline, using zero fingerprint", "run", run)
	}
	return carried, nil
}

// pace waits until next, yielding to the observer every poll interval.
func (c *runController) pace(ctx context.Context, run, attempt int, next Timestamp) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := c.clock.Now()
		if now >= next {
			return nil
		}
		c.observer.OnTick(Tick{Run: run, Attempt: attempt, Phase: PhasePacing, At: now})
		c.clock.Sleep(min(c.cfg.PollInterval, next.Sub(now)))
	}
}

// close finalizes the run, recording err as its failure when set.
func (c *runController) close(run *Run, err error) *Run {
	run.FinishedAt = c.clock.Now()
	if err != nil {
		run.Failure = err.Error()
	}
	run.Finalize()

	if run.Failed() {
		slog.Error("run failed", "run", run.Index, "attempts", len(run.Attempts), "error", err)
	} else {
		slog.Info("run finalized",
			"run", run.Index,
			"attempts", len(run.Attempts),
			"accepted", run.Accepted(),
			"samples", len(run.Samples),
		)
	}
	c.observer.OnTick(Tick{Run: run.Index, Phase: PhaseFinalized, At: run.FinishedAt})
	c.observer.OnRunFinalized(run)
	return run
}

// cancelled passes through context errors and swallows everything else:
// fatal collaborator errors end the run, not the session.
func cancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func logAttempt(rec AttemptRecord) {
	slog.Debug("attempt correlated",
		"run", rec.Run,
		"attempt", rec.Index,
		"polarity", rec.Polarity.String(),
		"outcome", rec.Outcome.String(),
		"verdict", rec.Verdict.String(),
		"latency", rec.Latency,
		"ticks", rec.Ticks,
		"warmup", rec.Warmup,
	)
}
