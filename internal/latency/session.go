package latency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Report is the result of a session.
type Report struct {
	Config Config `json:"config"`
	Region Region `json:"region"`

	Runs []*Run `json:"runs"`

	// Pooled is the reduction of every completed run's samples taken
	// together. Valid only when HasPooled is true.
	Pooled    Stats `json:"pooled"`
	HasPooled bool  `json:"has_pooled"`

	Diagnostics DiagnosticCounters `json:"diagnostics"`
	Advisories  []Advisory         `json:"advisories,omitempty"`

	StartedAt  Timestamp `json:"started_at_ns"`
	FinishedAt Timestamp `json:"finished_at_ns"`
}

// Duration returns the wall span of the session on the monotonic clock.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedRuns returns the number of aborted runs.
func (r *Report) FailedRuns() int {
	n := 0
	for _, run := range r.Runs {
		if run.Failed() {
			n++
		}
	}
	return n
}

// Finalize recomputes every run's statistics, the pooled statistics, the
// session counters and the advisories from the recorded attempts.
//
// Returns an error wrapping ErrNoData when no run contributed a sample.
func (r *Report) Finalize() error {
	r.Diagnostics = DiagnosticCounters{}
	for _, run := range r.Runs {
		run.Finalize()
		r.Diagnostics = r.Diagnostics.Add(run.Diagnostics)
	}
	r.Advisories = Classify(r.Diagnostics)

	stats, err := Reduce(Pool(r.Runs))
	r.Pooled, r.HasPooled = stats, err == nil
	if err != nil {
		return &Error{
			Code:    CodeNoData,
			Message: fmt.Sprintf("no accepted samples across %d run(s)", len(r.Runs)),
		}
	}
	return nil
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock sets the clock. Default: a new MonotonicClock. Collaborators must
// read the same clock.
func WithClock(c Clock) SessionOption {
	return func(s *Session) {
		s.clock = c
	}
}

// WithObserver registers the tick/attempt observer.
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithRegion sets the capture region passed to the source.
func WithRegion(r Region) SessionOption {
	return func(s *Session) {
		s.region = r
	}
}

// Session runs Config.Runs runs back to back and pools their samples.
type Session struct {
	cfg      Config
	source   FrameFingerprintSource
	injector StimulusInjector
	clock    Clock
	observer Observer
	region   Region
}

// NewSession validates cfg and wires the collaborators.
func NewSession(cfg Config, source FrameFingerprintSource, injector StimulusInjector, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if source == nil || injector == nil {
		return nil, errors.New("invalid session: source and injector are required")
	}

	s := &Session{
		cfg:      cfg,
		source:   source,
		injector: injector,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewMonotonicClock()
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	return s, nil
}

// Run executes the session.
//
// Runs are sequential; a run aborted by a fatal collaborator error is
// recorded and the next run still starts. The report is always returned,
// also alongside an error: ctx.Err() when cancelled, or a CodeNoData *Error
// when no run produced a sample.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		Config:    s.cfg,
		Region:    s.region,
		Runs:      make([]*Run, 0, s.cfg.Runs),
		StartedAt: s.clock.Now(),
	}

	ctrl := &runController{
		cfg:      s.cfg,
		clock:    s.clock,
		injector: s.injector,
		source:   s.source,
		detector: NewChangeDetector(s.source, s.clock, s.region, s.cfg.PollInterval, s.observer),
		region:   s.region,
		observer: s.observer,
	}

	slog.Info("session starting", "runs", s.cfg.Runs, "samples", s.cfg.Samples, "region", s.region.String())

	finish := func(err error) (*Report, error) {
		rep.FinishedAt = s.clock.Now()
		noData := rep.Finalize()
		for _, adv := range rep.Advisories {
			slog.Warn("advisory", "code", adv.Code, "message", adv.Message, "rate", adv.Rate)
		}
		if err != nil {
			return rep, err
		}
		return rep, noData
	}

	if err := s.wait(ctx, 0, s.cfg.StartDelay); err != nil {
		return finish(err)
	}

	var (
		baseline    Fingerprint
		hasBaseline bool
	)
	for i := 1; i <= s.cfg.Runs; i++ {
		run, next, err := ctrl.execute(ctx, i, baseline, hasBaseline)
		rep.Runs = append(rep.Runs, run)
		if err != nil {
			return finish(err)
		}
		baseline, hasBaseline = next, true

		if i < s.cfg.Runs {
			if err := s.wait(ctx, i, s.cfg.RunPause); err != nil {
				return finish(err)
			}
		}
	}

	rep, err := finish(nil)
	if err == nil {
		slog.Info("session finished",
			"runs", len(rep.Runs),
			"failed_runs", rep.FailedRuns(),
			"samples", rep.Pooled.Count,
			"duration", rep.Duration(),
		)
	}
	return rep, err
}

// wait sleeps d in poll-interval steps, yielding to the observer each step.
func (s *Session) wait(ctx context.Context, run int, d time.Duration) error {
	end := s.clock.Now().Add(d)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := s.clock.Now()
		if now >= end {
			return nil
		}
		s.observer.OnTick(Tick{Run: run, Phase: PhasePause, At: now})
		s.clock.Sleep(min(s.cfg.PollInterval, end.Sub(now)))
	}
}
