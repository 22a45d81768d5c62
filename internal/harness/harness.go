package harness

import (
	"context"
	"fmt"

	"github.com/roach88/lagprobe/internal/config"
	"github.com/roach88/lagprobe/internal/fingerprint"
	"github.com/roach88/lagprobe/internal/latency"
	"github.com/roach88/lagprobe/internal/sim"
	"github.com/roach88/lagprobe/internal/store"
	"github.com/roach88/lagprobe/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh fake clock and a fresh in-memory database.
// Execution flow:
//  1. Resolve the configuration and build the simulated display
//  2. Run the measurement session
//  3. Store the report and read it back
//  4. Evaluate assertions against the measured report
//
// A session with no data is a valid outcome; any other session error is
// returned.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg, err := config.Default().Apply(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	lat, jitter, wait, err := scenario.Display.durations()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	clock := testutil.NewFakeClock(0)
	display := sim.NewDisplay(clock, sim.Options{
		Width:     scenario.Display.Width,
		Height:    scenario.Display.Height,
		RefreshHz: scenario.Display.RefreshHz,
		Latency:   lat,
		Jitter:    jitter,
		Wait:      wait,
		Seed:      scenario.Display.Seed,
		Magnitude: cfg.Magnitude,
	})

	refreshHz := cfg.RefreshHz
	if refreshHz == 0 {
		refreshHz = fingerprint.HighestRefreshRate(display.Modes())
	}
	w, h := display.Size()

	session, err := latency.NewSession(cfg.Session(), display, display,
		latency.WithClock(clock),
		latency.WithRegion(fingerprint.ResolveRegion(w, h, cfg.Region)),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	rep, err := session.Run(ctx)
	if err != nil && !latency.IsNoData(err) {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Report = rep
	result.RefreshHz = refreshHz
	result.SessionID = testutil.NewFixedIDGenerator("scenario-" + scenario.Name).Generate()

	if err := checkStored(ctx, result, scenario.Label); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkStored saves the report to an in-memory store, loads it back and
// records an error when the recomputed aggregates differ from the measured
// ones.
func checkStored(ctx context.Context, result *Result, label string) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SaveReport(ctx, result.SessionID, label, result.RefreshHz, result.Report); err != nil {
		return err
	}
	stored, err := st.LoadReport(ctx, result.SessionID)
	if err != nil {
		return err
	}

	rep, got := result.Report, stored.Report
	if got.HasPooled != rep.HasPooled || got.Pooled != rep.Pooled {
		result.AddError(fmt.Sprintf("stored pooled stats %+v differ from measured %+v", got.Pooled, rep.Pooled))
	}
	if got.Diagnostics != rep.Diagnostics {
		result.AddError(fmt.Sprintf("stored diagnostics %+v differ from measured %+v", got.Diagnostics, rep.Diagnostics))
	}
	return nil
}
