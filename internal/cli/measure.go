package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lagprobe/internal/config"
	"github.com/roach88/lagprobe/internal/fingerprint"
	"github.com/roach88/lagprobe/internal/latency"
	"github.com/roach88/lagprobe/internal/metrics"
	"github.com/roach88/lagprobe/internal/report"
	"github.com/roach88/lagprobe/internal/sim"
	"github.com/roach88/lagprobe/internal/store"
)

// BackendSim is the simulated display backend.
const BackendSim = "sim"

// MeasureOptions holds flags for the measure command.
type MeasureOptions struct {
	*RootOptions
	ConfigPath  string
	Database    string
	Label       string
	MetricsFile string

	Backend       string
	SimLatency    time.Duration
	SimJitter     time.Duration
	SimSeed       int64
	SimRefreshHz  int
	SimResolution string

	// Overrides bound to flags; applied only when the flag was set.
	samples, warmup, runs, dx, refreshHz int
	interval, timeout, pollInterval      time.Duration
	runPause, startDelay                 time.Duration
	region, language                     string

	// IDGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// Clock allows overriding the monotonic clock (for testing). The
	// simulated backend reads the same clock.
	Clock latency.Clock
}

// NewMeasureCommand creates the measure command.
func NewMeasureCommand(rootOpts *RootOptions) *cobra.Command {
	return newMeasureCommand(&MeasureOptions{RootOptions: rootOpts})
}

// newMeasureCommand binds the measure flags to opts.
func newMeasureCommand(opts *MeasureOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Run a latency measurement session",
		Long: `Run a measurement session: dispatch pointer movements, poll the captured
region for the first changed frame, and report latency statistics.

Configuration comes from defaults, then --config (YAML, or CUE for .cue
files), then flags given on the command line.

Examples:
  lagprobe measure --backend sim --samples 60 --start-delay 0s
  lagprobe measure --config profile.yaml --db ./lagprobe.db --label desk
  lagprobe measure --runs 3 --metrics-file /var/lib/node_exporter/lagprobe.prom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeasure(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "configuration profile (.yaml or .cue)")
	f.StringVar(&opts.Database, "db", "", "archive the session in this SQLite database")
	f.StringVar(&opts.Label, "label", "", "label stored with the session")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	f.IntVar(&opts.samples, "samples", latency.DefaultSamples, "attempts per run")
	f.IntVar(&opts.warmup, "warmup", latency.DefaultWarmup, "leading attempts excluded from statistics")
	f.DurationVar(&opts.interval, "interval", latency.DefaultInterval, "gap between a detection and the next dispatch")
	f.DurationVar(&opts.timeout, "timeout", latency.DefaultTimeout, "detection budget per attempt")
	f.DurationVar(&opts.pollInterval, "poll-interval", latency.DefaultPollInterval, "sleep between poll ticks")
	f.IntVar(&opts.runs, "runs", latency.DefaultRuns, "number of runs")
	f.DurationVar(&opts.runPause, "run-pause", latency.DefaultRunPause, "pause between runs")
	f.DurationVar(&opts.startDelay, "start-delay", latency.DefaultStartDelay, "countdown before the first run")
	f.IntVar(&opts.dx, "dx", config.DefaultMagnitude, "pointer travel per stimulus in pixels")
	f.StringVar(&opts.region, "region", "", "capture region x,y,w,h (default: 200x200 centred)")
	f.IntVar(&opts.refreshHz, "refresh-hz", 0, "refresh rate for frame figures (default: detect)")
	f.StringVar(&opts.language, "language", config.DefaultLanguage, "number formatting language (BCP 47)")

	f.StringVar(&opts.Backend, "backend", BackendSim, "capture/injection backend (sim)")
	f.DurationVar(&opts.SimLatency, "sim-latency", sim.DefaultLatency, "simulated mean latency")
	f.DurationVar(&opts.SimJitter, "sim-jitter", sim.DefaultJitter, "simulated latency jitter")
	f.Int64Var(&opts.SimSeed, "sim-seed", 1, "simulated jitter seed")
	f.IntVar(&opts.SimRefreshHz, "sim-refresh-hz", sim.DefaultRefreshHz, "simulated display refresh rate")
	f.StringVar(&opts.SimResolution, "sim-resolution", fmt.Sprintf("%dx%d", sim.DefaultWidth, sim.DefaultHeight), "simulated screen size WxH")

	return cmd
}

// overrides collects the configuration flags that were set explicitly.
func (opts *MeasureOptions) overrides(cmd *cobra.Command) (config.File, error) {
	var f config.File
	changed := cmd.Flags().Changed

	ints := []struct {
		flag string
		dst  **int
		val  int
	}{
		{"samples", &f.Samples, opts.samples},
		{"warmup", &f.Warmup, opts.warmup},
		{"runs", &f.Runs, opts.runs},
		{"dx", &f.Magnitude, opts.dx},
		{"refresh-hz", &f.RefreshHz, opts.refreshHz},
	}
	for _, i := range ints {
		if changed(i.flag) {
			v := i.val
			*i.dst = &v
		}
	}

	durations := []struct {
		flag string
		dst  **string
		val  time.Duration
	}{
		{"interval", &f.Interval, opts.interval},
		{"timeout", &f.Timeout, opts.timeout},
		{"poll-interval", &f.PollInterval, opts.pollInterval},
		{"run-pause", &f.RunPause, opts.runPause},
		{"start-delay", &f.StartDelay, opts.startDelay},
	}
	for _, d := range durations {
		if changed(d.flag) {
			s := d.val.String()
			*d.dst = &s
		}
	}

	if changed("region") {
		r, err := parseRegion(opts.region)
		if err != nil {
			return f, err
		}
		f.Region = &r
	}
	if changed("language") {
		lang := opts.language
		f.Language = &lang
	}
	return f, nil
}

func runMeasure(opts *MeasureOptions, cmd *cobra.Command) error {
	overrides, err := opts.overrides(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	cfg, err := config.Load(opts.ConfigPath, overrides)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if opts.Backend != BackendSim {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q (available: %s)", opts.Backend, BackendSim))
	}
	width, height, err := parseResolution(opts.SimResolution)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = latency.NewMonotonicClock()
	}
	display := sim.NewDisplay(clock, sim.Options{
		Width:     width,
		Height:    height,
		RefreshHz: opts.SimRefreshHz,
		Latency:   opts.SimLatency,
		Jitter:    opts.SimJitter,
		Seed:      opts.SimSeed,
		Magnitude: cfg.Magnitude,
	})

	refreshHz := cfg.RefreshHz
	if refreshHz == 0 {
		refreshHz = fingerprint.HighestRefreshRate(display.Modes())
	}
	region := fingerprint.ResolveRegion(width, height, cfg.Region)
	slog.Info("capture ready", "backend", opts.Backend, "screen", fmt.Sprintf("%dx%d", width, height),
		"refresh_hz", refreshHz, "region", region.String(), "auto_region", cfg.Region.IsZero())
	slog.Info("configuration", "dx", cfg.Magnitude, "interval", cfg.Interval, "samples", cfg.Samples,
		"warmup", cfg.Warmup, "runs", cfg.Runs)

	observers := latency.Observers{}
	if opts.Format == "text" {
		observers = append(observers, report.NewProgress(cmd.OutOrStdout(), cfg.Tag(), refreshHz, cfg.Runs))
	}
	var recorder *metrics.Recorder
	if opts.MetricsFile != "" {
		recorder = metrics.NewRecorder()
		observers = append(observers, recorder)
	}

	session, err := latency.NewSession(cfg.Session(), display, display,
		latency.WithClock(clock),
		latency.WithRegion(region),
		latency.WithObserver(observers),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if cfg.StartDelay > 0 {
		slog.Info("starting test", "in", cfg.StartDelay)
	}
	rep, runErr := session.Run(ctx)
	if runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
		return WrapExitError(ExitFailure, "measurement interrupted", runErr)
	}
	if runErr != nil && !latency.IsNoData(runErr) {
		return WrapExitError(ExitFailure, "measurement failed", runErr)
	}

	view := report.View{
		Label:     opts.Label,
		Report:    rep,
		RefreshHz: refreshHz,
		Language:  cfg.Tag(),
	}

	if opts.Database != "" {
		id, err := saveSession(ctx, opts, refreshHz, rep)
		if err != nil {
			return err
		}
		view.SessionID = id
	}

	if recorder != nil {
		if err := recorder.WriteTextfile(opts.MetricsFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
		slog.Info("metrics written", "path", opts.MetricsFile)
	}

	if err := renderView(cmd.OutOrStdout(), opts.Format, view); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "no valid measurements collected", runErr)
	}
	return nil
}

func saveSession(ctx context.Context, opts *MeasureOptions, refreshHz int, rep *latency.Report) (string, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	gen := opts.IDGenerator
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}
	id := gen.Generate()
	if err := st.SaveReport(ctx, id, opts.Label, refreshHz, rep); err != nil {
		return "", WrapExitError(ExitCommandError, "failed to save session", err)
	}
	slog.Info("session saved", "id", id, "db", opts.Database)
	return id, nil
}

// renderView writes the report as text, or as the JSON summary wrapped in
// the standard response envelope.
func renderView(w io.Writer, format string, view report.View) error {
	if format == "json" {
		out := &OutputFormatter{Format: format, Writer: w}
		return out.Success(report.Summarize(view))
	}
	return report.Render(w, report.FormatText, view)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping measurement", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// parseRegion parses "x,y,w,h".
func parseRegion(s string) (latency.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return latency.Region{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return latency.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return latency.Region{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// parseResolution parses "WxH".
func parseResolution(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("resolution %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad width", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("resolution %q: bad height", s)
	}
	return width, height, nil
}
