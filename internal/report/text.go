package report

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/lagprobe/internal/latency"
)

// RenderText writes the human-readable report.
func RenderText(w io.Writer, v View) error {
	tag := v.Language
	if tag == language.Und {
		tag = language.English
	}
	bw := bufio.NewWriter(w)
	t := &textWriter{p: message.NewPrinter(tag), w: bw, hz: v.refreshHz()}
	rep := v.Report

	t.header(v)
	t.runs(rep)
	if rep.HasPooled {
		t.stats(rep.Pooled)
		t.monitor(rep.Pooled)
	} else {
		t.line("[ERROR] No valid measurements collected")
		t.blank()
	}
	t.characteristics(rep)
	t.diagnostics(rep.Diagnostics)
	t.advisories(rep.Advisories)
	t.note()

	return bw.Flush()
}

type textWriter struct {
	p  *message.Printer
	w  io.Writer
	hz int
}

func (t *textWriter) line(format string, args ...any) {
	t.p.Fprintf(t.w, format+"\n", args...)
}

func (t *textWriter) blank() {
	io.WriteString(t.w, "\n")
}

func (t *textWriter) header(v View) {
	if v.SessionID != "" {
		if v.Label != "" {
			t.line("Session: %s (%s)", v.SessionID, v.Label)
		} else {
			t.line("Session: %s", v.SessionID)
		}
	}
	cfg := v.Report.Config
	t.line("Region: %s", v.Report.Region.String())
	t.line("Config: samples=%s warmup=%s interval=%s runs=%s",
		strconv.Itoa(cfg.Samples), strconv.Itoa(cfg.Warmup), cfg.Interval.String(), strconv.Itoa(cfg.Runs))
	t.line("Monitor: %sHz (%.2f ms per frame)", strconv.Itoa(t.hz), 1000.0/float64(t.hz))
	t.blank()
}

func (t *textWriter) runs(rep *latency.Report) {
	if len(rep.Runs) == 0 {
		return
	}
	t.line("[*] Runs")
	for _, run := range rep.Runs {
		label := "Run " + strconv.Itoa(run.Index) + "/" + strconv.Itoa(len(rep.Runs))
		d := run.Diagnostics
		switch {
		case run.Failed():
			t.line("    %-13s : aborted after %d attempts: %s", label, len(run.Attempts), run.Failure)
		case run.HasStats:
			t.line("    %-13s : %d samples, avg %.2f ms, %d no change, %d implausible",
				label, run.Stats.Count, run.Stats.Mean/float64(time.Millisecond), d.NoChangeOutcomes, d.ImplausibleSamples)
		default:
			t.line("    %-13s : no accepted samples, %d no change, %d implausible",
				label, d.NoChangeOutcomes, d.ImplausibleSamples)
		}
	}
	t.blank()
}

func (t *textWriter) stats(s latency.Stats) {
	row := func(name string, d time.Duration) {
		t.line("    %-13s : %.2f ms (%.2f frames)", name, millis(d), Frames(d, t.hz))
	}
	t.line("[*] Input -> Capture Latency (milliseconds)")
	t.line("    %-13s : %d", "Samples", s.Count)
	row("Min", s.Min)
	row("P50 (Median)", time.Duration(s.Median))
	row("Avg", time.Duration(s.Mean))
	row("P95", s.P95)
	row("P99", s.P99)
	row("Max", s.Max)
	t.line("    %-13s : %.2f ms", "Std Dev", s.StdDev/float64(time.Millisecond))
	t.blank()
}

func (t *textWriter) monitor(s latency.Stats) {
	t.line("[*] Monitor Analysis (%sHz)", strconv.Itoa(t.hz))
	t.line("    %-13s : %.2f ms", "Frame time", 1000.0/float64(t.hz))
	t.line("    %-13s : %s", "Verdict", Verdict(Frames(time.Duration(s.Mean), t.hz)))
	t.blank()
}

func (t *textWriter) characteristics(rep *latency.Report) {
	t.line("[*] Test Characteristics")
	t.line("    %-13s : %d ms", "Test Duration", rep.Duration().Milliseconds())
	t.line("    %-13s : %.2f Hz", "Rate", MeasurementRate(rep))
	t.line("    %-13s : %d ms", "Interval", rep.Config.Interval.Milliseconds())
	t.blank()
}

func (t *textWriter) diagnostics(c latency.DiagnosticCounters) {
	t.line("[*] Diagnostics")
	rows := []struct {
		name string
		n    int
	}{
		{"Attempts", c.Attempts},
		{"Detections", c.SuccessfulDetections},
		{"No change", c.NoChangeOutcomes},
		{"Implausible", c.ImplausibleSamples},
		{"Timeouts", c.Timeouts},
		{"Unchanged", c.UnchangedPolls},
		{"Noise", c.InjectorOnlyNoise},
		{"Errors", c.DetectorErrors},
	}
	for _, r := range rows {
		t.line("    %-13s : %d", r.name, r.n)
	}
	t.blank()
}

func (t *textWriter) advisories(advs []latency.Advisory) {
	if len(advs) == 0 {
		return
	}
	t.line("[!] Advisories")
	for _, a := range advs {
		t.line("    %s: %s (%.1f%% > %.0f%%)", string(a.Code), a.Message, a.Rate*100, a.Threshold*100)
	}
	t.blank()
}

func (t *textWriter) note() {
	io.WriteString(t.w, `Note: these figures are the time from a pointer movement to a detected
      change in the captured frame. They do not include scan-out and
      panel response, which need a sensor on the screen.
`)
}
