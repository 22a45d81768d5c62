package report

import (
	"io"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/lagprobe/internal/latency"
)

// Progress prints one line per attempt as a session runs. It implements
// latency.Observer.
type Progress struct {
	latency.NopObserver

	mu   sync.Mutex
	w    io.Writer
	p    *message.Printer
	hz   int
	runs int
}

// NewProgress creates a progress printer. runs is the configured number of
// runs; with more than one, lines are prefixed by the run index.
func NewProgress(w io.Writer, tag language.Tag, refreshHz, runs int) *Progress {
	if tag == language.Und {
		tag = language.English
	}
	if refreshHz <= 0 {
		refreshHz = View{}.refreshHz()
	}
	return &Progress{w: w, p: message.NewPrinter(tag), hz: refreshHz, runs: runs}
}

// OnAttempt implements latency.Observer.
func (p *Progress) OnAttempt(a latency.AttemptRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := ""
	if p.runs > 1 {
		prefix = p.p.Sprintf("run %d ", a.Run)
	}
	suffix := ""
	if a.Warmup {
		suffix = " (warm-up)"
	}

	switch a.Verdict {
	case latency.VerdictAccepted:
		p.p.Fprintf(p.w, "%s[%d/%d] Latency: %.2f ms (%.2f frames)%s\n",
			prefix, a.Index, a.Target, millis(a.Latency), Frames(a.Latency, p.hz), suffix)
	case latency.VerdictImplausible:
		p.p.Fprintf(p.w, "%s[%d/%d] Ignored change after %.2f ms%s\n",
			prefix, a.Index, a.Target, millis(a.Latency), suffix)
	default:
		p.p.Fprintf(p.w, "%s[%d/%d] No screen change detected%s\n", prefix, a.Index, a.Target, suffix)
	}
}

// OnRunFinalized implements latency.Observer.
func (p *Progress) OnRunFinalized(run *latency.Run) {
	if !run.Failed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.p.Fprintf(p.w, "run %d aborted: %s\n", run.Index, run.Failure)
}
