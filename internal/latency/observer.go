package latency

// Phase is a state of the per-run state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBaselineCapture
	PhasePacing
	PhaseDispatch
	PhasePoll
	PhaseCorrelate
	PhaseFinalized
	// PhasePause covers the start countdown and the pauses between runs.
	PhasePause
)

var phaseNames = [...]string{
	PhaseIdle:            "idle",
	PhaseBaselineCapture: "baseline",
	PhasePacing:          "pacing",
	PhaseDispatch:        "dispatch",
	PhasePoll:            "poll",
	PhaseCorrelate:       "correlate",
	PhaseFinalized:       "finalized",
	PhasePause:           "pause",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// Tick is passed to observers once per loop iteration.
type Tick struct {
	Run     int
	Attempt int
	Phase   Phase
	At      Timestamp
}

// Observer receives control back from the measurement loop.
//
// OnTick is the cooperative yield point: it runs once per loop tick on the
// loop's goroutine, so it must return quickly (a status overlay or event pump
// belongs here). OnAttempt fires after each attempt is correlated and
// OnRunFinalized after each run closes, failed or not.
type Observer interface {
	OnTick(Tick)
	OnAttempt(AttemptRecord)
	OnRunFinalized(*Run)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnTick(Tick)             {}
func (NopObserver) OnAttempt(AttemptRecord) {}
func (NopObserver) OnRunFinalized(*Run)     {}

// Observers fans every callback out in order.
type Observers []Observer

func (o Observers) OnTick(t Tick) {
	for _, obs := range o {
		obs.OnTick(t)
	}
}

func (o Observers) OnAttempt(a AttemptRecord) {
	for _, obs := range o {
		obs.OnAttempt(a)
	}
}

func (o Observers) OnRunFinalized(r *Run) {
	for _, obs := range o {
		obs.OnRunFinalized(r)
	}
}
