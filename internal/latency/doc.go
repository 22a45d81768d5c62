// Package latency implements the input-lag sampling and correlation engine.
//
// A measurement session dispatches synthetic stimuli, polls a cheap
// fingerprint of a screen region until it diverges from the last observed
// state, and turns the gap between dispatch and detection into a latency
// sample. Samples are reduced per run and once more over the pooled session.
//
// ARCHITECTURE:
//
// Single Control Loop:
// Everything runs on the caller's goroutine. Each poll tick services at most
// one capture call and then yields once to the registered Observer before a
// short bounded sleep. There is no worker pool and nothing here needs a lock:
// the baseline fingerprint and the DiagnosticCounters are owned by the loop.
//
// Attempt Flow (per run):
//
//	Idle -> BaselineCapture -> {Pacing -> Dispatch -> Poll -> Correlate}* -> Finalized
//
// Attempt k+1 never dispatches before attempt k has been correlated. Every
// attempt counts toward the run's sample target, whatever its outcome.
//
// TIME:
//
// All latency arithmetic uses Timestamp values from a Clock backed by the
// monotonic clock. Wall-clock time never enters a sample.
//
// COLLABORATORS:
//
// Screen capture and input injection are narrow interfaces
// (FrameFingerprintSource, StimulusInjector). Implementations must share the
// session's Clock so their timestamps are comparable.
package latency
