// Package harness runs measurement scenarios against the simulated display.
//
// A scenario is a YAML file describing the simulated display (resolution,
// refresh rate, latency and jitter), a configuration profile in the same
// shape as a measure profile, and a list of assertions on the resulting
// report. Every scenario runs on a fake clock with a fresh in-memory store,
// so results are reproducible and fast.
//
// Supported assertions:
//   - pooled_count: exact number of pooled samples
//   - mean_between: pooled mean in milliseconds within [min, max]
//   - verdict: the frame-lag verdict starts with the given text
//   - no_data: the session produced no accepted samples
//   - advisory: the report carries the advisory with the given code
//   - counter: a diagnostic counter within [min, max]
//   - failed_runs: exact number of aborted runs
//
// Golden digests live in testdata/golden. To regenerate them, run:
//
//	go test ./internal/harness -update
package harness
