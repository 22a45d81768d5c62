package testutil

import (
	"context"
	"time"

	"github.com/roach88/lagprobe/internal/latency"
)

// Frame is one scripted response of a ScriptedSource.
type Frame struct {
	// Fingerprint is returned when Err is nil.
	Fingerprint latency.Fingerprint

	// Err is returned instead of a frame when set.
	Err error

	// Delay is slept on the source's clock before responding, modelling the
	// capture backend's internal wait.
	Delay time.Duration
}

// ScriptedSource replays a fixed list of frames, one per Sample call.
//
// The returned timestamp is the clock's time after Delay. Once the script is
// exhausted the source keeps returning Fallback.
type ScriptedSource struct {
	clock    latency.Clock
	frames   []Frame
	next     int
	Fallback Frame
	Regions  []latency.Region
}

// NewScriptedSource creates a source that replays frames on clock.
// The default fallback is latency.ErrNoNewFrame.
func NewScriptedSource(clock latency.Clock, frames ...Frame) *ScriptedSource {
	return &ScriptedSource{
		clock:    clock,
		frames:   frames,
		Fallback: Frame{Err: latency.ErrNoNewFrame},
	}
}

// Push appends frames to the script.
func (s *ScriptedSource) Push(frames ...Frame) {
	s.frames = append(s.frames, frames...)
}

// Calls returns the number of Sample calls so far.
func (s *ScriptedSource) Calls() int {
	return len(s.Regions)
}

// Sample implements latency.FrameFingerprintSource.
func (s *ScriptedSource) Sample(_ context.Context, region latency.Region) (latency.Fingerprint, latency.Timestamp, error) {
	s.Regions = append(s.Regions, region)

	f := s.Fallback
	if s.next < len(s.frames) {
		f = s.frames[s.next]
		s.next++
	}
	s.clock.Sleep(f.Delay)
	if f.Err != nil {
		return 0, 0, f.Err
	}
	return f.Fingerprint, s.clock.Now(), nil
}

// Repeat returns n copies of f.
func Repeat(f Frame, n int) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

// RecordingInjector records every dispatch and stamps it with the clock.
type RecordingInjector struct {
	clock latency.Clock

	// Polarities holds every polarity fired, in order.
	Polarities []latency.Polarity

	// Times holds the dispatch timestamps returned.
	Times []latency.Timestamp

	// Errs maps a 1-based call number to the error returned for it.
	Errs map[int]error

	// OnFire runs after a successful dispatch, e.g. to push frames.
	OnFire func(call int, polarity latency.Polarity)
}

// NewRecordingInjector creates an injector stamping dispatches with clock.
func NewRecordingInjector(clock latency.Clock) *RecordingInjector {
	return &RecordingInjector{clock: clock, Errs: map[int]error{}}
}

// Fire implements latency.StimulusInjector.
func (r *RecordingInjector) Fire(_ context.Context, polarity latency.Polarity) (latency.Timestamp, error) {
	call := len(r.Polarities) + 1
	r.Polarities = append(r.Polarities, polarity)
	if err := r.Errs[call]; err != nil {
		r.Times = append(r.Times, 0)
		return 0, err
	}
	ts := r.clock.Now()
	r.Times = append(r.Times, ts)
	if r.OnFire != nil {
		r.OnFire(call, polarity)
	}
	return ts, nil
}
