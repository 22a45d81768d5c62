package latency

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Fingerprint is an opaque digest of a captured region's content.
// Only equality is meaningful; there is no ordering or distance.
type Fingerprint uint64

// Timestamp is an instant on the session's monotonic clock, in nanoseconds.
type Timestamp int64

// Sub returns the duration t-u.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t - u)
}

// Add returns t+d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d)
}

// Polarity is the direction of a stimulus. Consecutive attempts alternate.
type Polarity int8

const (
	// Positive moves the stimulus by +magnitude.
	Positive Polarity = 1
	// Negative moves the stimulus by -magnitude.
	Negative Polarity = -1
)

// Sign returns +1 or -1.
func (p Polarity) Sign() int {
	if p == Negative {
		return -1
	}
	return 1
}

func (p Polarity) String() string {
	if p == Negative {
		return "-"
	}
	return "+"
}

// PolarityFor returns the polarity of the attempt with the given 1-based
// index: odd attempts are positive, even attempts negative.
func PolarityFor(attempt int) Polarity {
	if attempt%2 == 1 {
		return Positive
	}
	return Negative
}

// Region is a capture rectangle in screen pixels.
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// IsZero reports whether the region is unset (all fields zero).
func (r Region) IsZero() bool {
	return r == Region{}
}

func (r Region) String() string {
	return fmt.Sprintf("x=%d y=%d w=%d h=%d", r.X, r.Y, r.W, r.H)
}

// ErrNoNewFrame is returned by a FrameFingerprintSource when its internal
// wait elapsed without a new frame. It costs one tick and polling continues.
var ErrNoNewFrame = errors.New("no new frame")

// ErrCollaboratorFatal marks a collaborator as unusable. Wrap it to abort the
// current run; the session still attempts the remaining runs.
var ErrCollaboratorFatal = errors.New("collaborator unusable")

// FrameFingerprintSource captures a region and reports its fingerprint along
// with the capture instant.
//
// Implementations must tolerate calls at 500 Hz or more without accumulating
// resources, and must bound any internal wait to a short interval.
type FrameFingerprintSource interface {
	Sample(ctx context.Context, region Region) (Fingerprint, Timestamp, error)
}

// StimulusInjector dispatches one synthetic input event and returns the
// instant captured as close as possible to the OS-level injection call.
//
// The stimulus magnitude is owned by the injector; the core only alternates
// the sign.
type StimulusInjector interface {
	Fire(ctx context.Context, polarity Polarity) (Timestamp, error)
}

// SourceFunc adapts a function to FrameFingerprintSource.
type SourceFunc func(ctx context.Context, region Region) (Fingerprint, Timestamp, error)

// Sample calls f.
func (f SourceFunc) Sample(ctx context.Context, region Region) (Fingerprint, Timestamp, error) {
	return f(ctx, region)
}

// InjectorFunc adapts a function to StimulusInjector.
type InjectorFunc func(ctx context.Context, polarity Polarity) (Timestamp, error)

// Fire calls f.
func (f InjectorFunc) Fire(ctx context.Context, polarity Polarity) (Timestamp, error) {
	return f(ctx, polarity)
}
