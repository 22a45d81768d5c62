// Package sim provides a simulated display and pointer that implement both
// latency collaborators.
//
// A stimulus moves a cursor square by ±magnitude pixels. The move becomes
// visible after a configurable latency plus jitter, on the next vsync
// boundary. Sample behaves like a desktop-duplication acquire: it returns a
// frame only when one was presented since the previous call, waiting up to
// Options.Wait, and otherwise fails with latency.ErrNoNewFrame.
package sim

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"time"

	"github.com/roach88/lagprobe/internal/fingerprint"
	"github.com/roach88/lagprobe/internal/latency"
)

// Options configures a Display. Zero fields take the defaults below.
type Options struct {
	Width     int
	Height    int
	RefreshHz int

	// Latency is the mean delay between a dispatch and the frame that shows
	// it; Jitter is the half-width of a uniform spread around it.
	Latency time.Duration
	Jitter  time.Duration

	// Wait bounds one Sample call, like the capture backend's acquire
	// timeout.
	Wait time.Duration

	// Magnitude is the cursor travel per stimulus, in pixels.
	Magnitude int

	// CursorSize is the side of the cursor square.
	CursorSize int

	Seed int64
}

// Defaults.
const (
	DefaultWidth      = 640
	DefaultHeight     = 360
	DefaultRefreshHz  = 144
	DefaultLatency    = 12 * time.Millisecond
	DefaultJitter     = 4 * time.Millisecond
	DefaultWait       = 10 * time.Millisecond
	DefaultMagnitude  = 30
	DefaultCursorSize = 16
)

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.RefreshHz <= 0 {
		o.RefreshHz = DefaultRefreshHz
	}
	if o.Latency <= 0 {
		o.Latency = DefaultLatency
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.Wait <= 0 {
		o.Wait = DefaultWait
	}
	if o.Magnitude == 0 {
		o.Magnitude = DefaultMagnitude
	}
	if o.CursorSize <= 0 {
		o.CursorSize = DefaultCursorSize
	}
	return o
}

type pendingMove struct {
	at latency.Timestamp
	dx int
}

// Display is a simulated screen and pointer. It is not safe for concurrent
// use; the measurement loop is single-threaded.
type Display struct {
	opts  Options
	clock latency.Clock
	rng   *rand.Rand

	frame   *image.RGBA
	cursorX int
	cursorY int

	pending []pendingMove

	// presented is set when a frame is waiting to be acquired.
	presented   bool
	presentedAt latency.Timestamp

	fires int
}

// NewDisplay creates a display reading clock. The first Sample returns the
// initial frame immediately.
func NewDisplay(clock latency.Clock, opts Options) *Display {
	opts = opts.withDefaults()
	d := &Display{
		opts:        opts,
		clock:       clock,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		frame:       image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		cursorX:     opts.Width/2 - opts.CursorSize/2,
		cursorY:     opts.Height/2 - opts.CursorSize/2,
		presented:   true,
		presentedAt: clock.Now(),
	}
	d.render()
	return d
}

// Size returns the screen dimensions.
func (d *Display) Size() (int, int) {
	return d.opts.Width, d.opts.Height
}

// Modes lists the display modes. The configured rate is the fastest one;
// a mode without a rate is included, as real drivers report such entries.
func (d *Display) Modes() []fingerprint.DisplayMode {
	w, h := d.Size()
	return []fingerprint.DisplayMode{
		{Width: w, Height: h, Numerator: 60000, Denominator: 1001},
		{Width: w, Height: h, Numerator: 0, Denominator: 0},
		{Width: w, Height: h, Numerator: uint32(d.opts.RefreshHz), Denominator: 1},
	}
}

// Fires returns the number of dispatched stimuli.
func (d *Display) Fires() int {
	return d.fires
}

// Fire implements latency.StimulusInjector.
func (d *Display) Fire(ctx context.Context, polarity latency.Polarity) (latency.Timestamp, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := d.clock.Now()
	d.fires++

	delay := d.opts.Latency
	if j := d.opts.Jitter; j > 0 {
		delay += time.Duration(d.rng.Int63n(int64(2*j)+1)) - j
	}
	delay = max(delay, time.Nanosecond)

	d.pending = append(d.pending, pendingMove{
		at: d.nextVsync(now.Add(delay)),
		dx: polarity.Sign() * d.opts.Magnitude,
	})
	return now, nil
}

// Sample implements latency.FrameFingerprintSource.
func (d *Display) Sample(ctx context.Context, region latency.Region) (latency.Fingerprint, latency.Timestamp, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if region.W <= 0 || region.H <= 0 {
		return 0, 0, fmt.Errorf("%w: empty capture region %s", latency.ErrCollaboratorFatal, region)
	}

	if d.presented {
		d.presented = false
		return fingerprint.Of(d.frame, region), d.presentedAt, nil
	}

	now := d.clock.Now()
	deadline := now.Add(d.opts.Wait)
	if len(d.pending) == 0 || d.pending[0].at > deadline {
		d.clock.Sleep(d.opts.Wait)
		return 0, 0, latency.ErrNoNewFrame
	}

	at := d.pending[0].at
	if at > now {
		d.clock.Sleep(at.Sub(now))
	}
	d.present(at)
	d.presented = false
	return fingerprint.Of(d.frame, region), at, nil
}

// present applies every move due at or before at and redraws.
func (d *Display) present(at latency.Timestamp) {
	n := 0
	for _, m := range d.pending {
		if m.at > at {
			break
		}
		d.cursorX += m.dx
		n++
	}
	d.pending = d.pending[n:]
	d.cursorX = min(max(d.cursorX, 0), d.opts.Width-d.opts.CursorSize)
	d.presentedAt = at
	d.render()
}

// nextVsync rounds t up to the next refresh boundary.
func (d *Display) nextVsync(t latency.Timestamp) latency.Timestamp {
	period := latency.Timestamp(time.Second / time.Duration(d.opts.RefreshHz))
	if r := t % period; r != 0 {
		return t + period - r
	}
	return t
}

// render paints a position-hashed background and the cursor square. The
// background must not be linear in x or y: an XOR checksum over a grid
// would cancel it out and hide cursor moves.
func (d *Display) render() {
	b := d.frame.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := mix(uint32(x)<<16 | uint32(y))
			off := d.frame.PixOffset(x, y)
			d.frame.Pix[off+0] = uint8(v)
			d.frame.Pix[off+1] = uint8(v >> 8)
			d.frame.Pix[off+2] = uint8(v >> 16)
			d.frame.Pix[off+3] = 0xFF
		}
	}
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	for y := d.cursorY; y < d.cursorY+d.opts.CursorSize; y++ {
		for x := d.cursorX; x < d.cursorX+d.opts.CursorSize; x++ {
			d.frame.SetRGBA(x, y, white)
		}
	}
}

// mix is a 32-bit integer finalizer (murmur3 fmix32).
func mix(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
