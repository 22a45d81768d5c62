// Package report renders measurement reports as text or JSON, and prints
// per-attempt progress while a session runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"

	"github.com/roach88/lagprobe/internal/fingerprint"
	"github.com/roach88/lagprobe/internal/latency"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// View is everything needed to render one session.
type View struct {
	SessionID string
	Label     string
	Report    *latency.Report

	// RefreshHz converts milliseconds to frames. Zero means
	// fingerprint.DefaultRefreshHz.
	RefreshHz int

	// Language selects number formatting. The zero Tag formats as English.
	Language language.Tag
}

func (v View) refreshHz() int {
	if v.RefreshHz <= 0 {
		return fingerprint.DefaultRefreshHz
	}
	return v.RefreshHz
}

// Render writes v in format.
func Render(w io.Writer, format string, v View) error {
	if v.Report == nil {
		return fmt.Errorf("render: nil report")
	}
	switch format {
	case FormatText, "":
		return RenderText(w, v)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Summarize(v))
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", format, FormatText, FormatJSON)
	}
}

// Summary is the machine-readable form of a View.
type Summary struct {
	SessionID         string          `json:"session_id,omitempty"`
	Label             string          `json:"label,omitempty"`
	RefreshHz         int             `json:"refresh_hz"`
	FrameTimeMs       float64         `json:"frame_time_ms"`
	Verdict           string          `json:"verdict,omitempty"`
	MeanFrames        float64         `json:"mean_frames,omitempty"`
	MeasurementRateHz float64         `json:"measurement_rate_hz"`
	DurationMs        int64           `json:"duration_ms"`
	Report            *latency.Report `json:"report"`
}

// Summarize derives the headline figures of v.
func Summarize(v View) Summary {
	hz := v.refreshHz()
	rep := v.Report
	s := Summary{
		SessionID:         v.SessionID,
		Label:             v.Label,
		RefreshHz:         hz,
		FrameTimeMs:       fingerprint.FrameTimeMs(hz),
		MeasurementRateHz: MeasurementRate(rep),
		DurationMs:        rep.Duration().Milliseconds(),
		Report:            rep,
	}
	if rep.HasPooled {
		s.MeanFrames = Frames(time.Duration(rep.Pooled.Mean), hz)
		s.Verdict = Verdict(s.MeanFrames)
	}
	return s
}

// Verdict grades a mean latency expressed in frames.
func Verdict(meanFrames float64) string {
	switch {
	case meanFrames < 1:
		return "EXCELLENT - Under 1 frame lag"
	case meanFrames < 2:
		return "VERY GOOD - Under 2 frames lag"
	case meanFrames < 3:
		return "GOOD - Under 3 frames lag"
	default:
		return "CHECK SETTINGS - Above 3 frames lag"
	}
}

// Frames converts a latency to frames at refreshHz.
func Frames(d time.Duration, refreshHz int) float64 {
	return millis(d) / fingerprint.FrameTimeMs(refreshHz)
}

// MeasurementRate returns pooled samples per second of session time.
func MeasurementRate(rep *latency.Report) float64 {
	dur := rep.Duration()
	if !rep.HasPooled || dur <= 0 {
		return 0
	}
	return float64(rep.Pooled.Count) / dur.Seconds()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
