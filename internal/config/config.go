// Package config holds the measurement configuration and loads it from YAML
// or CUE profiles.
package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/roach88/lagprobe/internal/latency"
)

// Defaults not covered by latency.
const (
	DefaultMagnitude = 30
	DefaultLanguage  = "en"
)

// Config is the effective configuration of a measurement.
type Config struct {
	Samples      int
	Warmup       int
	Interval     time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
	Runs         int
	RunPause     time.Duration
	StartDelay   time.Duration

	// Magnitude is the pointer travel per stimulus in pixels.
	Magnitude int

	// Region is the capture rectangle. All zero selects a 200x200 region
	// centred on the screen.
	Region latency.Region

	// RefreshHz overrides refresh-rate detection when positive.
	RefreshHz int

	// Language is a BCP 47 tag for report number formatting.
	Language string
}

// Default returns the stock configuration.
func Default() Config {
	d := latency.DefaultConfig()
	return Config{
		Samples:      d.Samples,
		Warmup:       d.Warmup,
		Interval:     d.Interval,
		Timeout:      d.Timeout,
		PollInterval: d.PollInterval,
		Runs:         d.Runs,
		RunPause:     d.RunPause,
		StartDelay:   d.StartDelay,
		Magnitude:    DefaultMagnitude,
		Language:     DefaultLanguage,
	}
}

// Session returns the part of c consumed by the measurement loop.
func (c Config) Session() latency.Config {
	return latency.Config{
		Samples:      c.Samples,
		Warmup:       c.Warmup,
		Interval:     c.Interval,
		Timeout:      c.Timeout,
		PollInterval: c.PollInterval,
		Runs:         c.Runs,
		RunPause:     c.RunPause,
		StartDelay:   c.StartDelay,
	}
}

// Tag returns the parsed language tag. Validate guarantees it parses.
func (c Config) Tag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.English
	}
	return tag
}

// Validate checks c and returns every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	if err := c.Session().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Magnitude == 0 {
		errs = append(errs, errors.New("dx must be non-zero"))
	}
	r := c.Region
	if r.X < 0 || r.Y < 0 || r.W < 0 || r.H < 0 {
		errs = append(errs, fmt.Errorf("region must not be negative, got %s", r))
	} else if !r.IsZero() && (r.W == 0 || r.H == 0) {
		errs = append(errs, fmt.Errorf("region needs a width and a height, got %s", r))
	}
	if c.RefreshHz < 0 {
		errs = append(errs, fmt.Errorf("refresh_hz must not be negative, got %d", c.RefreshHz))
	}
	if _, err := language.Parse(c.Language); err != nil {
		errs = append(errs, fmt.Errorf("language %q: %w", c.Language, err))
	}
	return errors.Join(errs...)
}
