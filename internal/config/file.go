package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lagprobe/internal/latency"
)

// File is a partial configuration as written in a profile. Nil fields leave
// the underlying value untouched. Durations are Go duration strings.
type File struct {
	Samples      *int            `yaml:"samples,omitempty" json:"samples,omitempty"`
	Warmup       *int            `yaml:"warmup,omitempty" json:"warmup,omitempty"`
	Interval     *string         `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout      *string         `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	PollInterval *string         `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
	Runs         *int            `yaml:"runs,omitempty" json:"runs,omitempty"`
	RunPause     *string         `yaml:"run_pause,omitempty" json:"run_pause,omitempty"`
	StartDelay   *string         `yaml:"start_delay,omitempty" json:"start_delay,omitempty"`
	Magnitude    *int            `yaml:"dx,omitempty" json:"dx,omitempty"`
	Region       *latency.Region `yaml:"region,omitempty" json:"region,omitempty"`
	RefreshHz    *int            `yaml:"refresh_hz,omitempty" json:"refresh_hz,omitempty"`
	Language     *string         `yaml:"language,omitempty" json:"language,omitempty"`
}

// schema closes the set of profile fields so typos in CUE profiles fail the
// same way KnownFields does for YAML.
const schema = `
#Config: {
	samples?:       int & >0
	warmup?:        int & >=0
	interval?:      string
	timeout?:       string
	poll_interval?: string
	runs?:          int & >0
	run_pause?:     string
	start_delay?:   string
	dx?:            int & !=0
	region?: {
		x: int & >=0
		y: int & >=0
		w: int & >=0
		h: int & >=0
	}
	refresh_hz?: int & >=0
	language?:   string
}
`

// LoadFile reads a profile. Files ending in .cue are evaluated as CUE;
// anything else is parsed as YAML.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML profile, rejecting unknown fields.
func ParseYAML(data []byte) (File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		// An empty document is a profile with nothing set.
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f, nil
}

// ParseCUE evaluates a CUE profile against the profile schema and decodes
// it. filename is used in error positions only.
func ParseCUE(data []byte, filename string) (File, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return File{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return File{}, fmt.Errorf("failed to compile CUE: %w", err)
	}

	v = def.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return File{}, fmt.Errorf("invalid CUE config: %w", err)
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return f, nil
}

// Apply overlays the set fields of f onto c.
func (c Config) Apply(f File) (Config, error) {
	setInt(&c.Samples, f.Samples)
	setInt(&c.Warmup, f.Warmup)
	setInt(&c.Runs, f.Runs)
	setInt(&c.Magnitude, f.Magnitude)
	setInt(&c.RefreshHz, f.RefreshHz)
	if f.Region != nil {
		c.Region = *f.Region
	}
	if f.Language != nil {
		c.Language = *f.Language
	}

	durations := []struct {
		name string
		dst  *time.Duration
		src  *string
	}{
		{"interval", &c.Interval, f.Interval},
		{"timeout", &c.Timeout, f.Timeout},
		{"poll_interval", &c.PollInterval, f.PollInterval},
		{"run_pause", &c.RunPause, f.RunPause},
		{"start_delay", &c.StartDelay, f.StartDelay},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return c, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return c, nil
}

// File returns c as a fully populated profile.
func (c Config) File() File {
	dur := func(d time.Duration) *string {
		s := d.String()
		return &s
	}
	region := c.Region
	lang := c.Language
	return File{
		Samples:      &c.Samples,
		Warmup:       &c.Warmup,
		Interval:     dur(c.Interval),
		Timeout:      dur(c.Timeout),
		PollInterval: dur(c.PollInterval),
		Runs:         &c.Runs,
		RunPause:     dur(c.RunPause),
		StartDelay:   dur(c.StartDelay),
		Magnitude:    &c.Magnitude,
		Region:       &region,
		RefreshHz:    &c.RefreshHz,
		Language:     &lang,
	}
}

// Load builds the effective configuration: defaults, then the profile at
// path (skipped when empty), then overrides. The result is validated.
func Load(path string, overrides File) (Config, error) {
	c := Default()
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return c, err
		}
		if c, err = c.Apply(f); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	c, err := c.Apply(overrides)
	if err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
