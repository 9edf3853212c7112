// Package config loads the vbit2-style YAML configuration file and merges
// it with CLI-flag overrides, following the teacher's functional-options
// pattern in internal/mpegts/demuxer.go (DemuxerOptPacketSize,
// DemuxerOptPacketsParser) generalised from per-call options to a
// config-file-then-flags layering.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the vbit2 configuration fields this decoder cares about;
// vbit2's file carries many unrelated broadcast-insertion settings, which
// are parsed but ignored here via yaml.v3's default "unknown keys are
// skipped" behaviour.
type Config struct {
	ServiceName      string  `yaml:"service_name"`
	DefaultPID       *uint16 `yaml:"default_pid"`
	DefaultSID       *uint16 `yaml:"default_sid"`
	IncludeSubtitles bool    `yaml:"include_subtitles"`
	CycleSeconds     int     `yaml:"cycle_seconds"`
}

// Option overrides a field of a Config already loaded from file, in the
// same shape as the teacher's DemuxerOpt* functions.
type Option func(*Config)

// WithDefaultPID overrides the configured PID.
func WithDefaultPID(pid uint16) Option {
	return func(c *Config) { c.DefaultPID = &pid }
}

// WithDefaultSID overrides the configured SID.
func WithDefaultSID(sid uint16) Option {
	return func(c *Config) { c.DefaultSID = &sid }
}

// WithIncludeSubtitles overrides the subtitles-extraction flag.
func WithIncludeSubtitles(include bool) Option {
	return func(c *Config) { c.IncludeSubtitles = include }
}

// WithCycleSeconds overrides the subpage cycle interval.
func WithCycleSeconds(seconds int) Option {
	return func(c *Config) { c.CycleSeconds = seconds }
}

// Load reads and parses the YAML file at path, applying opts on top. An
// empty path yields an empty Config with just opts applied — the CLI's
// --disable-config path and the "no config configured" path both resolve
// here to the same zero-value base. A malformed file is a fatal-input
// error; the caller (cmd/ttxdump) maps it to exit code 1.
func Load(path string, opts ...Option) (Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
		}
		defer f.Close()

		if err := parse(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg, nil
}

func parse(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}
