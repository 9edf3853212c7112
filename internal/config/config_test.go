package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vbit2.yml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_ParsesKnownFields(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
service_name: "Test Service"
default_pid: 104
default_sid: 4228
include_subtitles: true
cycle_seconds: 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "Test Service" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "Test Service")
	}
	if cfg.DefaultPID == nil || *cfg.DefaultPID != 104 {
		t.Errorf("DefaultPID = %v, want 104", cfg.DefaultPID)
	}
	if cfg.DefaultSID == nil || *cfg.DefaultSID != 4228 {
		t.Errorf("DefaultSID = %v, want 4228", cfg.DefaultSID)
	}
	if !cfg.IncludeSubtitles {
		t.Error("IncludeSubtitles = false, want true")
	}
	if cfg.CycleSeconds != 8 {
		t.Errorf("CycleSeconds = %d, want 8", cfg.CycleSeconds)
	}
}

func TestLoad_IgnoresUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
service_name: "Test Service"
priority1page: 100
subtitlepage: 888
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "Test Service" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "Test Service")
	}
}

func TestLoad_EmptyPathReturnsZeroValue(t *testing.T) {
	t.Parallel()
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("cfg = %+v, want zero value", cfg)
	}
}

func TestLoad_MalformedYAMLReturnsError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "service_name: [unterminated")
	if _, err := Load(path); err == nil {
		t.Error("Load: err = nil, want error for malformed YAML")
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Load: err = nil, want error for missing file")
	}
}

func TestLoad_OptionsOverrideFileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
default_pid: 104
cycle_seconds: 8
`)
	cfg, err := Load(path, WithDefaultPID(200), WithCycleSeconds(16))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg.DefaultPID != 200 {
		t.Errorf("DefaultPID = %d, want 200", *cfg.DefaultPID)
	}
	if cfg.CycleSeconds != 16 {
		t.Errorf("CycleSeconds = %d, want 16", cfg.CycleSeconds)
	}
}

func TestLoad_OptionsApplyWithNoConfigFile(t *testing.T) {
	t.Parallel()
	sid := uint16(4228)
	cfg, err := Load("", WithDefaultSID(sid), WithIncludeSubtitles(true))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultSID == nil || *cfg.DefaultSID != sid {
		t.Errorf("DefaultSID = %v, want %d", cfg.DefaultSID, sid)
	}
	if !cfg.IncludeSubtitles {
		t.Error("IncludeSubtitles = false, want true")
	}
}
