package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
device:
  address: "AA:BB:CC:DD:EE:FF"
  scan_timeout: 5
link:
  chunk_size: 180
  base_delay_ms: 30
  profile: text
log_level: debug
metrics_addr: ":9091"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Device.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("address = %q", cfg.Device.Address)
	}
	if cfg.Link.ChunkSize != 180 || cfg.Link.BaseDelayMs != 30 || cfg.Link.Profile != "text" {
		t.Errorf("link = %+v, want overridden values", cfg.Link)
	}
	if cfg.LogLevel != "debug" || cfg.MetricsAddr != ":9091" {
		t.Errorf("log_level/metrics = %q/%q", cfg.LogLevel, cfg.MetricsAddr)
	}

	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %d, want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.Link.ReassemblyTimeout != 5000 {
		t.Errorf("reassembly_timeout_ms = %d, want default 5000", cfg.Link.ReassemblyTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "audio:\n  capture_dir: ~/captures\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	home, _ := os.UserHomeDir()
	if cfg.Audio.CaptureDir != filepath.Join(home, "captures") {
		t.Errorf("capture_dir = %q, tilde not expanded", cfg.Audio.CaptureDir)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero scan timeout", func(c *Config) { c.Device.ScanTimeout = 0 }},
		{"chunk size below floor", func(c *Config) { c.Link.ChunkSize = 19 }},
		{"zero base delay", func(c *Config) { c.Link.BaseDelayMs = 0 }},
		{"unknown profile", func(c *Config) { c.Link.Profile = "morse" }},
		{"zero reassembly timeout", func(c *Config) { c.Link.ReassemblyTimeout = 0 }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"zero channels", func(c *Config) { c.Audio.Channels = 0 }},
		{"no hotkeys", func(c *Config) { c.Hotkey.Keys = nil }},
		{"bad hotkey mode", func(c *Config) { c.Hotkey.Mode = "tap" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() should fail", tt.name)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	cfg.Link.BaseDelayMs = 25
	cfg.Link.ReassemblyTimeout = 3000
	cfg.Device.ScanTimeout = 7

	if cfg.BaseDelay() != 25*time.Millisecond {
		t.Errorf("BaseDelay() = %v", cfg.BaseDelay())
	}
	if cfg.ReassemblyTimeout() != 3*time.Second {
		t.Errorf("ReassemblyTimeout() = %v", cfg.ReassemblyTimeout())
	}
	if cfg.ScanTimeout() != 7*time.Second {
		t.Errorf("ScanTimeout() = %v", cfg.ScanTimeout())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of written default error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written default invalid: %v", err)
	}

	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() should refuse to overwrite an existing file")
	}
}
