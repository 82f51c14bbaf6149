package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Device      DeviceConfig `yaml:"device"`
	Link        LinkConfig   `yaml:"link"`
	Audio       AudioConfig  `yaml:"audio"`
	Hotkey      HotkeyConfig `yaml:"hotkey"`
	LogLevel    string       `yaml:"log_level"`
	MetricsAddr string       `yaml:"metrics_addr"` // empty disables the endpoint
}

// DeviceConfig identifies the glasses to connect to.
type DeviceConfig struct {
	// Address is the peripheral address (a MAC on Linux/Windows, a
	// CoreBluetooth UUID on macOS). Empty means scan at startup.
	Address     string `yaml:"address"`
	ScanTimeout int    `yaml:"scan_timeout"` // seconds
}

// LinkConfig holds transport tuning.
type LinkConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`            // requested unit size cap, bytes
	BaseDelayMs       int    `yaml:"base_delay_ms"`         // inter-chunk pacing for a full unit
	Profile           string `yaml:"profile"`               // "text", "text-length", or "binary"
	ReassemblyTimeout int    `yaml:"reassembly_timeout_ms"` // inbound idle window
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	CaptureDir string `yaml:"capture_dir"` // where inbound streams are written
}

// HotkeyConfig holds push-to-talk settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "hold" or "toggle"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solari-link")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Device: DeviceConfig{
			ScanTimeout: 10,
		},
		Link: LinkConfig{
			ChunkSize:         200,
			BaseDelayMs:       20,
			Profile:           "binary",
			ReassemblyTimeout: 5000,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			CaptureDir: filepath.Join(home, ".local", "share", "solari-link", "captures"),
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "t"},
			Mode: "hold",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Audio.CaptureDir = expandTilde(cfg.Audio.CaptureDir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("device.scan_timeout must be > 0")
	}

	if c.Link.ChunkSize < 20 {
		return fmt.Errorf("link.chunk_size must be >= 20, got %d", c.Link.ChunkSize)
	}

	if c.Link.BaseDelayMs <= 0 {
		return fmt.Errorf("link.base_delay_ms must be > 0")
	}

	switch c.Link.Profile {
	case "text", "text-length", "binary":
	default:
		return fmt.Errorf("link.profile must be \"text\", \"text-length\", or \"binary\", got %q", c.Link.Profile)
	}

	if c.Link.ReassemblyTimeout <= 0 {
		return fmt.Errorf("link.reassembly_timeout_ms must be > 0")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// BaseDelay returns the pacing delay as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Link.BaseDelayMs) * time.Millisecond
}

// ReassemblyTimeout returns the inbound idle window as a duration.
func (c *Config) ReassemblyTimeout() time.Duration {
	return time.Duration(c.Link.ReassemblyTimeout) * time.Millisecond
}

// ScanTimeout returns the scan window as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Device.ScanTimeout) * time.Second
}

// ParseLogLevel maps a config log level string to a slog level,
// defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default config to path, creating parent
// directories as needed. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
