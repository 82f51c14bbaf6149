// Command solari is the operator CLI for the Solari glasses link: scan
// for glasses, stream WAV files or the diagnostic tone to the speaker,
// send control commands, and capture microphone streams to disk.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solari-app/solari-link/internal/audio"
	"github.com/solari-app/solari-link/internal/ble"
	"github.com/solari-app/solari-link/internal/config"
	"github.com/solari-app/solari-link/internal/link"
	"github.com/solari-app/solari-link/internal/link/frame"
	"github.com/solari-app/solari-link/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/solari-link/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	scan := flag.Bool("scan", false, "scan for glasses and exit")
	device := flag.String("device", "", "peripheral address (overrides config)")
	sendFile := flag.String("send", "", "stream a WAV file to the glasses speaker")
	tone := flag.Bool("tone", false, "stream the diagnostic test tone")
	cmdText := flag.String("cmd", "", "send a control command (raw text)")
	listen := flag.Bool("listen", false, "capture glasses microphone streams to WAV files")
	outDir := flag.String("out", "", "capture output directory (overrides config)")
	metricsAddr := flag.String("metrics", "", "Prometheus listen address, e.g. :9091 (overrides config)")
	flag.Parse()

	if *initConfig {
		path := *configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.WriteDefault(path); err != nil {
			log.Fatalf("init config: %v", err)
		}
		log.Printf("Wrote default config to %s", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *device != "" {
		cfg.Device.Address = *device
	}
	if *outDir != "" {
		cfg.Audio.CaptureDir = *outDir
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetLogLoggerLevel(config.ParseLogLevel(cfg.LogLevel))
	printBanner(cfg)

	adapter := ble.NewNativeAdapter()

	if *scan {
		runScan(adapter, cfg)
		return
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		go serveMetrics(cfg.MetricsAddr)
	}

	registry := link.NewRegistry(adapter, link.RegistryOptions{
		Session: link.Options{
			Profile:            frame.Profile(cfg.Link.Profile),
			RequestedChunkSize: cfg.Link.ChunkSize,
			BaseDelay:          cfg.BaseDelay(),
			Progress: func(sent, total int) {
				slog.Debug("[solari] stream progress", "sent", sent, "total", total)
			},
		},
	}, m)
	defer registry.CloseAll()

	addr := cfg.Device.Address
	if addr == "" {
		addr = pickDevice(adapter, cfg)
	}

	if err := adapter.Enable(); err != nil {
		log.Fatalf("BLE adapter: %v", err)
	}
	session, err := registry.Open(context.Background(), addr)
	if err != nil {
		log.Fatalf("Failed to open link to %s: %v", addr, err)
	}
	slog.Info("[solari] link ready", "addr", addr, "unit_size", session.UnitSize())

	if *cmdText != "" {
		if err := session.SendCommand(context.Background(), *cmdText); err != nil {
			log.Fatalf("Command send failed: %v", err)
		}
		slog.Info("[solari] command sent", "text", *cmdText)
	}

	switch {
	case *sendFile != "":
		clip, err := audio.LoadClip(*sendFile)
		if err != nil {
			log.Fatalf("Load clip: %v", err)
		}
		slog.Info("[solari] streaming clip", "path", *sendFile,
			"bytes", len(clip.Bytes), "duration", clip.Duration,
			"rate", clip.SampleRate, "bits", clip.BitDepth)
		if err := session.SendStream(context.Background(), clip.Bytes); err != nil {
			log.Fatalf("Stream send failed: %v", err)
		}

	case *tone:
		buf, err := audio.Tone(audio.DefaultToneSpec())
		if err != nil {
			log.Fatalf("Render tone: %v", err)
		}
		slog.Info("[solari] streaming test tone", "bytes", len(buf))
		if err := session.SendStream(context.Background(), buf); err != nil {
			log.Fatalf("Stream send failed: %v", err)
		}
	}

	if *listen {
		runListen(session, cfg)
		return
	}
}

// runScan prints every advertising Solari peripheral found within the
// scan window.
func runScan(adapter *ble.NativeAdapter, cfg *config.Config) {
	log.Printf("Scanning for glasses (%s)...", cfg.ScanTimeout())
	devices, err := ble.ScanForGlasses(adapter, cfg.ScanTimeout())
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(devices) == 0 {
		log.Println("No glasses found")
		return
	}
	for _, d := range devices {
		fmt.Printf("  %-20s %s (RSSI %d)\n", d.Name, d.Address, d.RSSI)
	}
}

// pickDevice scans and takes the first advertising glasses when no
// address is configured.
func pickDevice(adapter *ble.NativeAdapter, cfg *config.Config) string {
	log.Printf("No device configured, scanning (%s)...", cfg.ScanTimeout())
	devices, err := ble.ScanForGlasses(adapter, cfg.ScanTimeout())
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(devices) == 0 {
		log.Fatal("No glasses found; set device.address in the config or pass -device")
	}
	log.Printf("Using %s (%s)", devices[0].Name, devices[0].Address)
	return devices[0].Address
}

// runListen subscribes to the microphone characteristic and writes each
// completed inbound stream to a WAV file until interrupted.
func runListen(session *link.Session, cfg *config.Config) {
	if err := os.MkdirAll(cfg.Audio.CaptureDir, 0o755); err != nil {
		log.Fatalf("Capture directory: %v", err)
	}

	reassembler, err := link.NewReassembler(link.ReassemblerOptions{
		Profile:     frame.Profile(cfg.Link.Profile),
		IdleTimeout: cfg.ReassemblyTimeout(),
		OnStream: func(buf []byte) {
			path, err := saveCapture(cfg.Audio.CaptureDir, buf, int(cfg.Audio.SampleRate))
			if err != nil {
				slog.Error("[solari] saving capture", "error", err)
				return
			}
			slog.Info("[solari] capture saved", "path", path, "bytes", len(buf))
		},
		OnAbandon: func(err error) {
			slog.Warn("[solari] inbound stream dropped", "reason", err)
		},
		OnCommand: func(payload []byte) {
			slog.Info("[solari] glasses status", "text", string(payload))
		},
	}, nil)
	if err != nil {
		log.Fatalf("Reassembler: %v", err)
	}

	if err := session.Listen(reassembler.OnChunk); err != nil {
		log.Fatalf("Subscribe to microphone: %v", err)
	}
	log.Printf("Listening; captures go to %s. Ctrl+C to quit.", cfg.Audio.CaptureDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %s, shutting down...", sig)
}

// saveCapture writes one inbound stream to a uniquely named WAV file.
// Streams already WAV-encapsulated are written verbatim; raw PCM16 gets
// wrapped first.
func saveCapture(dir string, buf []byte, sampleRate int) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("stream-%s.wav", uuid.NewString()[:8]))

	data := buf
	if !audio.IsWAV(buf) {
		samples := make([]int16, len(buf)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		wrapped, err := audio.EncodePCM16(samples, sampleRate)
		if err != nil {
			return "", err
		}
		data = wrapped
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func serveMetrics(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("[solari] metrics endpoint", "error", err)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== solari ===")
	fmt.Printf("  Device:  %s\n", orUnset(cfg.Device.Address))
	fmt.Printf("  Link:    %s profile, %dB chunks, %dms pacing\n", cfg.Link.Profile, cfg.Link.ChunkSize, cfg.Link.BaseDelayMs)
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Metrics: %s\n", orUnset(cfg.MetricsAddr))
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("==============")
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
