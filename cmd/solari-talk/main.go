// Command solari-talk is a push-to-talk intercom: hold the hotkey,
// speak into the host microphone, release to stream the capture to the
// glasses speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/solari-app/solari-link/internal/audio"
	"github.com/solari-app/solari-link/internal/ble"
	"github.com/solari-app/solari-link/internal/config"
	"github.com/solari-app/solari-link/internal/hotkey"
	"github.com/solari-app/solari-link/internal/link"
	"github.com/solari-app/solari-link/internal/link/frame"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/solari-link/config.yaml)")
	device := flag.String("device", "", "peripheral address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *device != "" {
		cfg.Device.Address = *device
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	if cfg.Device.Address == "" {
		log.Fatal("No device configured; set device.address or pass -device")
	}

	slog.SetLogLoggerLevel(config.ParseLogLevel(cfg.LogLevel))
	printBanner(cfg)

	adapter := ble.NewNativeAdapter()
	if err := adapter.Enable(); err != nil {
		log.Fatalf("BLE adapter: %v", err)
	}

	registry := link.NewRegistry(adapter, link.RegistryOptions{
		Session: link.Options{
			Profile:            frame.Profile(cfg.Link.Profile),
			RequestedChunkSize: cfg.Link.ChunkSize,
			BaseDelay:          cfg.BaseDelay(),
		},
	}, nil)
	defer registry.CloseAll()

	log.Printf("Connecting to %s...", cfg.Device.Address)
	session, err := registry.Open(context.Background(), cfg.Device.Address)
	if err != nil {
		log.Fatalf("Failed to open link: %v", err)
	}
	log.Printf("Link ready (unit size %dB)", session.UnitSize())

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		log.Fatalf("Failed to initialize audio recorder: %v\n\nEnsure microphone access is granted.", err)
	}

	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.Mode)
	log.Printf("Hotkey listener ready (%s, mode: %s)", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go listener.Start()

	log.Println("Ready! Hold", strings.Join(cfg.Hotkey.Keys, "+"), "to talk. Ctrl+C to quit.")

	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Println("Hotkey listener stopped")
				recorder.Close()
				return
			}

			switch ev.Type {
			case hotkey.EventTalkStart:
				if err := recorder.Start(); err != nil {
					log.Printf("ERROR: failed to start recording: %v", err)
					continue
				}
				log.Println("Recording...")

			case hotkey.EventTalkStop:
				samples := recorder.Stop()
				if samples == nil {
					continue
				}

				duration := float64(len(samples)) / float64(cfg.Audio.SampleRate)
				log.Printf("Captured %.1fs of audio, streaming...", duration)

				// Encode and stream off the event loop so a long send
				// doesn't delay the next capture start.
				go func(samples []int16) {
					start := time.Now()
					buf, err := audio.EncodePCM16(samples, int(cfg.Audio.SampleRate))
					if err != nil {
						log.Printf("ERROR: encoding capture: %v", err)
						return
					}

					err = session.SendStream(context.Background(), buf)
					switch {
					case err == nil:
						log.Printf("Streamed %d bytes in %s", len(buf), time.Since(start).Round(time.Millisecond))
					case errors.Is(err, link.ErrBusy):
						log.Println("Previous stream still in flight, capture dropped")
					default:
						log.Printf("ERROR: stream send failed: %v", err)
					}
				}(samples)
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			if recorder.IsRecording() {
				recorder.Stop()
			}
			recorder.Close()
			registry.CloseAll()
			log.Println("Goodbye!")
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
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
	fmt.Println("=== solari-talk ===")
	fmt.Printf("  Device:  %s\n", cfg.Device.Address)
	fmt.Printf("  Hotkey:  %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Link:    %s profile, %dB chunks, %dms pacing\n", cfg.Link.Profile, cfg.Link.ChunkSize, cfg.Link.BaseDelayMs)
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Println("===================")
}
