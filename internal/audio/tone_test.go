package audio

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestToneDefaultSpec(t *testing.T) {
	data, err := Tone(DefaultToneSpec())
	if err != nil {
		t.Fatalf("Tone() error = %v", err)
	}
	if !IsWAV(data) {
		t.Fatal("tone output lacks a RIFF/WAVE header")
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if !d.IsValidFile() {
		t.Fatal("decoder rejects tone output")
	}
	if d.NumChans != 1 || d.BitDepth != 8 || d.SampleRate != 8000 {
		t.Errorf("format = %dch/%dbit/%dHz, want 1ch/8bit/8000Hz", d.NumChans, d.BitDepth, d.SampleRate)
	}

	dur, err := d.Duration()
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if diff := dur - 3*time.Second; diff < -50*time.Millisecond || diff > 50*time.Millisecond {
		t.Errorf("duration = %v, want ~3s", dur)
	}
}

func TestTone16Bit(t *testing.T) {
	spec := DefaultToneSpec()
	spec.BitDepth = 16
	spec.Duration = 200 * time.Millisecond

	data, err := Tone(spec)
	if err != nil {
		t.Fatalf("Tone() error = %v", err)
	}

	d := wav.NewDecoder(bytes.NewReader(data))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error = %v", err)
	}
	if want := 8000 / 5; len(buf.Data) != want {
		t.Errorf("decoded %d samples, want %d", len(buf.Data), want)
	}

	// Fades start and end at silence; headroom keeps peaks under full scale.
	if buf.Data[0] != 0 {
		t.Errorf("first sample = %d, want 0 (fade-in)", buf.Data[0])
	}
	peak := 0
	for _, s := range buf.Data {
		if s > peak {
			peak = s
		}
		if -s > peak {
			peak = -s
		}
	}
	if peak > 27000 {
		t.Errorf("peak = %d, want <= ~0.8 of full scale", peak)
	}
	if peak == 0 {
		t.Error("tone is silent")
	}
}

func TestToneRejectsBadSpecs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ToneSpec)
	}{
		{"zero rate", func(s *ToneSpec) { s.SampleRate = 0 }},
		{"odd bit depth", func(s *ToneSpec) { s.BitDepth = 24 }},
		{"stereo", func(s *ToneSpec) { s.Channels = 2 }},
		{"zero duration", func(s *ToneSpec) { s.Duration = 0 }},
		{"zero fundamental", func(s *ToneSpec) { s.Fundamental = 0 }},
	}
	for _, tt := range tests {
		spec := DefaultToneSpec()
		tt.mutate(&spec)
		if _, err := Tone(spec); err == nil {
			t.Errorf("%s: Tone() should fail", tt.name)
		}
	}
}
