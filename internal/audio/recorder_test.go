package audio

import (
	"testing"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Skipf("no audio backend available: %v", err)
	}
	return r
}

func TestNewRecorderAndClose(t *testing.T) {
	r := newTestRecorder(t)
	defer func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if r.sampleRate != 16000 {
		t.Errorf("sampleRate = %d, want 16000", r.sampleRate)
	}
	if r.channels != 1 {
		t.Errorf("channels = %d, want 1", r.channels)
	}
}

func TestRecorderNotRecordingByDefault(t *testing.T) {
	r := newTestRecorder(t)
	defer r.Close()

	if r.IsRecording() {
		t.Error("IsRecording() should be false after creation")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := newTestRecorder(t)
	defer r.Close()

	samples := r.Stop()
	if samples != nil {
		t.Errorf("Stop() without Start() should return nil, got %d samples", len(samples))
	}
}

func TestBytesToInt16(t *testing.T) {
	// 0x1234 little-endian, then -1 (0xFFFF).
	data := []byte{0x34, 0x12, 0xFF, 0xFF}
	samples := bytesToInt16(data, 2)

	if len(samples) != 2 {
		t.Fatalf("bytesToInt16() returned %d samples, want 2", len(samples))
	}
	if samples[0] != 0x1234 {
		t.Errorf("samples[0] = %d, want %d", samples[0], 0x1234)
	}
	if samples[1] != -1 {
		t.Errorf("samples[1] = %d, want -1", samples[1])
	}
}

func TestBytesToInt16Truncated(t *testing.T) {
	// Three bytes: one full sample and a dangling byte that must be
	// ignored rather than read past the slice.
	data := []byte{0x01, 0x00, 0x02}
	samples := bytesToInt16(data, 2)

	if len(samples) != 1 {
		t.Fatalf("bytesToInt16() returned %d samples, want 1", len(samples))
	}
	if samples[0] != 1 {
		t.Errorf("samples[0] = %d, want 1", samples[0])
	}
}
