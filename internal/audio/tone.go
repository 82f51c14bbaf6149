package audio

import (
	"fmt"
	"io"
	"math"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ToneSpec describes a diagnostic test tone. The defaults reproduce the
// clean 8 kHz bring-up tone the glasses firmware was tuned against: an
// A3 fundamental with three soft harmonics, gentle vibrato, and faded
// edges so constrained hardware plays it without clicks or static.
type ToneSpec struct {
	SampleRate  int
	BitDepth    int // 8 or 16
	Channels    int
	Duration    time.Duration
	Fundamental float64 // Hz
}

// DefaultToneSpec matches the original bring-up asset: 8000 Hz, 8-bit,
// mono, 3 seconds, A3 (220 Hz).
func DefaultToneSpec() ToneSpec {
	return ToneSpec{
		SampleRate:  8000,
		BitDepth:    8,
		Channels:    1,
		Duration:    3 * time.Second,
		Fundamental: 220.0,
	}
}

// Tone renders the spec to an in-memory WAV buffer ready for SendStream.
func Tone(spec ToneSpec) ([]byte, error) {
	var ws memWriteSeeker
	if err := WriteTone(&ws, spec); err != nil {
		return nil, err
	}
	return ws.Bytes(), nil
}

// WriteTone renders the spec through the wav encoder into w.
func WriteTone(w io.WriteSeeker, spec ToneSpec) error {
	if spec.SampleRate <= 0 {
		return fmt.Errorf("audio: tone sample rate must be > 0")
	}
	if spec.BitDepth != 8 && spec.BitDepth != 16 {
		return fmt.Errorf("audio: tone bit depth must be 8 or 16, got %d", spec.BitDepth)
	}
	if spec.Channels != 1 {
		return fmt.Errorf("audio: tone is mono only, got %d channels", spec.Channels)
	}
	if spec.Duration <= 0 {
		return fmt.Errorf("audio: tone duration must be > 0")
	}
	if spec.Fundamental <= 0 {
		return fmt.Errorf("audio: tone fundamental must be > 0")
	}

	n := int(float64(spec.SampleRate) * spec.Duration.Seconds())
	samples := make([]float64, n)

	// Clean harmonic series: strong fundamental, octave, fifth, double
	// octave. Harsh overtones read as static on the glasses speaker.
	for i := range samples {
		t := float64(i) / float64(spec.SampleRate)
		s := 0.6*math.Sin(2*math.Pi*spec.Fundamental*t) +
			0.3*math.Sin(2*math.Pi*spec.Fundamental*2*t) +
			0.15*math.Sin(2*math.Pi*spec.Fundamental*3*t) +
			0.075*math.Sin(2*math.Pi*spec.Fundamental*4*t)
		// 4 Hz vibrato keeps the tone from sounding sterile.
		samples[i] = s * (1.0 + 0.1*math.Sin(2*math.Pi*4.0*t))
	}

	// 100 ms fades prevent clicks at the stream edges.
	fade := spec.SampleRate / 10
	if fade > n/2 {
		fade = n / 2
	}
	for i := 0; i < fade; i++ {
		g := float64(i) / float64(fade)
		samples[i] *= g
		samples[n-1-i] *= g
	}

	// Normalize with headroom; full scale distorts on the peripheral DAC.
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak > 0 {
		scale := 0.8 / peak
		for i := range samples {
			samples[i] *= scale
		}
	}

	data := make([]int, n)
	switch spec.BitDepth {
	case 8:
		// 8-bit WAV is unsigned, midpoint 128.
		for i, s := range samples {
			v := math.Round((s + 1.0) * 127.5)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			data[i] = int(v)
		}
	case 16:
		for i, s := range samples {
			data[i] = int(math.Round(s * 32767))
		}
	}

	enc := wav.NewEncoder(w, spec.SampleRate, spec.BitDepth, spec.Channels, 1)
	err := enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: spec.Channels, SampleRate: spec.SampleRate},
		SourceBitDepth: spec.BitDepth,
		Data:           data,
	})
	if err != nil {
		return fmt.Errorf("audio: encode tone: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize tone: %w", err)
	}
	return nil
}
