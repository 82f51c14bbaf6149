package audio

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Clip is a loadable outbound asset: the raw WAV file bytes plus the
// format metadata pulled from its header. The bytes are streamed to the
// glasses verbatim, WAV container included — the firmware parses the
// header itself.
type Clip struct {
	Bytes      []byte
	SampleRate int
	BitDepth   int
	Channels   int
	Duration   time.Duration
}

// LoadClip reads and validates a WAV file for streaming. The glasses
// speaker accepts mono 8- or 16-bit PCM only.
func LoadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open clip: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, fmt.Errorf("audio: %s is not a valid WAV file", path)
	}
	if d.NumChans != 1 {
		return nil, fmt.Errorf("audio: %s has %d channels, want mono", path, d.NumChans)
	}
	if d.BitDepth != 8 && d.BitDepth != 16 {
		return nil, fmt.Errorf("audio: %s is %d-bit, want 8 or 16", path, d.BitDepth)
	}

	duration, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("audio: clip duration: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("audio: rewind clip: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("audio: read clip: %w", err)
	}

	return &Clip{
		Bytes:      data,
		SampleRate: int(d.SampleRate),
		BitDepth:   int(d.BitDepth),
		Channels:   int(d.NumChans),
		Duration:   duration,
	}, nil
}
