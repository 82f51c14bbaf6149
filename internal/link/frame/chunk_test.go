package frame

import (
	"bytes"
	"testing"
)

func collect(buf []byte, unitSize, overhead int) [][]byte {
	var out [][]byte
	for c := range Chunks(buf, unitSize, overhead) {
		out = append(out, c)
	}
	return out
}

func TestChunksCoverage(t *testing.T) {
	buf := make([]byte, 1000)
	for i := range buf {
		buf[i] = byte(i)
	}

	tests := []struct {
		name     string
		unitSize int
		overhead int
	}{
		{"text profile unit", 183, 10},
		{"no overhead", 180, 0},
		{"binary header", 200, 3},
		{"minimum unit", 20, 10},
	}
	for _, tt := range tests {
		chunks := collect(buf, tt.unitSize, tt.overhead)

		var joined []byte
		for _, c := range chunks {
			if len(c) > tt.unitSize-tt.overhead {
				t.Errorf("%s: chunk of %d bytes exceeds payload bound %d", tt.name, len(c), tt.unitSize-tt.overhead)
			}
			joined = append(joined, c...)
		}
		if !bytes.Equal(joined, buf) {
			t.Errorf("%s: concatenated chunks differ from source buffer", tt.name)
		}
		if want := ChunkCount(len(buf), tt.unitSize, tt.overhead); len(chunks) != want {
			t.Errorf("%s: got %d chunks, ChunkCount says %d", tt.name, len(chunks), want)
		}
	}
}

// The worked scenario: 1000 bytes through a 183-byte unit with the
// 10-byte "AUDIO_DATA" header gives 173-byte payloads — five full chunks
// and a 135-byte tail.
func TestChunksScenario(t *testing.T) {
	buf := make([]byte, 1000)
	chunks := collect(buf, 183, 10)

	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
	for i := 0; i < 5; i++ {
		if len(chunks[i]) != 173 {
			t.Errorf("chunk %d length = %d, want 173", i, len(chunks[i]))
		}
	}
	if len(chunks[5]) != 135 {
		t.Errorf("final chunk length = %d, want 135", len(chunks[5]))
	}
}

func TestChunksSmallBuffer(t *testing.T) {
	chunks := collect([]byte{0x01, 0x02}, 183, 10)
	if len(chunks) != 1 || len(chunks[0]) != 2 {
		t.Fatalf("2-byte buffer: got %d chunks, want one 2-byte chunk", len(chunks))
	}
}

func TestChunksEmptyBuffer(t *testing.T) {
	if chunks := collect(nil, 183, 10); len(chunks) != 0 {
		t.Errorf("empty buffer yielded %d chunks, want 0", len(chunks))
	}
	if n := ChunkCount(0, 183, 10); n != 0 {
		t.Errorf("ChunkCount(0) = %d, want 0", n)
	}
}

func TestChunksSinglePass(t *testing.T) {
	buf := make([]byte, 500)
	n := 0
	for range Chunks(buf, 100, 0) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("early break consumed %d chunks, want 2", n)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		n, unit, overhead, want int
	}{
		{1000, 183, 10, 6},
		{173, 183, 10, 1},
		{174, 183, 10, 2},
		{1, 20, 10, 1},
		{0, 183, 10, 0},
		{100, 10, 10, 0}, // degenerate: no payload room
	}
	for _, tt := range tests {
		if got := ChunkCount(tt.n, tt.unit, tt.overhead); got != tt.want {
			t.Errorf("ChunkCount(%d, %d, %d) = %d, want %d", tt.n, tt.unit, tt.overhead, got, tt.want)
		}
	}
}
