package link

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/solari-app/solari-link/internal/link/frame"
)

func identityEncode(p []byte) []byte { return p }

func TestPacerWritesEveryChunkInOrder(t *testing.T) {
	buf := make([]byte, 1000)
	for i := range buf {
		buf[i] = byte(i)
	}

	var writes [][]byte
	write := func(p []byte) error {
		writes = append(writes, append([]byte(nil), p...))
		return nil
	}

	var progress [][2]int
	p := pacer{baseDelay: time.Millisecond, unitSize: 183}
	err := p.send(context.Background(), write, frame.Chunks(buf, 183, 10), len(buf),
		identityEncode, func(sent, total int) { progress = append(progress, [2]int{sent, total}) })
	if err != nil {
		t.Fatalf("send() error = %v", err)
	}

	if len(writes) != 6 {
		t.Fatalf("got %d writes, want 6", len(writes))
	}
	var joined []byte
	for _, w := range writes {
		joined = append(joined, w...)
	}
	if len(joined) != len(buf) {
		t.Fatalf("delivered %d bytes, want %d", len(joined), len(buf))
	}
	for i := range joined {
		if joined[i] != buf[i] {
			t.Fatalf("byte %d reordered or corrupted", i)
		}
	}

	// Progress is monotonically non-decreasing and ends at (L, L).
	want := [][2]int{{173, 1000}, {346, 1000}, {519, 1000}, {692, 1000}, {865, 1000}, {1000, 1000}}
	if len(progress) != len(want) {
		t.Fatalf("got %d progress reports, want %d", len(progress), len(want))
	}
	for i, pr := range progress {
		if pr != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, pr, want[i])
		}
	}
}

func TestPacerAbortsOnWriteFailure(t *testing.T) {
	buf := make([]byte, 1000)
	writes := 0
	write := func(p []byte) error {
		writes++
		if writes == 3 {
			return fmt.Errorf("peripheral gone")
		}
		return nil
	}

	p := pacer{baseDelay: time.Millisecond, unitSize: 183}
	err := p.send(context.Background(), write, frame.Chunks(buf, 183, 10), len(buf), identityEncode, nil)
	if !errors.Is(err, ErrTransportWrite) {
		t.Fatalf("send() error = %v, want ErrTransportWrite", err)
	}
	if writes != 3 {
		t.Errorf("pacer retried after failure: %d writes, want 3", writes)
	}
}

func TestPacerHonorsCancellation(t *testing.T) {
	buf := make([]byte, 10000)
	ctx, cancel := context.WithCancel(context.Background())

	writes := 0
	write := func(p []byte) error {
		writes++
		if writes == 2 {
			cancel()
		}
		return nil
	}

	p := pacer{baseDelay: 50 * time.Millisecond, unitSize: 183}
	start := time.Now()
	err := p.send(ctx, write, frame.Chunks(buf, 183, 10), len(buf), identityEncode, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("send() error = %v, want ErrCancelled", err)
	}
	if writes > 2 {
		t.Errorf("pacer kept writing after cancellation: %d writes", writes)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancellation took %v; should abort at the next suspension point", elapsed)
	}
}

func TestPacerScalesDelayToUnitSize(t *testing.T) {
	// Two full chunks and a half chunk: two inter-chunk delays, with the
	// second scaled down by the short unit. No trailing delay after the
	// final chunk.
	buf := make([]byte, 250)
	write := func(p []byte) error { return nil }

	p := pacer{baseDelay: 40 * time.Millisecond, unitSize: 100}
	start := time.Now()
	if err := p.send(context.Background(), write, frame.Chunks(buf, 100, 0), len(buf), identityEncode, nil); err != nil {
		t.Fatalf("send() error = %v", err)
	}
	elapsed := time.Since(start)

	// Expected pacing: 40ms after chunk 1, 40ms after chunk 2, none
	// after the 50-byte tail.
	if elapsed < 70*time.Millisecond {
		t.Errorf("elapsed %v, want at least ~80ms of pacing", elapsed)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("elapsed %v, trailing delay after the final chunk?", elapsed)
	}
}
