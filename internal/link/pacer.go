package link

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// ProgressFunc receives cumulative payload-byte progress after each
// delivered chunk: (bytesSentSoFar, totalBytes).
type ProgressFunc func(sent, total int)

// pacer sequences chunk writes with inter-chunk delays so the glasses'
// receive buffer keeps up and playback stays pop-free. The delay is a
// best-effort heuristic, not acknowledgment-based flow control: it gives
// no guarantee the peripheral drained its buffer, only the statistical
// one baseDelay was tuned for.
type pacer struct {
	baseDelay time.Duration
	unitSize  int
}

// send writes each chunk through write (already framed by encode) in
// strict sequence order, reports progress after each write, and sleeps a
// delay proportional to the written unit's size before the next write.
// The final unit gets no trailing delay. On write failure it aborts
// immediately without retrying the failed chunk; the caller must not
// send an End marker after a failure. Cancellation is honored before
// every write and during every delay.
func (p pacer) send(ctx context.Context, write func([]byte) error, chunks iter.Seq[[]byte], total int, encode func([]byte) []byte, progress ProgressFunc) error {
	sent := 0
	var pending time.Duration
	for chunk := range chunks {
		if pending > 0 {
			if err := sleepCtx(ctx, pending); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		unit := encode(chunk)
		if err := write(unit); err != nil {
			return fmt.Errorf("%w: %w", ErrTransportWrite, err)
		}

		sent += len(chunk)
		if progress != nil {
			progress(sent, total)
		}

		// Partially filled final chunks wait proportionally less.
		pending = p.baseDelay * time.Duration(len(unit)) / time.Duration(p.unitSize)
	}
	return nil
}

// sleepCtx suspends for d or until ctx is cancelled, whichever is first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
