package link

import (
	"log/slog"
	"sync"
	"time"

	"github.com/solari-app/solari-link/internal/link/frame"
	"github.com/solari-app/solari-link/internal/metrics"
)

// DefaultIdleTimeout is how long a half-open inbound stream may sit
// without a chunk before it is abandoned. An aborted sender never writes
// its End marker, so without this the receiver would wait forever.
const DefaultIdleTimeout = 5 * time.Second

// ReassemblerOptions configures an inbound stream reassembler.
type ReassemblerOptions struct {
	// Profile must match the sender's wire profile.
	Profile frame.Profile
	// IdleTimeout bounds the wait between chunks of an active stream;
	// zero means DefaultIdleTimeout.
	IdleTimeout time.Duration
	// OnStream receives each completed audio buffer. The slice is a
	// copy; the consumer owns it.
	OnStream func(buf []byte)
	// OnAbandon, when set, is notified with ErrStreamTimeout or
	// ErrStreamAbandoned when an active stream is dropped before its
	// End marker.
	OnAbandon func(err error)
	// OnCommand, when set, receives out-of-band command payloads
	// (ProfileBinary only; the text dialects have no inbound command
	// framing).
	OnCommand func(payload []byte)
}

// Reassembler reconstructs discrete audio streams from the raw chunks
// the glasses microphone characteristic delivers. Chunks arrive
// order-preserved with no gaps; there are no sequence numbers, so
// everything hangs on delivery order. At most one stream is active at a
// time: a Start while one is active abandons the prior stream and
// notifies, rather than silently dropping bytes.
type Reassembler struct {
	codec       frame.Codec
	idleTimeout time.Duration
	opts        ReassemblerOptions
	metrics     *metrics.Metrics

	mu        sync.Mutex
	pending   []byte
	active    bool
	expected  int // Start-embedded length hint, -1 if absent
	gen       int // bumped on every open/close/abandon transition
	lastChunk time.Time
	timer     *time.Timer
}

// NewReassembler creates a reassembler. m may be nil.
func NewReassembler(opts ReassemblerOptions, m *metrics.Metrics) (*Reassembler, error) {
	if opts.Profile == "" {
		opts.Profile = frame.ProfileBinary
	}
	codec, err := frame.New(opts.Profile)
	if err != nil {
		return nil, err
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Reassembler{
		codec:       codec,
		idleTimeout: idle,
		opts:        opts,
		metrics:     m,
	}, nil
}

// OnChunk consumes one received write. Safe to call from the BLE stack's
// notification goroutine. Completed buffers are handed to OnStream
// outside the reassembler lock.
func (r *Reassembler) OnChunk(p []byte) {
	f := r.codec.Decode(p)

	r.mu.Lock()
	var completed []byte
	var abandonErr error

	switch f.Kind {
	case frame.KindStart:
		if r.active {
			slog.Warn("[link] new stream displaced an active one", "pending_bytes", len(r.pending))
			abandonErr = ErrStreamAbandoned
			r.metrics.RecordInboundAbandoned()
		}
		r.pending = r.pending[:0]
		r.active = true
		r.expected = f.Total
		r.gen++
		r.lastChunk = time.Now()
		r.armTimerLocked()
		// Some dialects pack payload bytes into the same write as the
		// start marker.
		if len(f.Payload) > 0 {
			r.pending = append(r.pending, f.Payload...)
		}

	case frame.KindData, frame.KindUnknown:
		// Unknown bytes are raw continuation data belonging to the
		// active stream, never an error: a sentinel fragmented across
		// writes must not poison the stream.
		if !r.active {
			slog.Debug("[link] chunk with no active stream dropped", "bytes", len(p))
			break
		}
		r.pending = append(r.pending, f.Payload...)
		r.lastChunk = time.Now()

	case frame.KindEnd:
		if !r.active {
			slog.Debug("[link] end marker with no active stream dropped")
			break
		}
		if r.expected >= 0 && r.expected != len(r.pending) {
			// The embedded length is a diagnostic hint, never a reason
			// to reject the stream.
			slog.Warn("[link] stream length hint mismatch", "expected", r.expected, "got", len(r.pending))
		}
		completed = make([]byte, len(r.pending))
		copy(completed, r.pending)
		r.closeStreamLocked()
		r.metrics.RecordInboundStream(len(completed))

	case frame.KindCommand:
		if r.opts.OnCommand != nil {
			payload := make([]byte, len(f.Payload))
			copy(payload, f.Payload)
			r.mu.Unlock()
			r.opts.OnCommand(payload)
			r.mu.Lock()
		}
	}
	r.mu.Unlock()

	if abandonErr != nil && r.opts.OnAbandon != nil {
		r.opts.OnAbandon(abandonErr)
	}
	if completed != nil {
		slog.Info("[link] inbound stream complete", "bytes", len(completed))
		if r.opts.OnStream != nil {
			r.opts.OnStream(completed)
		}
	}
}

// Reset discards any active stream without notifying the consumer.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeStreamLocked()
}

// Active reports whether a stream is currently accumulating.
func (r *Reassembler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// closeStreamLocked clears the active buffer and invalidates the idle
// timer generation. Caller holds mu.
func (r *Reassembler) closeStreamLocked() {
	r.pending = r.pending[:0]
	r.active = false
	r.expected = -1
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// armTimerLocked starts the idle watchdog for the current stream
// generation. Caller holds mu.
func (r *Reassembler) armTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
	}
	gen := r.gen
	r.timer = time.AfterFunc(r.idleTimeout, func() { r.onIdle(gen) })
}

// onIdle fires from the watchdog timer. A generation mismatch means the
// stream it watched already ended or was displaced; a fresh chunk since
// arming means the stream is alive and the watchdog re-arms for the
// remaining window.
func (r *Reassembler) onIdle(gen int) {
	r.mu.Lock()
	if !r.active || r.gen != gen {
		r.mu.Unlock()
		return
	}
	if idle := time.Since(r.lastChunk); idle < r.idleTimeout {
		r.timer = time.AfterFunc(r.idleTimeout-idle, func() { r.onIdle(gen) })
		r.mu.Unlock()
		return
	}
	dropped := len(r.pending)
	r.closeStreamLocked()
	r.metrics.RecordInboundAbandoned()
	r.mu.Unlock()

	slog.Warn("[link] inbound stream timed out", "pending_bytes", dropped)
	if r.opts.OnAbandon != nil {
		r.opts.OnAbandon(ErrStreamTimeout)
	}
}
