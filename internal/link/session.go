// Package link implements the Solari BLE audio streaming transport: the
// link session that owns the peripheral connection, the pacer that
// sequences outbound chunk writes, the reassembler that reconstructs
// inbound microphone streams, and the registry that owns sessions at the
// composition root.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solari-app/solari-link/internal/ble"
	"github.com/solari-app/solari-link/internal/link/frame"
	"github.com/solari-app/solari-link/internal/metrics"
)

const (
	// attOverhead is the fixed ATT protocol header size consumed within
	// each MTU-sized packet.
	attOverhead = 3
	// minUnitSize is the smallest usable transmission unit (the BLE
	// baseline MTU of 23 minus ATT overhead).
	minUnitSize = 20
)

// State describes the session lifecycle.
type State int

const (
	// StateUninitialized means the session was never opened, or was closed.
	StateUninitialized State = iota
	// StateReady means the session is open and the peripheral reports
	// connected.
	StateReady
	// StateDisconnected means the session is open but the peripheral
	// dropped the connection. Terminal until reopened.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

// Options configures a Session.
type Options struct {
	// Profile selects the wire framing dialect.
	Profile frame.Profile
	// RequestedChunkSize caps the negotiated transmission unit size in
	// bytes regardless of MTU (glasses firmware buffers 180-200 bytes
	// per write comfortably).
	RequestedChunkSize int
	// BaseDelay is the inter-chunk pacing delay for a full-sized unit.
	BaseDelay time.Duration
	// Progress, when set, receives (bytesSentSoFar, totalBytes) after
	// each delivered chunk.
	Progress ProgressFunc
}

// DefaultOptions returns the settings tuned for current glasses firmware.
func DefaultOptions() Options {
	return Options{
		Profile:            frame.ProfileBinary,
		RequestedChunkSize: 200,
		BaseDelay:          20 * time.Millisecond,
	}
}

// Session owns one BLE connection to the glasses and provides the
// transport primitives: stream sends, command writes, and the inbound
// notification feed. A session has exactly one owner; a second send
// while one is in flight is rejected with ErrBusy rather than
// interleaving two streams' chunks.
type Session struct {
	codec   frame.Codec
	opts    Options
	metrics *metrics.Metrics

	mu         sync.Mutex
	peripheral ble.Peripheral
	speaker    ble.Characteristic
	mic        ble.Characteristic
	unitSize   int
	opened     bool
	sending    bool
	cancelSend context.CancelFunc
}

// NewSession creates an unopened session. m may be nil to run
// uninstrumented.
func NewSession(opts Options, m *metrics.Metrics) (*Session, error) {
	if opts.RequestedChunkSize <= 0 {
		opts.RequestedChunkSize = 200
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 20 * time.Millisecond
	}
	if opts.Profile == "" {
		opts.Profile = frame.ProfileBinary
	}
	codec, err := frame.New(opts.Profile)
	if err != nil {
		return nil, err
	}
	return &Session{codec: codec, opts: opts, metrics: m}, nil
}

// Open binds the session to a connected peripheral: resolves the speaker
// characteristic and negotiates the transmission unit size from the
// connection MTU. On failure no partial state is retained.
func (s *Session) Open(peripheral ble.Peripheral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return fmt.Errorf("%w: session already open", ErrBusy)
	}
	if !peripheral.Connected() {
		return ErrNotConnected
	}

	speaker, err := peripheral.DiscoverCharacteristic(ble.ServiceUUID, ble.SpeakerCharUUID)
	if err != nil {
		return fmt.Errorf("%w: speaker: %w", ErrCharacteristicNotFound, err)
	}

	mtu, err := speaker.MTU()
	if err != nil {
		slog.Warn("[link] MTU read failed, assuming BLE baseline", "error", err)
		mtu = ble.DefaultMTU
	}
	unitSize := clampUnit(mtu-attOverhead, minUnitSize, s.opts.RequestedChunkSize)

	s.peripheral = peripheral
	s.speaker = speaker
	s.unitSize = unitSize
	s.opened = true

	s.metrics.SessionOpened(unitSize)
	slog.Info("[link] session open", "mtu", mtu, "unit_size", unitSize, "profile", string(s.opts.Profile))
	return nil
}

// SendStream delivers buf as one framed audio stream: Start marker,
// paced Data chunks, End marker. It returns nil only if all three phases
// complete. A Data-phase failure returns without sending End, leaving
// the receiver's idle timeout to clean up — the transport never retries.
func (s *Session) SendStream(ctx context.Context, buf []byte) error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.sending {
		s.mu.Unlock()
		return ErrBusy
	}
	if !s.peripheral.Connected() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	sctx, cancel := context.WithCancel(ctx)
	s.sending = true
	s.cancelSend = cancel
	speaker := s.speaker
	unitSize := s.unitSize
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.cancelSend = nil
		s.mu.Unlock()
		cancel()
	}()

	streamID := uuid.NewString()
	started := time.Now()
	total := len(buf)
	slog.Debug("[link] stream send starting", "stream", streamID, "bytes", total,
		"chunks", frame.ChunkCount(total, unitSize, s.codec.Overhead()))

	err := s.writeMarker(sctx, speaker, s.codec.EncodeStart(total))
	if err == nil {
		p := pacer{baseDelay: s.opts.BaseDelay, unitSize: unitSize}
		prev := 0
		progress := func(sent, total int) {
			s.metrics.RecordChunkSent(sent - prev)
			prev = sent
			if s.opts.Progress != nil {
				s.opts.Progress(sent, total)
			}
		}
		err = p.send(sctx, speaker.Write, frame.Chunks(buf, unitSize, s.codec.Overhead()), total, s.codec.EncodeData, progress)
	}
	if err == nil {
		err = s.writeMarker(sctx, speaker, s.codec.EncodeEnd())
	}

	if err != nil {
		if errors.Is(err, ErrCancelled) {
			s.metrics.RecordStreamCancelled()
			slog.Warn("[link] stream send cancelled", "stream", streamID)
		} else {
			s.metrics.RecordStreamFailed()
			slog.Error("[link] stream send failed", "stream", streamID, "error", err)
		}
		return err
	}

	s.metrics.RecordStreamSent(time.Since(started).Seconds())
	slog.Info("[link] stream sent", "stream", streamID, "bytes", total,
		"duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// writeMarker performs one cancellation-checked boundary-marker write.
func (s *Session) writeMarker(ctx context.Context, c ble.Characteristic, marker []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := c.Write(marker); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportWrite, err)
	}
	return nil
}

// SendCommand writes a short control message outside the audio framing:
// a single best-effort write, no chunking, no pacing. It shares the
// session's one-send-at-a-time gate with SendStream.
func (s *Session) SendCommand(ctx context.Context, text string) error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.sending {
		s.mu.Unlock()
		return ErrBusy
	}
	if !s.peripheral.Connected() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.sending = true
	speaker := s.speaker
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := speaker.Write(s.codec.EncodeCommand([]byte(text))); err != nil {
		return fmt.Errorf("%w: %w", ErrTransportWrite, err)
	}
	slog.Debug("[link] command sent", "text", text)
	return nil
}

// Listen resolves the microphone characteristic on first use and
// subscribes handler to its notifications. The handler runs on the BLE
// stack's goroutine; feed it to a Reassembler's OnChunk, which is safe
// for that.
func (s *Session) Listen(handler func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return ErrNotInitialized
	}
	if s.mic == nil {
		mic, err := s.peripheral.DiscoverCharacteristic(ble.ServiceUUID, ble.MicCharUUID)
		if err != nil {
			return fmt.Errorf("%w: microphone: %w", ErrCharacteristicNotFound, err)
		}
		s.mic = mic
	}
	return s.mic.Subscribe(handler)
}

// Close aborts any in-flight send at its next suspension point (the
// in-flight caller observes ErrCancelled), best-effort disconnects, and
// releases the peripheral and characteristic handles. Closing a session
// that was never opened fails with ErrNotInitialized.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	cancel := s.cancelSend
	peripheral := s.peripheral
	s.opened = false
	s.peripheral = nil
	s.speaker = nil
	s.mic = nil
	s.unitSize = 0
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if peripheral.Connected() {
		if err := peripheral.Disconnect(); err != nil {
			slog.Warn("[link] disconnect on close failed", "error", err)
		}
	}
	s.metrics.SessionClosed()
	slog.Info("[link] session closed")
	return nil
}

// State reports the session lifecycle state. Readiness consults the live
// peripheral connection flag rather than cached state, so an external
// disconnect is observed here.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return StateUninitialized
	}
	if s.peripheral.Connected() {
		return StateReady
	}
	return StateDisconnected
}

// Ready reports whether the session can send right now.
func (s *Session) Ready() bool { return s.State() == StateReady }

// UnitSize returns the negotiated transmission unit size, or 0 before Open.
func (s *Session) UnitSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unitSize
}

// clampUnit bounds the MTU-derived unit size to [min, max].
func clampUnit(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
