package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solari-app/solari-link/internal/ble"
	"github.com/solari-app/solari-link/internal/metrics"
)

// RegistryOptions configures session dialing.
type RegistryOptions struct {
	// Session is applied to every session the registry creates.
	Session Options
	// ReconnectMax caps the Reopen backoff, in seconds (default 30).
	ReconnectMax int
	// ReconnectAttempts bounds Reopen retries (default 5).
	ReconnectAttempts int
}

// Registry owns at most one Session per peripheral address. It is
// created once at the composition root and handed to every stream
// consumer — voice assist, scene narration, and select-to-speak all
// contend for the one physical link, and this is the object they share.
// Reconnection is always an explicit Reopen call by a consumer, never an
// automatic behavior inside the transport.
type Registry struct {
	adapter ble.Adapter
	opts    RegistryOptions
	metrics *metrics.Metrics

	// mu serializes dialing as well as map access; there is one
	// physical radio, so concurrent dials have nothing to gain.
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a registry dialing through adapter. m may be nil.
func NewRegistry(adapter ble.Adapter, opts RegistryOptions, m *metrics.Metrics) *Registry {
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	return &Registry{
		adapter:  adapter,
		opts:     opts,
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Open returns the existing ready session for addr, or dials a new one.
// An existing session whose peripheral has dropped is closed and
// replaced.
func (r *Registry) Open(ctx context.Context, addr string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[addr]; ok {
		if s.Ready() {
			return s, nil
		}
		slog.Info("[link] replacing stale session", "addr", addr, "state", s.State().String())
		if err := s.Close(); err != nil && !errors.Is(err, ErrNotInitialized) {
			slog.Warn("[link] closing stale session", "error", err)
		}
		delete(r.sessions, addr)
	}

	s, err := r.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.sessions[addr] = s
	return s, nil
}

// Get returns the session for addr, or nil if none was dialed.
func (r *Registry) Get(addr string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[addr]
}

// Reopen closes any existing session for addr and redials with capped
// exponential backoff. Callers invoke this after observing
// ErrNotConnected; the transport itself never reconnects.
func (r *Registry) Reopen(ctx context.Context, addr string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[addr]; ok {
		if err := s.Close(); err != nil && !errors.Is(err, ErrNotInitialized) {
			slog.Warn("[link] closing session before reopen", "error", err)
		}
		delete(r.sessions, addr)
	}

	var lastErr error
	for attempt := 0; attempt < r.opts.ReconnectAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, r.opts.ReconnectMax)
			slog.Info("[link] reopen backoff", "addr", addr, "attempt", attempt+1, "delay", delay)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
		}

		s, err := r.dial(ctx, addr)
		if err != nil {
			lastErr = err
			slog.Warn("[link] reopen failed", "addr", addr, "attempt", attempt+1, "error", err)
			continue
		}
		r.sessions[addr] = s
		slog.Info("[link] reopened", "addr", addr, "attempt", attempt+1)
		return s, nil
	}
	return nil, fmt.Errorf("link: reopen %s: %w", addr, lastErr)
}

// CloseAll closes every owned session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, s := range r.sessions {
		if err := s.Close(); err != nil && !errors.Is(err, ErrNotInitialized) {
			slog.Warn("[link] close on shutdown", "addr", addr, "error", err)
		}
		delete(r.sessions, addr)
	}
}

// dial connects and opens a fresh session. Caller holds mu.
func (r *Registry) dial(ctx context.Context, addr string) (*Session, error) {
	peripheral, err := r.adapter.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("link: dial %s: %w", addr, err)
	}

	s, err := NewSession(r.opts.Session, r.metrics)
	if err != nil {
		peripheral.Disconnect()
		return nil, err
	}
	if err := s.Open(peripheral); err != nil {
		peripheral.Disconnect()
		return nil, err
	}
	return s, nil
}

// backoffDelay returns the reopen delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	delay := time.Duration(1<<uint(attempt)) * time.Second
	max := time.Duration(maxSeconds) * time.Second
	if delay > max {
		return max
	}
	return delay
}
