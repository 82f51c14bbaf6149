// Package hotkey provides the global push-to-talk trigger for the
// intercom using gohook. In "hold" mode the talk window stays open
// while the key combo is held; in "toggle" mode each press flips it.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType marks the edges of a talk window.
type EventType int

const (
	// EventTalkStart opens the talk window (begin capturing).
	EventTalkStart EventType = iota
	// EventTalkStop closes the talk window (stop capturing and stream).
	EventTalkStop
)

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener watches a global key combo and emits talk-window events.
type Listener struct {
	keys []string
	mode string // "hold" or "toggle"
	ch   chan Event
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	talking bool // toggle mode: window currently open
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "t"]).
// mode must be "hold" or "toggle".
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys: keys,
		mode: mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives talk-window events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start hooks the global keyboard and blocks until Stop is called.
// Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		l.press()
	})
	if l.mode != "toggle" {
		hook.Register(hook.KeyUp, l.keys, func(e hook.Event) {
			l.release()
		})
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// press handles the key combo's down edge: hold mode opens the talk
// window, toggle mode flips it.
func (l *Listener) press() {
	if l.mode == "toggle" {
		l.mu.Lock()
		l.talking = !l.talking
		open := l.talking
		l.mu.Unlock()
		if open {
			l.emit(EventTalkStart)
		} else {
			l.emit(EventTalkStop)
		}
		return
	}
	l.emit(EventTalkStart)
}

// release handles the up edge; only hold mode registers for it.
func (l *Listener) release() {
	l.emit(EventTalkStop)
}

// emit delivers without blocking the hook goroutine; a full channel
// drops the event.
func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
