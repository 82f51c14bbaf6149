package link

import "errors"

// Transport error taxonomy. All of these surface to the immediate
// caller; the transport never retries a failed write — retry and
// reconnect policy belongs to the application layer.
var (
	// ErrCharacteristicNotFound means the expected GATT service or
	// characteristic is absent on the peripheral. Fatal to Open.
	ErrCharacteristicNotFound = errors.New("link: characteristic not found")
	// ErrNotConnected means the peripheral reports disconnected at the
	// time of the operation.
	ErrNotConnected = errors.New("link: peripheral not connected")
	// ErrBusy means a send is already in progress on this session.
	ErrBusy = errors.New("link: send already in progress")
	// ErrCancelled means an in-flight send was aborted by Close or
	// context cancellation.
	ErrCancelled = errors.New("link: send cancelled")
	// ErrTransportWrite wraps a failed characteristic write; the
	// transport-specific cause is reachable through errors.Unwrap.
	ErrTransportWrite = errors.New("link: transport write failed")
	// ErrNotInitialized means the session was never opened.
	ErrNotInitialized = errors.New("link: session not initialized")

	// ErrStreamTimeout means an inbound stream went idle past the
	// reassembly window and was abandoned.
	ErrStreamTimeout = errors.New("link: inbound stream timed out")
	// ErrStreamAbandoned means a new Start marker displaced an inbound
	// stream that never saw its End marker.
	ErrStreamAbandoned = errors.New("link: inbound stream abandoned")
)
