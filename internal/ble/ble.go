// Package ble provides the peripheral-connection abstraction for Solari
// smart glasses: GATT UUID constants, the Adapter/Peripheral/
// Characteristic interfaces the link session composes on, and a
// production implementation on tinygo.org/x/bluetooth.
package ble

import "context"

// Solari glasses GATT profile.
const (
	// ServiceUUID identifies the glasses' audio service.
	ServiceUUID = "4fafc201-1fb5-459e-8fcc-c5c9c331914b"
	// SpeakerCharUUID is the write-without-response characteristic that
	// feeds the glasses speaker.
	SpeakerCharUUID = "beb5483e-36e1-4688-b7f5-ea07361b26a8"
	// MicCharUUID is the notify characteristic that streams glasses
	// microphone audio back to the host.
	MicCharUUID = "1c95d5e3-d8f7-413a-bf3d-7a2e5d7be87e"
)

// DefaultMTU is the BLE baseline MTU assumed when the stack cannot
// report the negotiated value.
const DefaultMTU = 23

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Write sends data to the characteristic (write without response).
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this
	// characteristic. The callback runs on the BLE stack's goroutine.
	Subscribe(callback func(data []byte)) error
	// MTU reports the negotiated connection MTU in bytes.
	MTU() (int, error)
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Peripheral represents an active connection to a peripheral.
type Peripheral interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Connected reports live connection status, not a cached flag.
	Connected() bool
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers peripherals advertising the given service UUID
	// until ctx is cancelled.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the peripheral at the given
	// address. On macOS the address is a CoreBluetooth UUID rather than
	// a MAC; callers treat it as an opaque string either way.
	Connect(ctx context.Context, addr string) (Peripheral, error)
}
