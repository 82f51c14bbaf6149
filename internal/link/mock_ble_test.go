package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solari-app/solari-link/internal/ble"
)

// fakeCharacteristic records writes and can fail on demand.
type fakeCharacteristic struct {
	mu         sync.Mutex
	writes     [][]byte
	callback   func([]byte)
	mtu        int
	mtuErr     error
	failOn     int // 1-based write index that fails; 0 = never
	writeDelay time.Duration
}

func (c *fakeCharacteristic) Write(data []byte) error {
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn > 0 && len(c.writes)+1 >= c.failOn {
		return fmt.Errorf("fake: write %d failed", len(c.writes)+1)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

func (c *fakeCharacteristic) MTU() (int, error) {
	if c.mtuErr != nil {
		return 0, c.mtuErr
	}
	return c.mtu, nil
}

// SimulateNotification delivers bytes to the subscriber.
func (c *fakeCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (c *fakeCharacteristic) writtenFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakePeripheral simulates a connected Solari peripheral.
type fakePeripheral struct {
	mu           sync.Mutex
	chars        map[string]*fakeCharacteristic // keyed by characteristic UUID
	connected    bool
	disconnectCb func()
}

func newFakePeripheral(mtu int) *fakePeripheral {
	return &fakePeripheral{
		chars: map[string]*fakeCharacteristic{
			ble.SpeakerCharUUID: {mtu: mtu},
			ble.MicCharUUID:     {mtu: mtu},
		},
		connected: true,
	}
}

func (p *fakePeripheral) DiscoverCharacteristic(_, charUUID string) (ble.Characteristic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.chars[charUUID]
	if !ok {
		return nil, fmt.Errorf("fake: characteristic %s not found", charUUID)
	}
	return c, nil
}

func (p *fakePeripheral) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePeripheral) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *fakePeripheral) OnDisconnect(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnectCb = cb
}

// SimulateDisconnect drops the link as if the glasses went out of range.
func (p *fakePeripheral) SimulateDisconnect() {
	p.mu.Lock()
	p.connected = false
	cb := p.disconnectCb
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (p *fakePeripheral) speaker() *fakeCharacteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chars[ble.SpeakerCharUUID]
}

func (p *fakePeripheral) mic() *fakeCharacteristic {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chars[ble.MicCharUUID]
}

// fakeAdapter hands out fake peripherals and counts connects.
type fakeAdapter struct {
	mu          sync.Mutex
	mtu         int
	connects    int
	failFirstN  int
	peripherals []*fakePeripheral
}

func (a *fakeAdapter) Enable() error { return nil }

func (a *fakeAdapter) Scan(context.Context, string) ([]ble.Device, error) {
	return nil, nil
}

func (a *fakeAdapter) Connect(context.Context, string) (ble.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if a.connects <= a.failFirstN {
		return nil, fmt.Errorf("fake: connect attempt %d refused", a.connects)
	}
	p := newFakePeripheral(a.mtu)
	a.peripherals = append(a.peripherals, p)
	return p, nil
}

func (a *fakeAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}
