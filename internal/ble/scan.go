package ble

import (
	"context"
	"fmt"
	"time"
)

// ScanForGlasses scans for peripherals advertising the Solari audio
// service for up to timeout. Used by the CLIs' discovery path.
func ScanForGlasses(adapter Adapter, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan for glasses: %w", err)
	}
	return devices, nil
}
