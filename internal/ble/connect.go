package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"

	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned when the scan ends without a matching device
var ErrNotFound = errors.New("device not found")

var (
	enableOnce sync.Once
	enableErr  error
)

// Enable powers up the default adapter once per process.
func Enable() error {
	enableOnce.Do(func() {
		if err := preflight(); err != nil {
			enableErr = err
			return
		}
		if err := bluetooth.DefaultAdapter.Enable(); err != nil {
			enableErr = fmt.Errorf("failed to enable Bluetooth: %w", err)
		}
	})
	return enableErr
}

// Scan looks for the first advertisement accepted by m, giving up after
// timeout or when ctx is done.
func Scan(ctx context.Context, m Matcher, timeout time.Duration) (bluetooth.ScanResult, error) {
	if err := Enable(); err != nil {
		return bluetooth.ScanResult{}, err
	}
	adapter := bluetooth.DefaultAdapter

	logger.Info("ble", "scanning for %s (%s)...", m, timeout)

	var (
		mu     sync.Mutex
		result bluetooth.ScanResult
		found  bool
		seen   = map[string]bool{}
	)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		case <-stop:
			return
		}
		adapter.StopScan()
	}()

	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		mu.Lock()
		defer mu.Unlock()
		if found {
			return
		}

		address := r.Address.String()
		name := r.LocalName()
		if m.Match(address, name) {
			logger.Info("ble", "found: %s (%s) rssi %d", name, address, r.RSSI)
			result = r
			found = true
			a.StopScan()
			return
		}
		if !seen[address] {
			seen[address] = true
			logger.Debug("ble", "found: '%s' (%s) (not target)", name, address)
		}
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan error: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !found {
		if ctx.Err() != nil {
			return bluetooth.ScanResult{}, ctx.Err()
		}
		return bluetooth.ScanResult{}, fmt.Errorf("%w: %s within %s", ErrNotFound, m, timeout)
	}
	return result, nil
}

// Dial scans for the device accepted by m, connects to it and discovers its
// services.
func Dial(ctx context.Context, m Matcher, scanTimeout time.Duration) (*Link, error) {
	result, err := Scan(ctx, m, scanTimeout)
	if err != nil {
		return nil, err
	}

	address := result.Address.String()
	logger.Info("ble", "connecting to %s...", address)

	device, err := bluetooth.DefaultAdapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	logger.Info("ble", "connected to %s", address)

	link, err := newLink(device, address, result.LocalName())
	if err != nil {
		device.Disconnect()
		return nil, err
	}
	return link, nil
}
