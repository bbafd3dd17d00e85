package commands

import (
	"context"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/ble"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu"
)

// Target is a connected device the engines can drive.
type Target interface {
	dfu.Transport
	Subscribe(service, char string, h func(service, char string, data []byte)) error
	Has(char string) bool
	Disconnect() error
}

// Dialer connects to the first device accepted by m.
type Dialer func(ctx context.Context, m ble.Matcher, scanTimeout time.Duration) (Target, error)

// DialBLE is the Dialer backed by the system Bluetooth adapter.
func DialBLE(ctx context.Context, m ble.Matcher, scanTimeout time.Duration) (Target, error) {
	link, err := ble.Dial(ctx, m, scanTimeout)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
