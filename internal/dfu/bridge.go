package dfu

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

// Bridge hands response frames from the transport goroutine to the engine.
// It holds at most one undelivered frame and admits at most one waiter.
type Bridge struct {
	slot   chan []byte
	waiter chan struct{}
	closed atomic.Bool
}

func newBridge() *Bridge {
	return &Bridge{
		slot:   make(chan []byte, 1),
		waiter: make(chan struct{}, 1),
	}
}

// Deliver stores a copy of raw for the waiter. It never blocks: a frame is
// dropped, and false returned, when one is already pending or the bridge is
// closed.
func (b *Bridge) Deliver(raw []byte) bool {
	if b.closed.Load() {
		return false
	}
	frame := append([]byte(nil), raw...)
	select {
	case b.slot <- frame:
		return true
	default:
		return false
	}
}

// Await blocks until a frame is delivered, timeout elapses or ctx is done.
// A zero timeout waits on ctx alone.
func (b *Bridge) Await(ctx context.Context, timeout time.Duration) (protocol.Frame, error) {
	select {
	case b.waiter <- struct{}{}:
	default:
		return protocol.Frame{}, ErrConcurrentWait
	}
	defer func() { <-b.waiter }()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case raw := <-b.slot:
		return protocol.Decode(raw)
	case <-expired:
		return protocol.Frame{}, ErrTimeout
	case <-ctx.Done():
		return protocol.Frame{}, ctx.Err()
	}
}

// discard drops a pending frame, returning it if there was one.
func (b *Bridge) discard() ([]byte, bool) {
	select {
	case raw := <-b.slot:
		return raw, true
	default:
		return nil, false
	}
}

func (b *Bridge) close() {
	b.closed.Store(true)
	b.discard()
}
