package dfu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/util"
)

// endpoint is the request/response plumbing shared by both engines. The
// bridge pointer is the only field the transport goroutine touches.
type endpoint struct {
	transport Transport
	config    Config
	prefix    string
	// inbound is the characteristic whose notifications are responses
	inbound string
	bridge  atomic.Pointer[Bridge]
}

// open installs a fresh bridge for one Run; the returned func retires it.
func (e *endpoint) open() (*Bridge, func()) {
	b := newBridge()
	e.bridge.Store(b)
	return b, func() {
		e.bridge.CompareAndSwap(b, nil)
		b.close()
	}
}

// deliver is called on the transport goroutine.
func (e *endpoint) deliver(service, char string, data []byte) {
	if !strings.EqualFold(service, protocol.SecureDFUServiceUUID) || !strings.EqualFold(char, e.inbound) {
		logger.Trace(e.prefix, "ignoring frame from %s/%s: %s", service, char, util.HexBytes(data))
		return
	}
	logger.Trace(e.prefix, "<- raw %s", util.HexBytes(data))

	b := e.bridge.Load()
	if b == nil {
		logger.Debug(e.prefix, "dropping frame outside run: %s", util.HexBytes(data))
		return
	}
	if !b.Deliver(data) {
		logger.Warn(e.prefix, "dropping frame, previous response not consumed: %s", util.HexBytes(data))
	}
}

// request writes pkt to char and waits for the response to op.
func request[O protocol.Op](ctx context.Context, e *endpoint, b *Bridge, char string, pkt []byte, op O) (protocol.Frame, error) {
	if stale, ok := b.discard(); ok {
		logger.Warn(e.prefix, "discarding unsolicited frame: %s", util.HexBytes(stale))
	}

	logger.Debug(e.prefix, "-> %s %s", op, util.HexBytes(pkt))
	if err := e.transport.WriteRequest(protocol.SecureDFUServiceUUID, char, pkt); err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}

	f, err := b.Await(ctx, e.config.Timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return protocol.Frame{}, fmt.Errorf("%s: %w", op, err)
		}
		return protocol.Frame{}, classify(err)
	}
	logger.Debug(e.prefix, "<- %s status 0x%02X payload %s", op, f.Status, util.HexBytes(f.Payload))

	if err := protocol.Validate(f, op); err != nil {
		return f, classify(err)
	}
	return f, nil
}
