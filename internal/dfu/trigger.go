package dfu

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

// Trigger switches a running application into its DFU bootloader through
// the Buttonless DFU characteristic: SetAdvName, then EnterBootloader.
type Trigger struct {
	endpoint
	advName string
	state   atomic.Int32
	running atomic.Bool
}

// NewTrigger creates a trigger that asks the bootloader to advertise as advName.
// Register Indicate with the transport before calling Run.
func NewTrigger(transport Transport, advName string, opts ...Option) *Trigger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	t := &Trigger{advName: advName}
	t.endpoint = endpoint{
		transport: transport,
		config:    cfg,
		prefix:    "trigger",
		inbound:   cfg.ButtonlessChar,
	}
	return t
}

// Indicate is the transport callback for buttonless indications.
func (t *Trigger) Indicate(service, char string, data []byte) {
	t.deliver(service, char, data)
}

// State returns the current state; safe from any goroutine.
func (t *Trigger) State() TriggerState {
	return TriggerState(t.state.Load())
}

// Char returns the buttonless characteristic this trigger writes to.
func (t *Trigger) Char() string {
	return t.inbound
}

func (t *Trigger) setState(s TriggerState) {
	logger.Debug(t.prefix, "%s -> %s", t.State(), s)
	t.state.Store(int32(s))
}

// Run performs the trigger sequence and blocks until it completes or fails.
func (t *Trigger) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return &TriggerError{Stage: t.State(), Err: ErrConcurrentWait}
	}
	defer t.running.Store(false)

	b, done := t.open()
	defer done()

	t.state.Store(int32(TriggerInit))
	var failure error
	for {
		state := t.State()
		var (
			next TriggerState
			err  error
		)
		switch state {
		case TriggerInit:
			next, err = t.sendAdvName(ctx, b)
		case TriggerAdvNameSent:
			next, err = t.awaitAdvName(ctx, b)
		case TriggerTriggered:
			next, err = t.awaitBootloader(ctx, b)
		case TriggerCompleted:
			logger.Info(t.prefix, "device entered bootloader, advertising as %q", t.advName)
			return nil
		case TriggerFailed:
			return failure
		default:
			panic(fmt.Sprintf("dfu: unhandled trigger state %d", state))
		}
		if err != nil {
			failure = &TriggerError{Stage: state, Err: err}
			next = TriggerFailed
		}
		t.setState(next)
	}
}

func (t *Trigger) sendAdvName(ctx context.Context, b *Bridge) (TriggerState, error) {
	pkt, err := protocol.SetAdvNamePacket(t.advName)
	if err != nil {
		return TriggerFailed, err
	}
	logger.Debug(t.prefix, "-> %s %q", protocol.ButtonlessSetAdvName, t.advName)
	if err := t.transport.WriteRequest(protocol.SecureDFUServiceUUID, t.inbound, pkt); err != nil {
		return TriggerFailed, fmt.Errorf("%w: %s: %w", ErrTransport, protocol.ButtonlessSetAdvName, err)
	}
	return TriggerAdvNameSent, nil
}

func (t *Trigger) awaitAdvName(ctx context.Context, b *Bridge) (TriggerState, error) {
	if err := t.await(ctx, b, protocol.ButtonlessSetAdvName); err != nil {
		return TriggerFailed, err
	}
	pkt := protocol.EnterBootloaderPacket()
	logger.Debug(t.prefix, "-> %s", protocol.ButtonlessEnterBootloader)
	if err := t.transport.WriteRequest(protocol.SecureDFUServiceUUID, t.inbound, pkt); err != nil {
		return TriggerFailed, fmt.Errorf("%w: %s: %w", ErrTransport, protocol.ButtonlessEnterBootloader, err)
	}
	return TriggerTriggered, nil
}

func (t *Trigger) awaitBootloader(ctx context.Context, b *Bridge) (TriggerState, error) {
	if err := t.await(ctx, b, protocol.ButtonlessEnterBootloader); err != nil {
		return TriggerFailed, err
	}
	return TriggerCompleted, nil
}

func (t *Trigger) await(ctx context.Context, b *Bridge, op protocol.ButtonlessOp) error {
	f, err := b.Await(ctx, t.config.Timeout)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	if err := protocol.Validate(f, op); err != nil {
		return classify(err)
	}
	return nil
}
