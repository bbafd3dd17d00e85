package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/ble"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/config"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/display"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/firmware"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

// Options configures a DFU run.
type Options struct {
	Address string
	Package string
	Kind    firmware.Kind
	AdvName string

	ScanTimeout     time.Duration
	Timeout         time.Duration
	PRN             uint16
	ChunkSize       int
	ChecksumRetries int
	SkipTrigger     bool
	Bonded          bool

	// Settle is slept after enabling indications and after the trigger
	Settle time.Duration

	Dial Dialer
	Out  io.Writer
}

func (o *Options) defaults() {
	if o.AdvName == "" {
		o.AdvName = ble.DfuTargName
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = ble.DefaultScanTimeout
	}
	if o.Dial == nil {
		o.Dial = DialBLE
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
}

func (o *Options) engineOptions() []dfu.Option {
	opts := []dfu.Option{
		dfu.WithTimeout(o.Timeout),
		dfu.WithPRN(o.PRN),
		dfu.WithChecksumRetries(o.ChecksumRetries),
	}
	if o.ChunkSize > 0 {
		opts = append(opts, dfu.WithChunkSize(o.ChunkSize))
	}
	return opts
}

// DFU updates the device at opts.Address with the image in opts.Package:
// trigger the bootloader, reconnect to it by name, then transfer.
func DFU(ctx context.Context, opts Options) error {
	opts.defaults()

	if !opts.SkipTrigger {
		if err := ble.ValidateAddress(opts.Address); err != nil {
			return err
		}
	}

	pkg, err := firmware.Open(opts.Package, opts.Kind)
	if err != nil {
		return fmt.Errorf("failed to load package: %w", err)
	}

	session := uuid.NewString()
	logger.Info("dfu", "session %s: %s image, %d byte init packet, %d byte firmware",
		session, pkg.Kind, len(pkg.InitPacket), len(pkg.Firmware))

	if opts.SkipTrigger {
		config.Debugf("skipping trigger, expecting %q to be advertising", opts.AdvName)
	} else if err := trigger(ctx, opts); err != nil {
		display.Failure(opts.Out, "DFU trigger failed: %v", err)
		return fmt.Errorf("trigger failed: %w", err)
	}

	state, err := transfer(ctx, opts, pkg)
	if err != nil {
		display.Failure(opts.Out, "DFU Not Successful finished with state: %s", state)
		return fmt.Errorf("transfer failed: %w", err)
	}

	display.Success(opts.Out, "DFU Successful")
	display.Summary(opts.Out, "Update", []display.Field{
		{Label: "Session", Value: session},
		{Label: "Target", Value: opts.AdvName},
		{Label: "Image", Value: fmt.Sprintf("%s (%d bytes)", pkg.Kind, len(pkg.Firmware))},
		{Label: "Digest", Value: firmware.ShortHash(pkg.Digest())},
		{Label: "State", Value: state.String()},
	})
	return nil
}

// Trigger only switches the device at opts.Address into its bootloader.
func Trigger(ctx context.Context, opts Options) error {
	opts.defaults()
	if err := ble.ValidateAddress(opts.Address); err != nil {
		return err
	}
	if err := trigger(ctx, opts); err != nil {
		display.Failure(opts.Out, "DFU trigger failed: %v", err)
		return err
	}
	display.Success(opts.Out, "Device is advertising as %q", opts.AdvName)
	return nil
}

func trigger(ctx context.Context, opts Options) error {
	display.Status(opts.Out, "Looking for %s...", ble.NormalizeAddress(opts.Address))
	target, err := opts.Dial(ctx, ble.ByAddress(opts.Address), opts.ScanTimeout)
	if err != nil {
		return err
	}
	defer target.Disconnect()

	engineOpts := opts.engineOptions()
	if opts.Bonded || (!target.Has(protocol.ButtonlessCharUUID) && target.Has(protocol.ButtonlessBondedCharUUID)) {
		engineOpts = append(engineOpts, dfu.WithBondedButtonless())
	}
	trig := dfu.NewTrigger(target, opts.AdvName, engineOpts...)

	if err := target.Subscribe(protocol.SecureDFUServiceUUID, trig.Char(), trig.Indicate); err != nil {
		return fmt.Errorf("failed to enable indications: %w", err)
	}
	if err := sleep(ctx, opts.Settle); err != nil {
		return err
	}

	display.Status(opts.Out, "Entering bootloader...")
	if err := trig.Run(ctx); err != nil {
		return err
	}

	// let the indication confirmation reach the device before dropping the link
	return sleep(ctx, opts.Settle)
}

func transfer(ctx context.Context, opts Options, pkg *firmware.Package) (dfu.TransferState, error) {
	display.Status(opts.Out, "Looking for %q...", opts.AdvName)
	target, err := opts.Dial(ctx, ble.ByName(opts.AdvName), opts.ScanTimeout)
	if err != nil {
		return dfu.StateIdle, err
	}
	defer target.Disconnect()

	bar := display.NewProgress(opts.Out)
	engineOpts := append(opts.engineOptions(), dfu.WithProgress(bar.Update))
	tr := dfu.NewTransfer(target, pkg.InitPacket, pkg.Firmware, engineOpts...)

	if err := target.Subscribe(protocol.SecureDFUServiceUUID, protocol.ControlPointCharUUID, tr.Notify); err != nil {
		return dfu.StateIdle, fmt.Errorf("failed to enable notifications: %w", err)
	}

	state, err := tr.Run(ctx)
	bar.Done()
	if err != nil {
		var te *dfu.TransferError
		if errors.As(err, &te) {
			logger.Error("dfu", "%s object failed in %s at offset %d", te.Object, te.State, te.Offset)
		}
		return state, err
	}
	return state, nil
}
