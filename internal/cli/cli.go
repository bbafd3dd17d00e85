package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/ble"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/commands"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/config"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/firmware"
)

// CLI is the root command structure for nrfdfu.
type CLI struct {
	Verbose  int    `short:"v" type:"counter" help:"Increase log verbosity (-v debug, -vv trace)"`
	LogLevel string `name:"log-level" help:"Explicit log level (trace, debug, info, warn, error)"`

	// Default command - full update
	Dfu DfuCmd `cmd:"" default:"withargs" help:"Trigger the bootloader and flash a DFU package (default)"`

	Trigger TriggerCmd `cmd:"" help:"Only switch the device into its DFU bootloader"`
	Info    InfoCmd    `cmd:"" help:"Show the contents of a DFU package"`
	Explore ExploreCmd `cmd:"" help:"List the services of a device"`
}

func (c *CLI) apply() {
	config.Apply(c.Verbose, c.LogLevel)
}

// LinkFlags are shared by commands that talk to a device.
type LinkFlags struct {
	Timeout     time.Duration `default:"10s" help:"Timeout for each device response"`
	ScanTimeout time.Duration `name:"scan-timeout" default:"10s" help:"Timeout for each scan"`
	AdvName     string        `name:"adv-name" default:"DfuTarg" help:"Name the bootloader advertises"`
	Bonded      bool          `help:"Use the bonded buttonless characteristic"`
}

func (f LinkFlags) options() commands.Options {
	return commands.Options{
		AdvName:     f.AdvName,
		Timeout:     f.Timeout,
		ScanTimeout: f.ScanTimeout,
		Bonded:      f.Bonded,
		Settle:      ble.SettleDelay,
		Out:         os.Stdout,
	}
}

// --- DFU Command ---

type DfuCmd struct {
	Address string `arg:"" help:"Device address or address prefix (at least 4 hex digits)"`
	Package string `arg:"" type:"existingfile" help:"Nordic DFU package (.zip)"`

	LinkFlags `embed:""`

	PRN             uint16 `name:"prn" default:"10" help:"Packets between checksum requests (0 checksums once per object)"`
	ChunkSize       int    `name:"chunk-size" default:"0" help:"Cap on packet size in bytes (0 derives it from the MTU)"`
	ChecksumRetries int    `name:"checksum-retries" default:"0" help:"Resends allowed when the device reports a short offset"`
	Kind            string `help:"Image to flash from the package (application, bootloader, softdevice, softdevice_bootloader)"`
	SkipTrigger     bool   `name:"skip-trigger" help:"Device already advertises as --adv-name"`
}

func (c *DfuCmd) Run(globals *CLI) error {
	globals.apply()

	k, err := kind(c.Kind)
	if err != nil {
		return err
	}

	opts := c.options()
	opts.Address = c.Address
	opts.Package = c.Package
	opts.Kind = k
	opts.PRN = c.PRN
	opts.ChunkSize = c.ChunkSize
	opts.ChecksumRetries = c.ChecksumRetries
	opts.SkipTrigger = c.SkipTrigger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return commands.DFU(ctx, opts)
}

// --- Trigger Command ---

type TriggerCmd struct {
	Address string `arg:"" help:"Device address or address prefix"`

	LinkFlags `embed:""`
}

func (c *TriggerCmd) Run(globals *CLI) error {
	globals.apply()
	opts := c.options()
	opts.Address = c.Address

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return commands.Trigger(ctx, opts)
}

// --- Info Command ---

type InfoCmd struct {
	Package string `arg:"" type:"existingfile" help:"Nordic DFU package (.zip)"`
	Kind    string `help:"Image to describe"`
}

func (c *InfoCmd) Run(globals *CLI) error {
	globals.apply()
	k, err := kind(c.Kind)
	if err != nil {
		return err
	}
	return commands.Info(os.Stdout, c.Package, k)
}

// --- Explore Command ---

type ExploreCmd struct {
	Address     string        `arg:"" help:"Device address or address prefix"`
	ScanTimeout time.Duration `name:"scan-timeout" default:"10s" help:"Timeout for the scan"`
}

func (c *ExploreCmd) Run(globals *CLI) error {
	globals.apply()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return commands.Explore(ctx, os.Stdout, c.Address, c.ScanTimeout)
}

// kind maps an empty flag to "first image in the package".
func kind(s string) (firmware.Kind, error) {
	if s == "" {
		return "", nil
	}
	return firmware.ParseKind(s)
}
