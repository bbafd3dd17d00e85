package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/ble"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/display"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/firmware"
)

// Info prints what a DFU package contains without touching any device.
func Info(out io.Writer, path string, kind firmware.Kind) error {
	pkg, err := firmware.Open(path, kind)
	if err != nil {
		return fmt.Errorf("failed to load package: %w", err)
	}

	kinds := make([]string, 0, 4)
	for _, k := range pkg.Manifest.Kinds() {
		kinds = append(kinds, string(k))
	}

	display.Summary(out, "Package", []display.Field{
		{Label: "File", Value: pkg.Path},
		{Label: "Images", Value: strings.Join(kinds, ", ")},
		{Label: "Selected", Value: string(pkg.Kind)},
		{Label: "Init packet", Value: fmt.Sprintf("%s (%d bytes)", pkg.Entry.DatFile, len(pkg.InitPacket))},
		{Label: "Firmware", Value: fmt.Sprintf("%s (%d bytes)", pkg.Entry.BinFile, len(pkg.Firmware))},
		{Label: "Digest", Value: pkg.Digest()},
	})
	return nil
}

// Explore connects to the device at address and lists its services and
// the Secure DFU characteristics it exposes.
func Explore(ctx context.Context, out io.Writer, address string, scanTimeout time.Duration) error {
	if err := ble.ValidateAddress(address); err != nil {
		return err
	}
	link, err := ble.Dial(ctx, ble.ByAddress(address), scanTimeout)
	if err != nil {
		return err
	}
	defer link.Disconnect()

	services := link.Services()
	uuids := make([]string, 0, len(services))
	for svc := range services {
		uuids = append(uuids, svc)
	}
	sort.Strings(uuids)

	fields := []display.Field{
		{Label: "Address", Value: link.Address},
		{Label: "Name", Value: link.Name},
		{Label: "MTU", Value: fmt.Sprint(link.MTU())},
	}
	for _, svc := range uuids {
		fields = append(fields, display.Field{Label: "Service", Value: svc})
		for _, char := range services[svc] {
			fields = append(fields, display.Field{Label: "", Value: "  " + char})
		}
	}
	display.Summary(out, "Device", fields)
	return nil
}
