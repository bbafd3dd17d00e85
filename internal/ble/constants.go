package ble

import "time"

const (
	// DfuTargName is the name the bootloader advertises unless told otherwise
	DfuTargName = "DfuTarg"

	// DefaultScanTimeout bounds each scan for the target
	DefaultScanTimeout = 10 * time.Second

	// SettleDelay is slept after enabling indications and after triggering
	SettleDelay = time.Second

	// MinAddressLength is the shortest address prefix accepted
	MinAddressLength = 4
)
