package firmware

import "fmt"

// Kind is a manifest entry name in a Nordic DFU package.
type Kind string

const (
	KindApplication          Kind = "application"
	KindSoftDeviceBootloader Kind = "softdevice_bootloader"
	KindBootloader           Kind = "bootloader"
	KindSoftDevice           Kind = "softdevice"
)

// DefaultOrder is the preference used when no kind is requested.
var DefaultOrder = []Kind{KindApplication, KindSoftDeviceBootloader, KindBootloader, KindSoftDevice}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range DefaultOrder {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown package kind %q", s)
}

// Entry is one image described by manifest.json.
type Entry struct {
	BinFile string `json:"bin_file"`
	DatFile string `json:"dat_file"`
}

// Manifest is the parsed manifest.json of a DFU package.
type Manifest struct {
	Manifest struct {
		Application          *Entry `json:"application,omitempty"`
		SoftDeviceBootloader *Entry `json:"softdevice_bootloader,omitempty"`
		Bootloader           *Entry `json:"bootloader,omitempty"`
		SoftDevice           *Entry `json:"softdevice,omitempty"`
	} `json:"manifest"`
}

// Entry returns the manifest entry for kind, or nil.
func (m *Manifest) Entry(kind Kind) *Entry {
	switch kind {
	case KindApplication:
		return m.Manifest.Application
	case KindSoftDeviceBootloader:
		return m.Manifest.SoftDeviceBootloader
	case KindBootloader:
		return m.Manifest.Bootloader
	case KindSoftDevice:
		return m.Manifest.SoftDevice
	default:
		return nil
	}
}

// Kinds lists the entries present, in DefaultOrder.
func (m *Manifest) Kinds() []Kind {
	var kinds []Kind
	for _, k := range DefaultOrder {
		if m.Entry(k) != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Package is one image extracted from a DFU zip, ready to transfer.
type Package struct {
	Path       string
	Kind       Kind
	Entry      Entry
	InitPacket []byte
	Firmware   []byte
	Manifest   Manifest
}

// Size returns the number of bytes the transfer will send.
func (p *Package) Size() int {
	return len(p.InitPacket) + len(p.Firmware)
}
