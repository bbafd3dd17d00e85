package ble

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/config"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/util"

	"tinygo.org/x/bluetooth"
)

// ErrNoCharacteristic is returned for characteristics the device does not expose
var ErrNoCharacteristic = errors.New("characteristic not found")

// requestWriter and mtuReader are implemented by the platform
// characteristic types that support them.
type requestWriter interface {
	Write(p []byte) (int, error)
}

type mtuReader interface {
	GetMTU() (uint16, error)
}

// Link is a connected peripheral exposing the Secure DFU service. It
// implements dfu.Transport and dfu.MTUProvider.
type Link struct {
	Address string
	Name    string

	device bluetooth.Device
	// chars holds Secure DFU characteristics keyed by uppercase UUID
	chars    map[string]*bluetooth.DeviceCharacteristic
	services map[string][]string
	mtu      int

	mu         sync.Mutex
	subscribed map[string]bool
}

func key(uuid string) string {
	return strings.ToUpper(uuid)
}

func newLink(device bluetooth.Device, address, name string) (*Link, error) {
	config.Debugf("Discovering services...")

	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	l := &Link{
		Address:    address,
		Name:       name,
		device:     device,
		chars:      map[string]*bluetooth.DeviceCharacteristic{},
		services:   map[string][]string{},
		mtu:        protocol.DefaultATTMTU,
		subscribed: map[string]bool{},
	}

	for i := range services {
		svcUUID := key(services[i].UUID().String())
		chars, err := services[i].DiscoverCharacteristics(nil)
		if err != nil {
			logger.Warn("ble", "failed to discover characteristics of %s: %v", svcUUID, err)
			continue
		}
		for j := range chars {
			charUUID := key(chars[j].UUID().String())
			l.services[svcUUID] = append(l.services[svcUUID], charUUID)
			if svcUUID == key(protocol.SecureDFUServiceUUID) {
				l.chars[charUUID] = &chars[j]
				config.Debugf("Found DFU characteristic: %s", charUUID)
			}
		}
	}

	if len(l.chars) == 0 {
		return nil, fmt.Errorf("secure DFU service %s not found on %s", protocol.SecureDFUServiceUUID, address)
	}

	for _, uuid := range []string{protocol.ControlPointCharUUID, protocol.ButtonlessCharUUID, protocol.ButtonlessBondedCharUUID} {
		c, ok := l.chars[key(uuid)]
		if !ok {
			continue
		}
		if r, ok := any(c).(mtuReader); ok {
			if mtu, err := r.GetMTU(); err == nil && mtu > 0 {
				l.mtu = int(mtu)
			}
		}
		break
	}
	logger.Debug("ble", "ATT MTU %d", l.mtu)
	return l, nil
}

func (l *Link) char(service, char string) (*bluetooth.DeviceCharacteristic, error) {
	if key(service) != key(protocol.SecureDFUServiceUUID) {
		return nil, fmt.Errorf("%w: service %s", ErrNoCharacteristic, service)
	}
	c, ok := l.chars[key(char)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCharacteristic, char)
	}
	return c, nil
}

// Has reports whether the Secure DFU service exposes char.
func (l *Link) Has(char string) bool {
	_, ok := l.chars[key(char)]
	return ok
}

// MTU returns the negotiated ATT MTU.
func (l *Link) MTU() int {
	return l.mtu
}

// Services returns every discovered service with its characteristics, sorted.
func (l *Link) Services() map[string][]string {
	out := make(map[string][]string, len(l.services))
	for svc, chars := range l.services {
		sorted := append([]string(nil), chars...)
		sort.Strings(sorted)
		out[svc] = sorted
	}
	return out
}

// WriteCommand writes without response.
func (l *Link) WriteCommand(service, char string, data []byte) error {
	c, err := l.char(service, char)
	if err != nil {
		return err
	}
	if logger.Enabled(logger.TRACE) {
		logger.Trace("ble", "write command %s:\n%s", char, util.HexDump(data))
	}
	if _, err := c.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", char, err)
	}
	return nil
}

// WriteRequest writes with response where the platform supports it.
func (l *Link) WriteRequest(service, char string, data []byte) error {
	c, err := l.char(service, char)
	if err != nil {
		return err
	}
	logger.Trace("ble", "write request %s: %s", char, util.HexBytes(data))

	if w, ok := any(c).(requestWriter); ok {
		_, err = w.Write(data)
	} else {
		_, err = c.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", char, err)
	}
	return nil
}

// Subscribe enables notifications (or indications) on char and forwards
// every value to h on the BLE stack's goroutine.
func (l *Link) Subscribe(service, char string, h func(service, char string, data []byte)) error {
	c, err := l.char(service, char)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subscribed[key(char)] {
		return fmt.Errorf("already subscribed to %s", char)
	}

	err = c.EnableNotifications(func(buf []byte) {
		logger.Debug("ble", "received length %d: %s", len(buf), util.HexBytes(buf))
		h(service, char, buf)
	})
	if err != nil {
		return fmt.Errorf("failed to enable notifications on %s: %w", char, err)
	}
	l.subscribed[key(char)] = true
	return nil
}

// Disconnect drops the connection.
func (l *Link) Disconnect() error {
	logger.Info("ble", "disconnecting from %s", l.Address)
	return l.device.Disconnect()
}
