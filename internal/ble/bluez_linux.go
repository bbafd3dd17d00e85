//go:build linux

package ble

import (
	"fmt"
	"slices"

	"github.com/godbus/dbus/v5"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
)

const (
	busName      = "org.bluez"
	adapterPath  = "/org/bluez/hci0"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
)

// preflight checks that BlueZ is running and powers the adapter on, so a
// blocked or sleeping controller fails early with a readable error.
func preflight() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return fmt.Errorf("list bus names: %w", err)
	}
	if !slices.Contains(names, busName) {
		return fmt.Errorf("%s not found on system bus, is bluetooth.service running?", busName)
	}

	obj := conn.Object(busName, adapterPath)
	var powered dbus.Variant
	if err := obj.Call(propsIface+".Get", 0, adapterIface, "Powered").Store(&powered); err != nil {
		return fmt.Errorf("read %s Powered: %w", adapterPath, err)
	}
	if on, ok := powered.Value().(bool); ok && on {
		return nil
	}

	logger.Info("ble", "powering on %s", adapterPath)
	if err := obj.Call(propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(true)).Err; err != nil {
		return fmt.Errorf("power on %s: %w", adapterPath, err)
	}
	return nil
}
