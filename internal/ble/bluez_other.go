//go:build !linux

package ble

func preflight() error {
	return nil
}
