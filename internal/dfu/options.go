package dfu

import (
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

const (
	// DefaultTimeout bounds every wait for a device response
	DefaultTimeout = 10 * time.Second

	// DefaultPRN is the number of packets between checksum requests
	DefaultPRN = 10

	// DefaultChunkSize fits a write command in the minimum ATT MTU
	DefaultChunkSize = protocol.DefaultATTMTU - protocol.ATTHeaderSize
)

// Config holds engine settings shared by Trigger and Transfer.
type Config struct {
	// Timeout bounds each response wait; zero waits until ctx is done
	Timeout time.Duration

	// PRN is the number of packets streamed between checksum requests.
	// Zero checksums only at the end of each object.
	PRN int

	// ChunkSize caps the packet write size; zero derives it from the MTU
	ChunkSize int

	// ChecksumRetries is how many times a short checksum window is resent
	ChecksumRetries int

	// Progress is called on the Run goroutine (optional)
	Progress ProgressFunc

	// ButtonlessChar selects the buttonless characteristic
	ButtonlessChar string
}

func defaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		PRN:            DefaultPRN,
		ButtonlessChar: protocol.ButtonlessCharUUID,
	}
}

// Option is a functional option for configuring an engine.
type Option func(*Config)

// WithTimeout sets the per-response timeout.
//
// Example:
//
//	t := dfu.NewTransfer(link, init, image, dfu.WithTimeout(5*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.Timeout = timeout
		}
	}
}

// WithPRN sets how many packets are streamed between checksum requests.
func WithPRN(prn uint16) Option {
	return func(c *Config) {
		c.PRN = int(prn)
	}
}

// WithChunkSize caps the packet write size. Without it the size is the
// transport MTU minus the ATT header, or 20 bytes.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithChecksumRetries lets the transfer resend a window up to n times when
// the device reports fewer bytes than were sent but agrees on their CRC.
func WithChecksumRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.ChecksumRetries = n
		}
	}
}

// WithProgress sets a callback to track transfer progress.
//
// Example:
//
//	t := dfu.NewTransfer(link, init, image,
//	    dfu.WithProgress(func(p dfu.Progress) {
//	        fmt.Printf("%s %.1f%%\n", p.Object, p.Percent()*100)
//	    }),
//	)
func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithBondedButtonless makes the trigger use the bonded buttonless characteristic.
func WithBondedButtonless() Option {
	return func(c *Config) {
		c.ButtonlessChar = protocol.ButtonlessBondedCharUUID
	}
}
