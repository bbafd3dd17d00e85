package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a frame is shorter than its fixed layout
	ErrTruncated = errors.New("frame truncated")

	// ErrOpcodeMismatch is returned when a response does not answer the pending request
	ErrOpcodeMismatch = errors.New("opcode mismatch")

	// ErrDeviceRejected is returned when a response carries a non-success status
	ErrDeviceRejected = errors.New("device rejected request")

	// ErrInvalidAdvName is returned for advertising names the bootloader cannot accept
	ErrInvalidAdvName = errors.New("invalid advertising name")
)

// CodecError describes a frame that could not be decoded.
type CodecError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s: %v (want %d bytes, got %d)", e.Op, e.Err, e.Want, e.Got)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// ProtocolError describes a well-formed response that does not satisfy the
// pending request.
type ProtocolError struct {
	Operation string
	Marker    byte
	Opcode    byte
	Status    byte
	// StatusText is the status interpreted in the request's namespace
	StatusText string
	// Extended is the extended error code, set when the device reports one
	Extended *byte
	Err      error
}

func (e *ProtocolError) Error() string {
	if errors.Is(e.Err, ErrOpcodeMismatch) {
		return fmt.Sprintf("%s: %v (got marker 0x%02X opcode 0x%02X)", e.Operation, e.Err, e.Marker, e.Opcode)
	}
	if e.Extended != nil {
		return fmt.Sprintf("%s: %v: %s (extended error 0x%02X)", e.Operation, e.Err, e.StatusText, *e.Extended)
	}
	return fmt.Sprintf("%s: %v: %s (0x%02X)", e.Operation, e.Err, e.StatusText, e.Status)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a device rejection carrying the given raw status.
func IsStatus(err error, status byte) bool {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		return false
	}
	return errors.Is(pe.Err, ErrDeviceRejected) && pe.Status == status
}
