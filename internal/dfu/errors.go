package dfu

import (
	"errors"
	"fmt"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

var (
	// ErrDeviceRejected is returned when the device answers with a non-success status
	ErrDeviceRejected = protocol.ErrDeviceRejected

	// ErrProtocolViolation is returned for truncated frames and mismatched responses
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTimeout is returned when no response arrives in time
	ErrTimeout = errors.New("timed out waiting for response")

	// ErrTransport is returned when the transport fails to write
	ErrTransport = errors.New("transport write failed")

	// ErrChecksumMismatch is returned when the device disagrees on offset or CRC32
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrCreateRejected is returned when the device refuses to create an object
	ErrCreateRejected = errors.New("create object rejected")

	// ErrExecuteRejected is returned when the device refuses to execute an object
	ErrExecuteRejected = errors.New("execute rejected")

	// ErrEmptyImage is returned when the init packet or firmware image is empty
	ErrEmptyImage = errors.New("empty init packet or firmware image")

	// ErrObjectTooLarge is returned when the init packet exceeds the device object size
	ErrObjectTooLarge = errors.New("object larger than device maximum")

	// ErrConcurrentWait is returned when a second waiter calls Await
	ErrConcurrentWait = errors.New("response already being awaited")
)

// ChecksumMismatchError carries both sides of a failed checksum comparison.
type ChecksumMismatchError struct {
	Object       protocol.ObjectType
	LocalOffset  uint32
	LocalCRC     uint32
	DeviceOffset uint32
	DeviceCRC    uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch on %s object: local offset %d crc 0x%08X, device offset %d crc 0x%08X",
		e.Object, e.LocalOffset, e.LocalCRC, e.DeviceOffset, e.DeviceCRC)
}

func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// TriggerError reports the stage at which the buttonless trigger failed.
type TriggerError struct {
	Stage TriggerState
	Err   error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("trigger failed in state %s: %v", e.Stage, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// TransferError reports where a transfer failed.
type TransferError struct {
	State  TransferState
	Object protocol.ObjectType
	Offset int
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed in state %s (%s object, offset %d): %v", e.State, e.Object, e.Offset, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// classify maps codec and opcode errors onto ErrProtocolViolation; everything
// else is returned unchanged.
func classify(err error) error {
	if errors.Is(err, protocol.ErrOpcodeMismatch) || errors.Is(err, protocol.ErrTruncated) {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return err
}
