package dfu

import "github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"

// Progress reports transfer progress for the object being sent.
type Progress struct {
	Object protocol.ObjectType
	State  TransferState

	// Sent is the number of bytes of this object the device has acknowledged
	// or been sent, Total its full length
	Sent  int
	Total int

	// Executed is the number of objects committed so far in this run
	Executed int
}

// ProgressFunc is called during a transfer to report progress.
type ProgressFunc func(Progress)

// Percent returns the progress as a fraction (0.0 to 1.0).
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Sent) / float64(p.Total)
}
