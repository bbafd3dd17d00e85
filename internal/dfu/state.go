package dfu

import "fmt"

// TriggerState is the buttonless trigger state machine position.
type TriggerState int32

const (
	TriggerInit TriggerState = iota
	TriggerAdvNameSent
	TriggerTriggered
	TriggerCompleted
	TriggerFailed
)

func (s TriggerState) String() string {
	switch s {
	case TriggerInit:
		return "init"
	case TriggerAdvNameSent:
		return "adv-name-sent"
	case TriggerTriggered:
		return "dfu-triggered"
	case TriggerCompleted:
		return "completed"
	case TriggerFailed:
		return "error"
	default:
		return fmt.Sprintf("TriggerState(%d)", int32(s))
	}
}

// Terminal reports whether Run has nothing left to do.
func (s TriggerState) Terminal() bool {
	return s == TriggerCompleted || s == TriggerFailed
}

// TransferState is the object transfer state machine position.
type TransferState int32

const (
	StateIdle TransferState = iota
	StateSelecting
	StateCreating
	StateStreaming
	StateChecksumming
	StateExecuting
	StateFinished
	StateFailed
)

func (s TransferState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateCreating:
		return "creating"
	case StateStreaming:
		return "streaming"
	case StateChecksumming:
		return "checksumming"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("TransferState(%d)", int32(s))
	}
}

// Terminal reports whether Run has nothing left to do.
func (s TransferState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}
