package protocol

import "fmt"

// Opcode is a Secure DFU control point request identifier.
type Opcode byte

// ButtonlessOp is a Buttonless DFU request identifier.
type ButtonlessOp byte

// ObjectType selects the init packet (command) or firmware image (data) object.
type ObjectType byte

// Result is a status code reported by the Secure DFU control point.
type Result byte

// ButtonlessStatus is a status code reported by the Buttonless DFU characteristic.
type ButtonlessStatus byte

// Op is implemented by both opcode namespaces. ResponseCode is the marker byte
// the device puts in front of every response in that namespace.
type Op interface {
	~byte
	ResponseCode() byte
	StatusName(status byte) string
	String() string
}

// Frame is a decoded response notification or indication.
type Frame struct {
	// Marker is the namespace response code (0x60 or 0x20)
	Marker byte

	// Opcode is the echoed request opcode
	Opcode byte

	// Status is the raw status byte, interpreted per namespace
	Status byte

	// Payload is everything after the status byte
	Payload []byte
}

// SelectResult is the payload of a successful Select response.
type SelectResult struct {
	MaxSize uint32
	Offset  uint32
	CRC     uint32
}

// ChecksumResult is the payload of a successful CalcChecksum response.
type ChecksumResult struct {
	Offset uint32
	CRC    uint32
}

func (o Opcode) ResponseCode() byte { return byte(OpResponse) }

func (o Opcode) StatusName(status byte) string { return Result(status).String() }

func (o Opcode) String() string {
	switch o {
	case OpCreate:
		return "Create"
	case OpSetPRN:
		return "SetPRN"
	case OpCalcChecksum:
		return "CalcChecksum"
	case OpExecute:
		return "Execute"
	case OpSelect:
		return "Select"
	case OpGetMTU:
		return "GetMTU"
	case OpWrite:
		return "Write"
	case OpPing:
		return "Ping"
	case OpHardwareVersion:
		return "HardwareVersion"
	case OpFirmwareVersion:
		return "FirmwareVersion"
	case OpAbort:
		return "Abort"
	case OpResponse:
		return "Response"
	default:
		return fmt.Sprintf("Opcode(0x%02X)", byte(o))
	}
}

func (o ButtonlessOp) ResponseCode() byte { return byte(ButtonlessResponse) }

func (o ButtonlessOp) StatusName(status byte) string { return ButtonlessStatus(status).String() }

func (o ButtonlessOp) String() string {
	switch o {
	case ButtonlessEnterBootloader:
		return "EnterBootloader"
	case ButtonlessSetAdvName:
		return "SetAdvName"
	case ButtonlessResponse:
		return "Response"
	default:
		return fmt.Sprintf("ButtonlessOp(0x%02X)", byte(o))
	}
}

func (t ObjectType) String() string {
	switch t {
	case ObjectCommand:
		return "command"
	case ObjectData:
		return "data"
	default:
		return fmt.Sprintf("object(0x%02X)", byte(t))
	}
}

func (r Result) String() string {
	switch r {
	case ResultInvalid:
		return "invalid opcode"
	case ResultSuccess:
		return "success"
	case ResultOpNotSupported:
		return "opcode not supported"
	case ResultInvalidParameter:
		return "invalid parameter"
	case ResultInsufficientResources:
		return "insufficient resources"
	case ResultInvalidObject:
		return "invalid object"
	case ResultUnsupportedType:
		return "unsupported object type"
	case ResultOperationNotPermitted:
		return "operation not permitted"
	case ResultOperationFailed:
		return "operation failed"
	case ResultExtendedError:
		return "extended error"
	default:
		return fmt.Sprintf("unknown result 0x%02X", byte(r))
	}
}

func (s ButtonlessStatus) String() string {
	switch s {
	case ButtonlessSuccess:
		return "success"
	case ButtonlessOpNotSupported:
		return "opcode not supported"
	case ButtonlessOperationFailed:
		return "operation failed"
	case ButtonlessInvalidAdvName:
		return "invalid advertising name"
	case ButtonlessBusy:
		return "busy"
	case ButtonlessNotBonded:
		return "not bonded"
	default:
		return fmt.Sprintf("unknown status 0x%02X", byte(s))
	}
}
