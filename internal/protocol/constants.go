package protocol

const (
	// SecureDFUServiceUUID is the Nordic Secure DFU service (16-bit 0xFE59)
	SecureDFUServiceUUID = "0000FE59-0000-1000-8000-00805F9B34FB"

	// ControlPointCharUUID carries requests and their notified responses
	ControlPointCharUUID = "8EC90001-F315-4F60-9FB8-838830DAEA50"

	// PacketCharUUID receives raw object data (write without response)
	PacketCharUUID = "8EC90002-F315-4F60-9FB8-838830DAEA50"

	// ButtonlessCharUUID is the Buttonless DFU characteristic without bonds
	ButtonlessCharUUID = "8EC90003-F315-4F60-9FB8-838830DAEA50"

	// ButtonlessBondedCharUUID is the Buttonless DFU characteristic with bonds
	ButtonlessBondedCharUUID = "8EC90004-F315-4F60-9FB8-838830DAEA50"
)

// Frame layout constants.
const (
	// MinFrameSize is response marker + echoed opcode + status
	MinFrameSize = 3

	// MaxAdvNameLength is the longest advertising name the bootloader accepts
	MaxAdvNameLength = 20

	// SelectResponseSize is max size + offset + CRC32, little-endian uint32 each
	SelectResponseSize = 12

	// ChecksumResponseSize is offset + CRC32, little-endian uint32 each
	ChecksumResponseSize = 8

	// MTUResponseSize is a little-endian uint16
	MTUResponseSize = 2

	// ATTHeaderSize is subtracted from the ATT MTU to get the usable write size
	ATTHeaderSize = 3

	// DefaultATTMTU is the BLE 4.0 minimum ATT MTU
	DefaultATTMTU = 23
)

// Secure DFU control point opcodes.
const (
	OpCreate          Opcode = 0x01
	OpSetPRN          Opcode = 0x02
	OpCalcChecksum    Opcode = 0x03
	OpExecute         Opcode = 0x04
	OpSelect          Opcode = 0x06
	OpGetMTU          Opcode = 0x07
	OpWrite           Opcode = 0x08
	OpPing            Opcode = 0x09
	OpHardwareVersion Opcode = 0x0A
	OpFirmwareVersion Opcode = 0x0B
	OpAbort           Opcode = 0x0C
	OpResponse        Opcode = 0x60
)

// Buttonless DFU opcodes.
const (
	ButtonlessEnterBootloader ButtonlessOp = 0x01
	ButtonlessSetAdvName      ButtonlessOp = 0x02
	ButtonlessResponse        ButtonlessOp = 0x20
)

// Object types selected and created on the control point.
const (
	ObjectCommand ObjectType = 0x01
	ObjectData    ObjectType = 0x02
)

// Secure DFU result codes.
const (
	ResultInvalid               Result = 0x00
	ResultSuccess               Result = 0x01
	ResultOpNotSupported        Result = 0x02
	ResultInvalidParameter      Result = 0x03
	ResultInsufficientResources Result = 0x04
	ResultInvalidObject         Result = 0x05
	ResultUnsupportedType       Result = 0x07
	ResultOperationNotPermitted Result = 0x08
	ResultOperationFailed       Result = 0x0A
	ResultExtendedError         Result = 0x0B
)

// Buttonless DFU status codes.
const (
	ButtonlessSuccess         ButtonlessStatus = 0x01
	ButtonlessOpNotSupported  ButtonlessStatus = 0x02
	ButtonlessOperationFailed ButtonlessStatus = 0x04
	ButtonlessInvalidAdvName  ButtonlessStatus = 0x05
	ButtonlessBusy            ButtonlessStatus = 0x06
	ButtonlessNotBonded       ButtonlessStatus = 0x07
)
