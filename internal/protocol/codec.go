package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Encode builds a request: the opcode byte followed by the payload fields in order.
func Encode[O Op](op O, payload ...[]byte) []byte {
	n := 1
	for _, p := range payload {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, byte(op))
	for _, p := range payload {
		buf = append(buf, p...)
	}
	return buf
}

// SetAdvNamePacket builds [0x02][len][name]. The length byte always comes
// from len(name); the name is never terminated.
func SetAdvNamePacket(name string) ([]byte, error) {
	if len(name) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAdvName)
	}
	if len(name) > MaxAdvNameLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidAdvName, len(name), MaxAdvNameLength)
	}
	if !utf8.ValidString(name) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidAdvName)
	}
	return Encode(ButtonlessSetAdvName, []byte{byte(len(name))}, []byte(name)), nil
}

func EnterBootloaderPacket() []byte {
	return Encode(ButtonlessEnterBootloader)
}

func SelectPacket(t ObjectType) []byte {
	return Encode(OpSelect, []byte{byte(t)})
}

// CreatePacket builds [0x01][type][size uint32 LE].
func CreatePacket(t ObjectType, size uint32) []byte {
	return Encode(OpCreate, []byte{byte(t)}, binary.LittleEndian.AppendUint32(nil, size))
}

// SetPRNPacket builds [0x02][prn uint16 LE]. Zero disables receipts.
func SetPRNPacket(prn uint16) []byte {
	return Encode(OpSetPRN, binary.LittleEndian.AppendUint16(nil, prn))
}

func CalcChecksumPacket() []byte {
	return Encode(OpCalcChecksum)
}

func ExecutePacket() []byte {
	return Encode(OpExecute)
}

func PingPacket(id byte) []byte {
	return Encode(OpPing, []byte{id})
}

func GetMTUPacket() []byte {
	return Encode(OpGetMTU)
}

func AbortPacket() []byte {
	return Encode(OpAbort)
}

// Decode splits a raw notification into marker, echoed opcode, status and
// payload. The frame owns a copy of the payload.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < MinFrameSize {
		return Frame{}, &CodecError{Op: "decode response", Want: MinFrameSize, Got: len(raw), Err: ErrTruncated}
	}
	f := Frame{
		Marker: raw[0],
		Opcode: raw[1],
		Status: raw[2],
	}
	if len(raw) > MinFrameSize {
		f.Payload = append([]byte(nil), raw[MinFrameSize:]...)
	}
	return f, nil
}

// EncodeResponse builds [marker][op][status] ++ payload, the frame a device
// sends back for a request.
func EncodeResponse[O Op](op O, status byte, payload ...[]byte) []byte {
	head := []byte{op.ResponseCode(), byte(op), status}
	return append(head, Encode(op, payload...)[1:]...)
}

// DecodeRequest splits a request into its opcode and payload.
func DecodeRequest(raw []byte) (byte, []byte, error) {
	if len(raw) == 0 {
		return 0, nil, &CodecError{Op: "decode request", Want: 1, Got: 0, Err: ErrTruncated}
	}
	return raw[0], append([]byte(nil), raw[1:]...), nil
}

// Validate checks that f answers a request for expected and reports success.
func Validate[O Op](f Frame, expected O) error {
	if f.Marker != expected.ResponseCode() || f.Opcode != byte(expected) {
		return &ProtocolError{
			Operation: expected.String(),
			Marker:    f.Marker,
			Opcode:    f.Opcode,
			Status:    f.Status,
			Err:       ErrOpcodeMismatch,
		}
	}
	if f.Status == byte(ResultSuccess) {
		return nil
	}
	pe := &ProtocolError{
		Operation:  expected.String(),
		Marker:     f.Marker,
		Opcode:     f.Opcode,
		Status:     f.Status,
		StatusText: expected.StatusName(f.Status),
		Err:        ErrDeviceRejected,
	}
	if f.Marker == byte(OpResponse) && Result(f.Status) == ResultExtendedError && len(f.Payload) > 0 {
		ext := f.Payload[0]
		pe.Extended = &ext
	}
	return pe
}
