package protocol

import "encoding/binary"

// ParseSelectResponse reads max size, offset and CRC32 from a Select response payload.
func ParseSelectResponse(payload []byte) (SelectResult, error) {
	if len(payload) < SelectResponseSize {
		return SelectResult{}, &CodecError{Op: "parse select response", Want: SelectResponseSize, Got: len(payload), Err: ErrTruncated}
	}
	return SelectResult{
		MaxSize: binary.LittleEndian.Uint32(payload[0:4]),
		Offset:  binary.LittleEndian.Uint32(payload[4:8]),
		CRC:     binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// ParseChecksumResponse reads offset and CRC32 from a CalcChecksum response payload.
func ParseChecksumResponse(payload []byte) (ChecksumResult, error) {
	if len(payload) < ChecksumResponseSize {
		return ChecksumResult{}, &CodecError{Op: "parse checksum response", Want: ChecksumResponseSize, Got: len(payload), Err: ErrTruncated}
	}
	return ChecksumResult{
		Offset: binary.LittleEndian.Uint32(payload[0:4]),
		CRC:    binary.LittleEndian.Uint32(payload[4:8]),
	}, nil
}

func ParseMTUResponse(payload []byte) (uint16, error) {
	if len(payload) < MTUResponseSize {
		return 0, &CodecError{Op: "parse mtu response", Want: MTUResponseSize, Got: len(payload), Err: ErrTruncated}
	}
	return binary.LittleEndian.Uint16(payload[0:2]), nil
}

func ParsePingResponse(payload []byte) (byte, error) {
	if len(payload) < 1 {
		return 0, &CodecError{Op: "parse ping response", Want: 1, Got: 0, Err: ErrTruncated}
	}
	return payload[0], nil
}

// SelectPayload encodes a Select response payload.
func SelectPayload(r SelectResult) []byte {
	buf := make([]byte, 0, SelectResponseSize)
	buf = binary.LittleEndian.AppendUint32(buf, r.MaxSize)
	buf = binary.LittleEndian.AppendUint32(buf, r.Offset)
	return binary.LittleEndian.AppendUint32(buf, r.CRC)
}

// ChecksumPayload encodes a CalcChecksum response payload.
func ChecksumPayload(r ChecksumResult) []byte {
	buf := make([]byte, 0, ChecksumResponseSize)
	buf = binary.LittleEndian.AppendUint32(buf, r.Offset)
	return binary.LittleEndian.AppendUint32(buf, r.CRC)
}
