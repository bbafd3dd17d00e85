package protocol

import (
	"errors"
	"testing"
)

func TestParseSelectResponse(t *testing.T) {
	want := SelectResult{MaxSize: 4096, Offset: 200, CRC: 0xDEADBEEF}
	got, err := ParseSelectResponse(SelectPayload(want))
	if err != nil {
		t.Fatalf("ParseSelectResponse() error = %v", err)
	}
	if got != want {
		t.Errorf("ParseSelectResponse() = %+v, want %+v", got, want)
	}

	raw := []byte{0x00, 0x10, 0x00, 0x00, 0x14, 0x00, 0x00, 0x00, 0x78, 0x56, 0x34, 0x12}
	got, err = ParseSelectResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxSize != 0x1000 || got.Offset != 0x14 || got.CRC != 0x12345678 {
		t.Errorf("little-endian decode = %+v", got)
	}

	if _, err := ParseSelectResponse(raw[:11]); !errors.Is(err, ErrTruncated) {
		t.Errorf("short payload error = %v, want ErrTruncated", err)
	}
}

func TestParseChecksumResponse(t *testing.T) {
	want := ChecksumResult{Offset: 4096, CRC: 0x01020304}
	got, err := ParseChecksumResponse(ChecksumPayload(want))
	if err != nil {
		t.Fatalf("ParseChecksumResponse() error = %v", err)
	}
	if got != want {
		t.Errorf("ParseChecksumResponse() = %+v, want %+v", got, want)
	}
	if _, err := ParseChecksumResponse([]byte{1, 2, 3}); !errors.Is(err, ErrTruncated) {
		t.Errorf("short payload error = %v, want ErrTruncated", err)
	}
}

func TestParseSmallResponses(t *testing.T) {
	mtu, err := ParseMTUResponse([]byte{0xF7, 0x00})
	if err != nil || mtu != 247 {
		t.Errorf("ParseMTUResponse() = %d, %v", mtu, err)
	}
	if _, err := ParseMTUResponse([]byte{0xF7}); !errors.Is(err, ErrTruncated) {
		t.Errorf("short mtu error = %v", err)
	}

	id, err := ParsePingResponse([]byte{0x2A})
	if err != nil || id != 0x2A {
		t.Errorf("ParsePingResponse() = %d, %v", id, err)
	}
	if _, err := ParsePingResponse(nil); !errors.Is(err, ErrTruncated) {
		t.Errorf("empty ping error = %v", err)
	}
}

func TestUpdateCRC32(t *testing.T) {
	data := []byte("123456789")
	if got := CRC32(data); got != 0xCBF43926 {
		t.Fatalf("CRC32 check value = 0x%08X", got)
	}

	var crc uint32
	for i := 0; i < len(data); i += 2 {
		end := min(i+2, len(data))
		crc = UpdateCRC32(crc, data[i:end])
	}
	if crc != CRC32(data) {
		t.Errorf("incremental CRC32 = 0x%08X, want 0x%08X", crc, CRC32(data))
	}
}

func TestStatusStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{OpCalcChecksum.String(), "CalcChecksum"},
		{Opcode(0x55).String(), "Opcode(0x55)"},
		{ButtonlessSetAdvName.String(), "SetAdvName"},
		{ResultInsufficientResources.String(), "insufficient resources"},
		{ButtonlessBusy.String(), "busy"},
		{ObjectData.String(), "data"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
