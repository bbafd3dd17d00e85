package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"trace", TRACE},
		{"DEBUG", DEBUG},
		{"Info", INFO},
		{"warn", WARN},
		{"error", ERROR},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := GetLevel()
	t.Cleanup(func() {
		SetLevel(prev)
		SetOutput(os.Stderr)
	})

	SetLevel(INFO)
	Debug("dfu", "hidden %d", 1)
	Info("dfu", "shown %d", 2)
	Error("", "bare")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line written at INFO level: %q", out)
	}
	if !strings.Contains(out, "[dfu INFO ] shown 2") {
		t.Errorf("missing info line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] bare") {
		t.Errorf("missing unprefixed error line: %q", out)
	}

	buf.Reset()
	SetLevel(TRACE)
	Trace("ble", "frame")
	if !strings.Contains(buf.String(), "[ble TRACE] frame") {
		t.Errorf("trace line missing at TRACE level: %q", buf.String())
	}
}
