package dfu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu/dfutest"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

func newTestTrigger(t *testing.T, dev *dfutest.Device, name string, opts ...Option) *Trigger {
	t.Helper()
	opts = append([]Option{WithTimeout(2 * time.Second)}, opts...)
	tr := NewTrigger(dev, name, opts...)
	dev.Subscribe(tr.Indicate)
	t.Cleanup(dev.Close)
	return tr
}

func TestTriggerSuccess(t *testing.T) {
	dev := dfutest.New()
	tr := newTestTrigger(t, dev, "DfuTarg")

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.State() != TriggerCompleted {
		t.Errorf("State() = %s, want completed", tr.State())
	}

	reqs := dev.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if reqs[0].Opcode != byte(protocol.ButtonlessSetAdvName) || string(reqs[0].Payload) != "\x07DfuTarg" {
		t.Errorf("first request = %02X %q", reqs[0].Opcode, reqs[0].Payload)
	}
	if reqs[1].Opcode != byte(protocol.ButtonlessEnterBootloader) || len(reqs[1].Payload) != 0 {
		t.Errorf("second request = %02X %X", reqs[1].Opcode, reqs[1].Payload)
	}
	if dev.AdvName() != "DfuTarg" {
		t.Errorf("device adv name = %q", dev.AdvName())
	}
}

func TestTriggerFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*dfutest.Device)
		advName   string
		wantErr   error
		wantStage TriggerState
		wantReqs  int
	}{
		{
			name: "enter bootloader rejected",
			setup: func(d *dfutest.Device) {
				d.Reject(byte(protocol.ButtonlessEnterBootloader), byte(protocol.ButtonlessInvalidAdvName))
			},
			advName:   "DfuTarg",
			wantErr:   ErrDeviceRejected,
			wantStage: TriggerTriggered,
			wantReqs:  2,
		},
		{
			name: "enter bootloader invalid parameter",
			setup: func(d *dfutest.Device) {
				d.Script(
					protocol.EncodeResponse(protocol.ButtonlessSetAdvName, byte(protocol.ButtonlessSuccess)),
					protocol.EncodeResponse(protocol.ButtonlessEnterBootloader, byte(protocol.ResultInvalidParameter)),
				)
			},
			advName:   "DfuTarg",
			wantErr:   ErrDeviceRejected,
			wantStage: TriggerTriggered,
			wantReqs:  2,
		},
		{
			name: "adv name rejected",
			setup: func(d *dfutest.Device) {
				d.Reject(byte(protocol.ButtonlessSetAdvName), byte(protocol.ButtonlessBusy))
			},
			advName:   "DfuTarg",
			wantErr:   ErrDeviceRejected,
			wantStage: TriggerAdvNameSent,
			wantReqs:  1,
		},
		{
			name: "mismatched opcode with success status",
			setup: func(d *dfutest.Device) {
				d.Script([]byte{0x20, byte(protocol.ButtonlessEnterBootloader), 0x01})
			},
			advName:   "DfuTarg",
			wantErr:   ErrProtocolViolation,
			wantStage: TriggerAdvNameSent,
			wantReqs:  1,
		},
		{
			name: "mismatched opcode with failure status",
			setup: func(d *dfutest.Device) {
				d.Script(
					protocol.EncodeResponse(protocol.ButtonlessSetAdvName, byte(protocol.ButtonlessSuccess)),
					[]byte{0x20, byte(protocol.ButtonlessSetAdvName), 0x04},
				)
			},
			advName:   "DfuTarg",
			wantErr:   ErrProtocolViolation,
			wantStage: TriggerTriggered,
			wantReqs:  2,
		},
		{
			name: "truncated response",
			setup: func(d *dfutest.Device) {
				d.Script([]byte{0x20, 0x02})
			},
			advName:   "DfuTarg",
			wantErr:   ErrProtocolViolation,
			wantStage: TriggerAdvNameSent,
			wantReqs:  1,
		},
		{
			name:      "silent device",
			setup:     func(d *dfutest.Device) { d.Mute() },
			advName:   "DfuTarg",
			wantErr:   ErrTimeout,
			wantStage: TriggerAdvNameSent,
			wantReqs:  1,
		},
		{
			name:      "write failure",
			setup:     func(d *dfutest.Device) { d.FailWrites(errors.New("disconnected")) },
			advName:   "DfuTarg",
			wantErr:   ErrTransport,
			wantStage: TriggerInit,
			wantReqs:  0,
		},
		{
			name:      "name too long",
			setup:     func(d *dfutest.Device) {},
			advName:   "ThisNameIsLongerThan20",
			wantErr:   protocol.ErrInvalidAdvName,
			wantStage: TriggerInit,
			wantReqs:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := dfutest.New()
			tt.setup(dev)
			tr := newTestTrigger(t, dev, tt.advName, WithTimeout(100*time.Millisecond))

			err := tr.Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			var te *TriggerError
			if !errors.As(err, &te) {
				t.Fatalf("error is not *TriggerError: %v", err)
			}
			if te.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", te.Stage, tt.wantStage)
			}
			if tr.State() != TriggerFailed {
				t.Errorf("State() = %s, want error", tr.State())
			}
			if got := len(dev.Requests()); got != tt.wantReqs {
				t.Errorf("requests = %d, want %d", got, tt.wantReqs)
			}
		})
	}
}

func TestTriggerContextCanceled(t *testing.T) {
	dev := dfutest.New()
	dev.Mute()
	tr := newTestTrigger(t, dev, "DfuTarg", WithTimeout(0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTriggerBondedCharacteristic(t *testing.T) {
	dev := dfutest.New()
	tr := newTestTrigger(t, dev, "Boot", WithBondedButtonless())
	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, r := range dev.Requests() {
		if r.Char != protocol.ButtonlessBondedCharUUID {
			t.Errorf("request written to %s", r.Char)
		}
	}
}

func TestTriggerIgnoresForeignIndications(t *testing.T) {
	dev := dfutest.New()
	dev.Mute()
	tr := newTestTrigger(t, dev, "DfuTarg", WithTimeout(time.Second))

	go func() {
		time.Sleep(20 * time.Millisecond)
		// wrong characteristic, then the real answers
		tr.Indicate(protocol.SecureDFUServiceUUID, protocol.ControlPointCharUUID, []byte{0x20, 0x02, 0x01})
		tr.Indicate(protocol.SecureDFUServiceUUID, protocol.ButtonlessCharUUID, []byte{0x20, 0x02, 0x01})
		time.Sleep(20 * time.Millisecond)
		tr.Indicate(protocol.SecureDFUServiceUUID, protocol.ButtonlessCharUUID, []byte{0x20, 0x01, 0x01})
	}()

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestTriggerLateIndicationDropped(t *testing.T) {
	dev := dfutest.New()
	tr := newTestTrigger(t, dev, "DfuTarg")
	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// must not block or panic after Run returned
	tr.Indicate(protocol.SecureDFUServiceUUID, protocol.ButtonlessCharUUID, []byte{0x20, 0x01, 0x01})
	if tr.State() != TriggerCompleted {
		t.Errorf("State() = %s after late indication", tr.State())
	}
}
