package commands

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/ble"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu/dfutest"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

const (
	appAddress  = "EE:42:00:00:00:01"
	appManifest = `{"manifest":{"application":{"bin_file":"app.bin","dat_file":"app.dat"}}}`
)

// simTarget adapts a simulated device to Target.
type simTarget struct {
	*dfutest.Device
	bonded bool
}

func (s *simTarget) Subscribe(service, char string, h func(service, char string, data []byte)) error {
	s.Device.Subscribe(h)
	return nil
}

func (s *simTarget) Has(char string) bool {
	switch char {
	case protocol.ButtonlessCharUUID:
		return !s.bonded
	case protocol.ButtonlessBondedCharUUID:
		return s.bonded
	default:
		return true
	}
}

func (s *simTarget) Disconnect() error { return nil }

// fleet hands out the application device for address matches and the
// bootloader device for name matches.
type fleet struct {
	app  *simTarget
	boot *simTarget

	mu    sync.Mutex
	dials []string
}

func newFleet(t *testing.T) *fleet {
	t.Helper()
	f := &fleet{
		app:  &simTarget{Device: dfutest.New()},
		boot: &simTarget{Device: dfutest.New()},
	}
	t.Cleanup(f.app.Close)
	t.Cleanup(f.boot.Close)
	return f
}

func (f *fleet) dial(_ context.Context, m ble.Matcher, _ time.Duration) (Target, error) {
	f.mu.Lock()
	f.dials = append(f.dials, m.String())
	f.mu.Unlock()
	switch {
	case m.Match(appAddress, ""):
		return f.app, nil
	case m.Match("", ble.DfuTargName):
		return f.boot, nil
	default:
		return nil, ble.ErrNotFound
	}
}

func (f *fleet) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func writePackage(t *testing.T, files map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	name := filepath.Join(t.TempDir(), "app_dfu.zip")
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func testImage() (initPacket, image []byte) {
	initPacket = bytes.Repeat([]byte{0x12}, 64)
	image = make([]byte, 3000)
	for i := range image {
		image[i] = byte(i * 7)
	}
	return initPacket, image
}

func testOptions(f *fleet, pkg string, out *bytes.Buffer) Options {
	return Options{
		Address:     appAddress,
		Package:     pkg,
		Timeout:     2 * time.Second,
		PRN:         dfu.DefaultPRN,
		ScanTimeout: time.Second,
		Dial:        f.dial,
		Out:         out,
	}
}

func TestDFU(t *testing.T) {
	initPacket, image := testImage()
	pkg := writePackage(t, map[string][]byte{
		"manifest.json": []byte(appManifest),
		"app.dat":       initPacket,
		"app.bin":       image,
	})
	f := newFleet(t)
	var out bytes.Buffer

	if err := DFU(context.Background(), testOptions(f, pkg, &out)); err != nil {
		t.Fatalf("DFU() error = %v\n%s", err, out.String())
	}

	if got := f.app.AdvName(); got != ble.DfuTargName {
		t.Errorf("application told to advertise as %q", got)
	}
	if f.app.Packets() != 0 {
		t.Errorf("application received %d data packets", f.app.Packets())
	}
	if got := f.boot.Received(protocol.ObjectCommand); !bytes.Equal(got, initPacket) {
		t.Errorf("init packet mismatch: %d bytes", len(got))
	}
	if got := f.boot.Received(protocol.ObjectData); !bytes.Equal(got, image) {
		t.Errorf("firmware mismatch: %d bytes", len(got))
	}
	if f.boot.Executed() != 2 {
		t.Errorf("executed = %d, want 2", f.boot.Executed())
	}
	if f.dialCount() != 2 {
		t.Errorf("dials = %v", f.dials)
	}
	if !strings.Contains(out.String(), "DFU Successful") {
		t.Errorf("output lacks success line:\n%s", out.String())
	}
}

func TestDFUSkipTrigger(t *testing.T) {
	initPacket, image := testImage()
	pkg := writePackage(t, map[string][]byte{
		"manifest.json": []byte(appManifest),
		"app.dat":       initPacket,
		"app.bin":       image,
	})
	f := newFleet(t)
	var out bytes.Buffer
	opts := testOptions(f, pkg, &out)
	opts.Address = ""
	opts.SkipTrigger = true

	if err := DFU(context.Background(), opts); err != nil {
		t.Fatalf("DFU() error = %v", err)
	}
	if len(f.app.Requests()) != 0 {
		t.Error("application was contacted")
	}
	if f.dialCount() != 1 {
		t.Errorf("dials = %v", f.dials)
	}
}

func TestDFUFailures(t *testing.T) {
	initPacket, image := testImage()
	pkg := writePackage(t, map[string][]byte{
		"manifest.json": []byte(appManifest),
		"app.dat":       initPacket,
		"app.bin":       image,
	})

	tests := []struct {
		name      string
		address   string
		pkg       string
		setup     func(*fleet)
		wantErr   error
		wantDials int
		wantOut   string
	}{
		{
			name:    "short address",
			address: "EE:",
			pkg:     pkg,
		},
		{
			name:    "missing package",
			address: appAddress,
			pkg:     filepath.Join(t.TempDir(), "missing.zip"),
			wantErr: os.ErrNotExist,
		},
		{
			name:    "not bonded",
			address: appAddress,
			pkg:     pkg,
			setup: func(f *fleet) {
				f.app.Reject(byte(protocol.ButtonlessEnterBootloader), byte(protocol.ButtonlessNotBonded))
			},
			wantErr:   dfu.ErrDeviceRejected,
			wantDials: 1,
			wantOut:   "trigger failed",
		},
		{
			name:      "application not found",
			address:   "AA:BB:CC:DD:EE:FF",
			pkg:       pkg,
			wantErr:   ble.ErrNotFound,
			wantDials: 1,
		},
		{
			name:    "execute rejected",
			address: appAddress,
			pkg:     pkg,
			setup: func(f *fleet) {
				f.boot.Reject(byte(protocol.OpExecute), byte(protocol.ResultOperationFailed))
			},
			wantErr:   dfu.ErrExecuteRejected,
			wantDials: 2,
			wantOut:   "DFU Not Successful finished with state: failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFleet(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			var out bytes.Buffer
			opts := testOptions(f, tt.pkg, &out)
			opts.Address = tt.address

			err := DFU(context.Background(), opts)
			if err == nil {
				t.Fatal("DFU() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("DFU() error = %v, want %v", err, tt.wantErr)
			}
			if f.dialCount() != tt.wantDials {
				t.Errorf("dials = %v, want %d", f.dials, tt.wantDials)
			}
			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output lacks %q:\n%s", tt.wantOut, out.String())
			}
		})
	}
}

func TestTriggerBonded(t *testing.T) {
	f := newFleet(t)
	f.app.bonded = true
	var out bytes.Buffer

	if err := Trigger(context.Background(), testOptions(f, "", &out)); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	reqs := f.app.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	for _, r := range reqs {
		if r.Char != protocol.ButtonlessBondedCharUUID {
			t.Errorf("request on %s, want bonded characteristic", r.Char)
		}
	}
}

func TestInfo(t *testing.T) {
	initPacket, image := testImage()
	pkg := writePackage(t, map[string][]byte{
		"manifest.json": []byte(appManifest),
		"app.dat":       initPacket,
		"app.bin":       image,
	})

	var out bytes.Buffer
	if err := Info(&out, pkg, ""); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	for _, want := range []string{"application", "app.bin (3000 bytes)", "app.dat (64 bytes)", "sha256:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep() = %v, want context.Canceled", err)
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("sleep(0) = %v", err)
	}
}
