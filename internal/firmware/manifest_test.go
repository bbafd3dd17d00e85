package firmware

import (
	"archive/zip"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
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
	return buf.Bytes()
}

const appManifest = `{"manifest":{"application":{"bin_file":"app.bin","dat_file":"app.dat"}}}`

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app_dfu.zip")
	data := buildZip(t, map[string][]byte{
		"manifest.json": []byte(appManifest),
		"app.bin":       bytes.Repeat([]byte{0xAB}, 4096),
		"app.dat":       bytes.Repeat([]byte{0x01}, 141),
	})
	if err := os.WriteFile(name, data, 0o644); err != nil {
		t.Fatal(err)
	}

	pkg, err := Open(name, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if pkg.Kind != KindApplication {
		t.Errorf("Kind = %s", pkg.Kind)
	}
	if len(pkg.Firmware) != 4096 || len(pkg.InitPacket) != 141 {
		t.Errorf("sizes = %d/%d", len(pkg.Firmware), len(pkg.InitPacket))
	}
	if pkg.Size() != 4096+141 {
		t.Errorf("Size() = %d", pkg.Size())
	}
	if pkg.Path != name {
		t.Errorf("Path = %q", pkg.Path)
	}
	if !strings.HasPrefix(pkg.Digest(), "sha256:") || len(ShortHash(pkg.Digest())) != 12 {
		t.Errorf("Digest() = %q", pkg.Digest())
	}
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string][]byte
		kind    Kind
		wantErr error
		wantBin string
	}{
		{
			name: "application",
			files: map[string][]byte{
				"manifest.json": []byte(appManifest),
				"app.bin":       []byte("image"),
				"app.dat":       []byte("init"),
			},
			wantBin: "image",
		},
		{
			name: "bootloader only picked by default",
			files: map[string][]byte{
				"manifest.json": []byte(`{"manifest":{"bootloader":{"bin_file":"bl.bin","dat_file":"bl.dat"}}}`),
				"bl.bin":        []byte("boot"),
				"bl.dat":        []byte("init"),
			},
			wantBin: "boot",
		},
		{
			name: "explicit kind",
			files: map[string][]byte{
				"manifest.json": []byte(`{"manifest":{"application":{"bin_file":"a.bin","dat_file":"a.dat"},"softdevice":{"bin_file":"sd.bin","dat_file":"sd.dat"}}}`),
				"a.bin":         []byte("app"),
				"a.dat":         []byte("x"),
				"sd.bin":        []byte("sd"),
				"sd.dat":        []byte("y"),
			},
			kind:    KindSoftDevice,
			wantBin: "sd",
		},
		{
			name:    "no manifest",
			files:   map[string][]byte{"app.bin": []byte("image")},
			wantErr: ErrNoManifest,
		},
		{
			name: "missing kind",
			files: map[string][]byte{
				"manifest.json": []byte(appManifest),
				"app.bin":       []byte("image"),
				"app.dat":       []byte("init"),
			},
			kind:    KindBootloader,
			wantErr: ErrNoImage,
		},
		{
			name:    "empty manifest",
			files:   map[string][]byte{"manifest.json": []byte(`{"manifest":{}}`)},
			wantErr: ErrNoImage,
		},
		{
			name: "missing bin",
			files: map[string][]byte{
				"manifest.json": []byte(appManifest),
				"app.dat":       []byte("init"),
			},
			wantErr: fs.ErrNotExist,
		},
		{
			name: "empty init packet",
			files: map[string][]byte{
				"manifest.json": []byte(appManifest),
				"app.bin":       []byte("image"),
				"app.dat":       {},
			},
			wantErr: ErrEmptyFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildZip(t, tt.files)
			pkg, err := Read(bytes.NewReader(data), int64(len(data)), tt.kind)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if string(pkg.Firmware) != tt.wantBin {
				t.Errorf("Firmware = %q, want %q", pkg.Firmware, tt.wantBin)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("softdevice_bootloader"); err != nil || k != KindSoftDeviceBootloader {
		t.Errorf("ParseKind() = %q, %v", k, err)
	}
	if _, err := ParseKind("app"); err == nil {
		t.Error("ParseKind(app) succeeded")
	}
}
