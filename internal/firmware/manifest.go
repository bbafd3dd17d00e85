package firmware

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// ManifestName is the file every Nordic DFU zip carries at its root
const ManifestName = "manifest.json"

var (
	// ErrNoManifest is returned when the zip has no manifest.json
	ErrNoManifest = errors.New("package has no " + ManifestName)

	// ErrNoImage is returned when the manifest names no usable image
	ErrNoImage = errors.New("manifest has no matching image")

	// ErrEmptyFile is returned when the init packet or image is empty
	ErrEmptyFile = errors.New("package file is empty")
)

// maxFileSize bounds a single extracted file; nRF52 flash is at most 1 MiB.
const maxFileSize = 4 << 20

// Open reads the image of the given kind from a DFU zip. An empty kind picks
// the first present entry in DefaultOrder.
func Open(name string, kind Kind) (*Package, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer zr.Close()

	pkg, err := load(&zr.Reader, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	pkg.Path = name
	return pkg, nil
}

// Read is Open for an in-memory or already opened zip.
func Read(r io.ReaderAt, size int64, kind Kind) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}
	return load(zr, kind)
}

func load(zr *zip.Reader, kind Kind) (*Package, error) {
	raw, err := readFile(zr, ManifestName)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestName, err)
	}

	if kind == "" {
		kinds := m.Kinds()
		if len(kinds) == 0 {
			return nil, ErrNoImage
		}
		kind = kinds[0]
	}
	entry := m.Entry(kind)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImage, kind)
	}
	if entry.BinFile == "" || entry.DatFile == "" {
		return nil, fmt.Errorf("%w: %s entry lacks bin_file or dat_file", ErrNoImage, kind)
	}

	dat, err := readFile(zr, entry.DatFile)
	if err != nil {
		return nil, err
	}
	bin, err := readFile(zr, entry.BinFile)
	if err != nil {
		return nil, err
	}

	return &Package{
		Kind:       kind,
		Entry:      *entry,
		InitPacket: dat,
		Firmware:   bin,
		Manifest:   m,
	}, nil
}

func readFile(zr *zip.Reader, name string) ([]byte, error) {
	name = path.Clean(name)
	for _, f := range zr.File {
		if path.Clean(f.Name) != name {
			continue
		}
		if f.UncompressedSize64 > maxFileSize {
			return nil, fmt.Errorf("%s is %d bytes, larger than %d", name, f.UncompressedSize64, maxFileSize)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
		}
		return data, nil
	}
	if name == ManifestName {
		return nil, ErrNoManifest
	}
	return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}
