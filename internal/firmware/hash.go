package firmware

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest identifies a package image by content: the SHA-256 of the init
// packet followed by the firmware image.
func (p *Package) Digest() string {
	h := sha256.New()
	h.Write(p.InitPacket)
	h.Write(p.Firmware)
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

// ShortHash returns a shortened version of a digest for display purposes.
func ShortHash(digest string) string {
	// Remove "sha256:" prefix and take first 12 chars
	if len(digest) > 19 {
		return digest[7:19]
	}
	return digest
}
