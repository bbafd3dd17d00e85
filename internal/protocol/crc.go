package protocol

import "hash/crc32"

// CRC32 returns the IEEE CRC32 of data, the checksum the bootloader reports.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// UpdateCRC32 extends a running CRC32 with data.
func UpdateCRC32(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, data)
}
