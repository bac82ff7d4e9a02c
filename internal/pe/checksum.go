package pe

import (
	"encoding/binary"
)

// ChecksumInfo contains PE checksum verification results.
type ChecksumInfo struct {
	Stored   uint32
	Computed uint32
	Valid    bool
}

// ChecksumOffset returns the file offset of the optional header CheckSum field.
// It sits at the same place in both layouts.
func ChecksumOffset(dos *DosHeader) int {
	return int(dos.Lfanew) + len(peMagic) + FileHeaderSize + 64
}

// VerifyChecksum recomputes the image checksum over the whole buffer.
// A stored value of 0 means the image is not checksummed and is reported as valid.
func VerifyChecksum(p *Pe) *ChecksumInfo {
	var stored uint32
	switch oh := p.Header.OptionalHeader.(type) {
	case *OptionalHeader32:
		stored = oh.CheckSum
	case *OptionalHeader64:
		stored = oh.CheckSum
	}

	if stored == 0 {
		return &ChecksumInfo{Valid: true}
	}

	computed := CalculateChecksum(p.Data, ChecksumOffset(&p.DosHeader))
	return &ChecksumInfo{
		Stored:   stored,
		Computed: computed,
		Valid:    stored == computed,
	}
}

// CalculateChecksum computes the PE checksum of data with the 4 bytes at
// checksumOffset read as zero. A negative offset zeroes nothing.
func CalculateChecksum(data []byte, checksumOffset int) uint32 {
	var checksum uint64
	var buf [4]byte

	// Process file in 4-byte chunks
	for offset := 0; offset < len(data); offset += 4 {
		// The last partial DWORD is zero padded.
		buf = [4]byte{}
		copy(buf[:], data[offset:])

		// The CheckSum field counts as zero; it may straddle two DWORDs.
		if checksumOffset >= 0 {
			for i := range buf {
				if pos := offset + i; pos >= checksumOffset && pos < checksumOffset+4 {
					buf[i] = 0
				}
			}
		}

		checksum += uint64(binary.LittleEndian.Uint32(buf[:]))

		// Fold high 32 bits into low 32 bits
		if checksum > 0xFFFFFFFF {
			checksum = (checksum & 0xFFFFFFFF) + (checksum >> 32)
		}
	}

	checksum = (checksum & 0xFFFF) + (checksum >> 16)
	checksum += checksum >> 16
	checksum &= 0xFFFF

	return uint32(checksum) + uint32(len(data))
}
