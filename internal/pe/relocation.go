package pe

import (
	"fmt"
)

const (
	relocationBlockHeaderSize = 8
	maxRelocationBlockSize    = 0x10000
)

// RelocationInfo summarises the base relocation directory. Nothing is applied.
type RelocationInfo struct {
	HasRelocations bool
	BlockCount     int
	TotalEntries   int
	// TypeCounts counts entries per relocation type.
	TypeCounts map[RelocationType]int
}

// RelocationType is the high nibble of a base relocation entry.
type RelocationType uint16

// Relocation types
const (
	RelBasedAbsolute      RelocationType = 0
	RelBasedHigh          RelocationType = 1
	RelBasedLow           RelocationType = 2
	RelBasedHighLow       RelocationType = 3
	RelBasedHighAdj       RelocationType = 4
	RelBasedMipsJmpAddr   RelocationType = 5
	RelBasedThumbMov32    RelocationType = 7
	RelBasedMipsJmpAddr16 RelocationType = 9
	RelBasedDir64         RelocationType = 10
)

// Relocations walks the base relocation blocks of the directory.
func (h *PeHeader) Relocations() (*RelocationInfo, error) {
	info := &RelocationInfo{TypeCounts: make(map[RelocationType]int)}

	dir, ok := h.OptionalHeader.DataDirectory(DirectoryBaseRelocationTable)
	if !ok {
		return info, nil // No relocations
	}
	info.HasRelocations = true

	off, _, err := h.locate(uint64(dir.VirtualAddress))
	if err != nil {
		return info, withContext("Base relocation table", err)
	}
	raw, err := h.ResolveSize(uint64(dir.VirtualAddress), uint64(dir.Size))
	if err != nil {
		return info, withContext("Base relocation table", err)
	}

	c := viewCursor(raw, int(off))
	for c.remaining() >= relocationBlockHeaderSize {
		at := c.pos()
		c.u32() // page RVA
		size := c.u32()
		if size == 0 {
			break
		}
		if size < relocationBlockHeaderSize || size > maxRelocationBlockSize {
			return info, withContext("Base relocation block",
				newError(KindOutOfBounds, at, "SizeOfBlock 0x%X", size))
		}

		entries := int(size-relocationBlockHeaderSize) / 2
		c.scope("Base relocation block", func() {
			for i := 0; i < entries && c.err == nil; i++ {
				e := c.u16()
				if c.err == nil {
					info.TypeCounts[RelocationType(e>>12)]++
				}
			}
		})
		if c.err != nil {
			return info, c.err
		}
		info.TotalEntries += entries
		info.BlockCount++
	}

	return info, nil
}

func (t RelocationType) String() string {
	switch t {
	case RelBasedAbsolute:
		return "ABSOLUTE"
	case RelBasedHigh:
		return "HIGH"
	case RelBasedLow:
		return "LOW"
	case RelBasedHighLow:
		return "HIGHLOW"
	case RelBasedHighAdj:
		return "HIGHADJ"
	case RelBasedMipsJmpAddr:
		return "MIPS_JMPADDR/ARM_MOV32"
	case RelBasedThumbMov32:
		return "THUMB_MOV32"
	case RelBasedMipsJmpAddr16:
		return "MIPS_JMPADDR16"
	case RelBasedDir64:
		return "DIR64"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}
