package pe

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// SectionHeaderSize is the on-disk size of one section table entry.
const SectionHeaderSize = 40

const sectionNameSize = 8

// SectionName is either a ShortName or a LongNameOffset.
type SectionName interface {
	String() string
	sectionName()
}

// ShortName is a name stored inline in the 8-byte field.
type ShortName string

// LongNameOffset is the decimal offset that followed "/" in the name field.
// It points into the COFF string table, which is not read.
type LongNameOffset uint64

func (ShortName) sectionName()      {}
func (LongNameOffset) sectionName() {}

func (n ShortName) String() string { return string(n) }

func (n LongNameOffset) String() string {
	return "/" + strconv.FormatUint(uint64(n), 10)
}

// SectionHeader is one entry of the section table.
type SectionHeader struct {
	Name SectionName
	// PhysicalAddress shares its slot with VirtualSize and is used as such
	// by Contains.
	PhysicalAddress      uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      SectionCharacteristics
}

// Contains reports whether rva falls in [VirtualAddress, VirtualAddress+PhysicalAddress).
func (s *SectionHeader) Contains(rva uint64) bool {
	va := uint64(s.VirtualAddress)
	return rva >= va && rva < va+uint64(s.PhysicalAddress)
}

// Offset maps an rva inside the section to a file offset.
// The result is meaningless unless Contains(rva) holds.
func (s *SectionHeader) Offset(rva uint64) uint64 {
	return uint64(s.PointerToRawData) + (rva - uint64(s.VirtualAddress))
}

// Permissions renders the memory flags as "RWX" with '-' for unset bits.
func (s *SectionHeader) Permissions() string {
	perms := []byte("---")
	if s.Characteristics.MemoryRead {
		perms[0] = 'R'
	}
	if s.Characteristics.MemoryWrite {
		perms[1] = 'W'
	}
	if s.Characteristics.MemoryExecute {
		perms[2] = 'X'
	}
	return string(perms)
}

func parseSectionName(c *cursor) SectionName {
	var name SectionName
	c.scope("Section name", func() {
		at := c.pos()
		raw := c.take(sectionNameSize)
		if raw == nil {
			return
		}
		if i := bytes.IndexByte(raw, 0); i >= 0 {
			raw = raw[:i]
		}
		if !utf8.Valid(raw) {
			c.fail(KindInvalidUTF8, at, "section name %q", raw)
			return
		}
		s := string(raw)
		if len(s) > 0 && s[0] == '/' {
			off, err := strconv.ParseUint(s[1:], 10, 64)
			if err != nil {
				c.fail(KindBadLongName, at+1, "%q", s)
				return
			}
			name = LongNameOffset(off)
			return
		}
		name = ShortName(s)
	})
	return name
}

func parseSectionHeader(c *cursor) SectionHeader {
	var s SectionHeader
	c.scope("Section header", func() {
		s.Name = parseSectionName(c)
		s.PhysicalAddress = c.u32()
		s.VirtualAddress = c.u32()
		s.SizeOfRawData = c.u32()
		s.PointerToRawData = c.u32()
		s.PointerToRelocations = c.u32()
		s.PointerToLinenumbers = c.u32()
		s.NumberOfRelocations = c.u16()
		s.NumberOfLinenumbers = c.u16()
		s.Characteristics = DecodeSectionCharacteristics(c.u32())
	})
	return s
}
