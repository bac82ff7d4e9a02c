package pe

import (
	"fmt"
	"strings"
)

type flagBits interface {
	~uint16 | ~uint32
}

// flagDef binds one bit of a raw field to one bool of a flag record.
type flagDef[R any, T flagBits] struct {
	mask  T
	name  string
	field func(*R) *bool
}

// decodeFlags sets every defined flag whose bit is present and ignores the rest.
func decodeFlags[R any, T flagBits](raw T, defs []flagDef[R, T]) R {
	var r R
	for _, d := range defs {
		if raw&d.mask == d.mask {
			*d.field(&r) = true
		}
	}
	return r
}

func encodeFlags[R any, T flagBits](r *R, defs []flagDef[R, T]) T {
	var raw T
	for _, d := range defs {
		if *d.field(r) {
			raw |= d.mask
		}
	}
	return raw
}

func flagNames[R any, T flagBits](r *R, defs []flagDef[R, T]) []string {
	var names []string
	for _, d := range defs {
		if *d.field(r) {
			names = append(names, d.name)
		}
	}
	return names
}

// FileCharacteristics is the decoded COFF characteristics field.
type FileCharacteristics struct {
	RelocsStripped       bool
	ExecutableImage      bool
	LineNumsStripped     bool
	LocalSymsStripped    bool
	AggressiveWsTrim     bool
	LargeAddressAware    bool
	BytesReversedLo      bool
	Machine32Bit         bool
	DebugStripped        bool
	RemovableRunFromSwap bool
	NetRunFromSwap       bool
	System               bool
	Dll                  bool
	UpSystemOnly         bool
	BytesReversedHi      bool
}

var fileCharacteristicsDefs = []flagDef[FileCharacteristics, uint16]{
	{0x0001, "RelocsStripped", func(r *FileCharacteristics) *bool { return &r.RelocsStripped }},
	{0x0002, "ExecutableImage", func(r *FileCharacteristics) *bool { return &r.ExecutableImage }},
	{0x0004, "LineNumsStripped", func(r *FileCharacteristics) *bool { return &r.LineNumsStripped }},
	{0x0008, "LocalSymsStripped", func(r *FileCharacteristics) *bool { return &r.LocalSymsStripped }},
	{0x0010, "AggressiveWsTrim", func(r *FileCharacteristics) *bool { return &r.AggressiveWsTrim }},
	{0x0020, "LargeAddressAware", func(r *FileCharacteristics) *bool { return &r.LargeAddressAware }},
	{0x0080, "BytesReversedLo", func(r *FileCharacteristics) *bool { return &r.BytesReversedLo }},
	{0x0100, "Machine32Bit", func(r *FileCharacteristics) *bool { return &r.Machine32Bit }},
	{0x0200, "DebugStripped", func(r *FileCharacteristics) *bool { return &r.DebugStripped }},
	{0x0400, "RemovableRunFromSwap", func(r *FileCharacteristics) *bool { return &r.RemovableRunFromSwap }},
	{0x0800, "NetRunFromSwap", func(r *FileCharacteristics) *bool { return &r.NetRunFromSwap }},
	{0x1000, "System", func(r *FileCharacteristics) *bool { return &r.System }},
	{0x2000, "Dll", func(r *FileCharacteristics) *bool { return &r.Dll }},
	{0x4000, "UpSystemOnly", func(r *FileCharacteristics) *bool { return &r.UpSystemOnly }},
	{0x8000, "BytesReversedHi", func(r *FileCharacteristics) *bool { return &r.BytesReversedHi }},
}

// DecodeFileCharacteristics never fails; undefined bits are dropped.
func DecodeFileCharacteristics(raw uint16) FileCharacteristics {
	return decodeFlags(raw, fileCharacteristicsDefs)
}

// Bits re-encodes the defined flags.
func (f FileCharacteristics) Bits() uint16 {
	return encodeFlags(&f, fileCharacteristicsDefs)
}

func (f FileCharacteristics) String() string {
	return strings.Join(flagNames(&f, fileCharacteristicsDefs), ", ")
}

// DllCharacteristics is the decoded optional header DllCharacteristics field.
type DllCharacteristics struct {
	Reserved1           bool
	Reserved2           bool
	Reserved3           bool
	Reserved4           bool
	DynamicBase         bool
	ForceIntegrity      bool
	NxCompat            bool
	NoIsolation         bool
	NoSeh               bool
	NoBind              bool
	Reserved5           bool
	WdmDriver           bool
	Reserved6           bool
	TerminalServerAware bool
}

var dllCharacteristicsDefs = []flagDef[DllCharacteristics, uint16]{
	{0x0001, "Reserved1", func(r *DllCharacteristics) *bool { return &r.Reserved1 }},
	{0x0002, "Reserved2", func(r *DllCharacteristics) *bool { return &r.Reserved2 }},
	{0x0004, "Reserved3", func(r *DllCharacteristics) *bool { return &r.Reserved3 }},
	{0x0008, "Reserved4", func(r *DllCharacteristics) *bool { return &r.Reserved4 }},
	{0x0040, "DynamicBase", func(r *DllCharacteristics) *bool { return &r.DynamicBase }},
	{0x0080, "ForceIntegrity", func(r *DllCharacteristics) *bool { return &r.ForceIntegrity }},
	{0x0100, "NxCompat", func(r *DllCharacteristics) *bool { return &r.NxCompat }},
	{0x0200, "NoIsolation", func(r *DllCharacteristics) *bool { return &r.NoIsolation }},
	{0x0400, "NoSeh", func(r *DllCharacteristics) *bool { return &r.NoSeh }},
	{0x0800, "NoBind", func(r *DllCharacteristics) *bool { return &r.NoBind }},
	{0x1000, "Reserved5", func(r *DllCharacteristics) *bool { return &r.Reserved5 }},
	{0x2000, "WdmDriver", func(r *DllCharacteristics) *bool { return &r.WdmDriver }},
	{0x4000, "Reserved6", func(r *DllCharacteristics) *bool { return &r.Reserved6 }},
	{0x8000, "TerminalServerAware", func(r *DllCharacteristics) *bool { return &r.TerminalServerAware }},
}

// DecodeDllCharacteristics never fails; undefined bits are dropped.
func DecodeDllCharacteristics(raw uint16) DllCharacteristics {
	return decodeFlags(raw, dllCharacteristicsDefs)
}

// Bits re-encodes the defined flags.
func (d DllCharacteristics) Bits() uint16 {
	return encodeFlags(&d, dllCharacteristicsDefs)
}

func (d DllCharacteristics) String() string {
	return strings.Join(flagNames(&d, dllCharacteristicsDefs), ", ")
}

// SectionAlignment is the 4-bit IMAGE_SCN_ALIGN_* field of section characteristics.
// Zero means no alignment was given.
type SectionAlignment uint8

const (
	sectionAlignShift = 20
	sectionAlignMask  = 0x00F0_0000
)

func (a SectionAlignment) known() bool {
	return a >= 1 && a <= 14
}

// Bytes returns the alignment in bytes, or 0 when unset.
func (a SectionAlignment) Bytes() uint32 {
	if !a.known() {
		return 0
	}
	return 1 << (a - 1)
}

func (a SectionAlignment) String() string {
	if !a.known() {
		return ""
	}
	return fmt.Sprintf("Align%dBytes", a.Bytes())
}

// SectionCharacteristics is the decoded section header characteristics field.
type SectionCharacteristics struct {
	Reserved1                    bool
	Reserved2                    bool
	Reserved3                    bool
	TypeNoPad                    bool
	Reserved4                    bool
	ContainsCode                 bool
	ContainsInitializedData      bool
	ContainsUninitializedData    bool
	LinkOther                    bool
	LinkInfo                     bool
	Reserved5                    bool
	LinkRemoved                  bool
	LinkComdat                   bool
	Reserved6                    bool
	NoDeferSpeculativeExceptions bool
	GlobalPointerReferences      bool
	Reserved7                    bool
	MemoryPurgeable              bool
	MemoryLocked                 bool
	MemoryPreload                bool
	LinkNRelocOverflow           bool
	MemoryDiscardable            bool
	MemoryNotCached              bool
	MemoryNotPaged               bool
	MemoryShared                 bool
	MemoryExecute                bool
	MemoryRead                   bool
	MemoryWrite                  bool

	Alignment SectionAlignment
}

var sectionCharacteristicsDefs = []flagDef[SectionCharacteristics, uint32]{
	{0x0000_0001, "Reserved1", func(r *SectionCharacteristics) *bool { return &r.Reserved1 }},
	{0x0000_0002, "Reserved2", func(r *SectionCharacteristics) *bool { return &r.Reserved2 }},
	{0x0000_0004, "Reserved3", func(r *SectionCharacteristics) *bool { return &r.Reserved3 }},
	{0x0000_0008, "TypeNoPad", func(r *SectionCharacteristics) *bool { return &r.TypeNoPad }},
	{0x0000_0010, "Reserved4", func(r *SectionCharacteristics) *bool { return &r.Reserved4 }},
	{0x0000_0020, "ContainsCode", func(r *SectionCharacteristics) *bool { return &r.ContainsCode }},
	{0x0000_0040, "ContainsInitializedData", func(r *SectionCharacteristics) *bool { return &r.ContainsInitializedData }},
	{0x0000_0080, "ContainsUninitializedData", func(r *SectionCharacteristics) *bool { return &r.ContainsUninitializedData }},
	{0x0000_0100, "LinkOther", func(r *SectionCharacteristics) *bool { return &r.LinkOther }},
	{0x0000_0200, "LinkInfo", func(r *SectionCharacteristics) *bool { return &r.LinkInfo }},
	{0x0000_0400, "Reserved5", func(r *SectionCharacteristics) *bool { return &r.Reserved5 }},
	{0x0000_0800, "LinkRemoved", func(r *SectionCharacteristics) *bool { return &r.LinkRemoved }},
	{0x0000_1000, "LinkComdat", func(r *SectionCharacteristics) *bool { return &r.LinkComdat }},
	{0x0000_2000, "Reserved6", func(r *SectionCharacteristics) *bool { return &r.Reserved6 }},
	{0x0000_4000, "NoDeferSpeculativeExceptions", func(r *SectionCharacteristics) *bool { return &r.NoDeferSpeculativeExceptions }},
	{0x0000_8000, "GlobalPointerReferences", func(r *SectionCharacteristics) *bool { return &r.GlobalPointerReferences }},
	{0x0001_0000, "Reserved7", func(r *SectionCharacteristics) *bool { return &r.Reserved7 }},
	{0x0002_0000, "MemoryPurgeable", func(r *SectionCharacteristics) *bool { return &r.MemoryPurgeable }},
	{0x0004_0000, "MemoryLocked", func(r *SectionCharacteristics) *bool { return &r.MemoryLocked }},
	{0x0008_0000, "MemoryPreload", func(r *SectionCharacteristics) *bool { return &r.MemoryPreload }},
	{0x0100_0000, "LinkNRelocOverflow", func(r *SectionCharacteristics) *bool { return &r.LinkNRelocOverflow }},
	{0x0200_0000, "MemoryDiscardable", func(r *SectionCharacteristics) *bool { return &r.MemoryDiscardable }},
	{0x0400_0000, "MemoryNotCached", func(r *SectionCharacteristics) *bool { return &r.MemoryNotCached }},
	{0x0800_0000, "MemoryNotPaged", func(r *SectionCharacteristics) *bool { return &r.MemoryNotPaged }},
	{0x1000_0000, "MemoryShared", func(r *SectionCharacteristics) *bool { return &r.MemoryShared }},
	{0x2000_0000, "MemoryExecute", func(r *SectionCharacteristics) *bool { return &r.MemoryExecute }},
	{0x4000_0000, "MemoryRead", func(r *SectionCharacteristics) *bool { return &r.MemoryRead }},
	{0x8000_0000, "MemoryWrite", func(r *SectionCharacteristics) *bool { return &r.MemoryWrite }},
}

// DecodeSectionCharacteristics never fails. The alignment nibble value 15 has no
// meaning and decodes as unset.
func DecodeSectionCharacteristics(raw uint32) SectionCharacteristics {
	s := decodeFlags(raw, sectionCharacteristicsDefs)
	if a := SectionAlignment((raw & sectionAlignMask) >> sectionAlignShift); a.known() {
		s.Alignment = a
	}
	return s
}

// Bits re-encodes the defined flags and the alignment nibble.
func (s SectionCharacteristics) Bits() uint32 {
	raw := encodeFlags(&s, sectionCharacteristicsDefs)
	if s.Alignment.known() {
		raw |= uint32(s.Alignment) << sectionAlignShift
	}
	return raw
}

func (s SectionCharacteristics) String() string {
	names := flagNames(&s, sectionCharacteristicsDefs)
	if s.Alignment.known() {
		names = append(names, s.Alignment.String())
	}
	return strings.Join(names, ", ")
}
