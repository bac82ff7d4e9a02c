// Package petest assembles small PE images for tests.
//
// Fixed header records are packed with struc in little-endian order. Layout is
// always the same: e_lfanew 0x80, the section table right after the optional
// header, and section raw data from the first 0x200 boundary after the headers,
// each section padded to 0x200.
package petest

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
)

// Layout constants of every built image.
const (
	Lfanew               = 0x80
	OptionalHeaderOffset = Lfanew + 4 + 20
	RawAlignment         = 0x200
	SectionAlignment     = 0x1000

	ImageBase32 = 0x400000
	ImageBase64 = 0x140000000

	MachineI386  = 0x014c
	MachineIA64  = 0x0200
	MachineAMD64 = 0x8664

	Magic32  = 0x10b
	Magic64  = 0x20b
	MagicRom = 0x107

	SubsystemWindowsCui = 3

	// Data directory slots used by fixtures.
	DirExport      = 0
	DirImport      = 1
	DirBaseReloc   = 5
	DirTLS         = 9
	NumDirectories = 16

	// Section characteristics used by fixtures.
	ScnCode    = 0x00000020
	ScnData    = 0x00000040
	ScnExecute = 0x20000000
	ScnRead    = 0x40000000
	ScnWrite   = 0x80000000

	ordinalFlag32 = 0x80000000
	ordinalFlag64 = 0x8000000000000000
)

// Directory is one data directory slot.
type Directory struct {
	VirtualAddress uint32 `struc:"uint32,little"`
	Size           uint32 `struc:"uint32,little"`
}

// Section is one section of the image. Data is padded to RawAlignment.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32 // zero means the padded raw size
	Data            []byte
	Characteristics uint32
}

// Image describes the image to build. Zero values pick sensible defaults.
type Image struct {
	Is64               bool
	Machine            uint16
	Characteristics    uint16
	Magic              uint16
	FileAlignment      uint32
	SizeOfImage        uint32
	Subsystem          uint16
	DllCharacteristics uint16
	CheckSum           uint32
	EntryPoint         uint32
	// NumberOfRvaAndSizes is written as is; at most 16 directories follow it.
	NumberOfRvaAndSizes uint32
	// OptionalHeaderSizeDelta is added to the declared SizeOfOptionalHeader.
	OptionalHeaderSizeDelta int
	Directories             [NumDirectories]Directory
	Sections                []Section
}

// New32 returns a PE32 image with no sections.
func New32() *Image {
	return &Image{
		Machine:             MachineI386,
		Characteristics:     0x0102,
		FileAlignment:       RawAlignment,
		Subsystem:           SubsystemWindowsCui,
		EntryPoint:          0x1000,
		NumberOfRvaAndSizes: NumDirectories,
	}
}

// New64 returns a PE32+ image with no sections.
func New64() *Image {
	im := New32()
	im.Is64 = true
	im.Machine = MachineAMD64
	im.Characteristics = 0x0022
	return im
}

// NextVA is the virtual address the next added section will get.
func (im *Image) NextVA() uint32 {
	return SectionAlignment * uint32(len(im.Sections)+1)
}

// AddSection appends a section at NextVA and returns its virtual address.
func (im *Image) AddSection(name string, data []byte, characteristics uint32) uint32 {
	va := im.NextVA()
	im.Sections = append(im.Sections, Section{
		Name:            name,
		VirtualAddress:  va,
		Data:            data,
		Characteristics: characteristics,
	})
	return va
}

// AddImports adds an .idata section for modules and points the import directory at it.
func (im *Image) AddImports(modules ...Module) uint32 {
	va := im.NextVA()
	im.AddSection(".idata", ImportData(va, im.Is64, modules), ScnData|ScnRead|ScnWrite)
	im.Directories[DirImport] = Directory{VirtualAddress: va, Size: uint32(len(modules)+1) * 20}
	return va
}

// OptionalHeaderSize is the number of bytes the optional header occupies.
func (im *Image) OptionalHeaderSize() int {
	fixed := 96
	if im.Is64 {
		fixed = 112
	}
	return fixed + 8*int(min(im.NumberOfRvaAndSizes, NumDirectories))
}

// HeaderEnd is the offset just past the section table.
func (im *Image) HeaderEnd() int {
	return OptionalHeaderOffset + im.OptionalHeaderSize() + 40*len(im.Sections)
}

// RawStart is the file offset of the first section's raw data.
func (im *Image) RawStart() int {
	return alignUp(im.HeaderEnd(), RawAlignment)
}

// RawOffset is the file offset of section i's raw data.
func (im *Image) RawOffset(i int) int {
	off := im.RawStart()
	for _, s := range im.Sections[:i] {
		off += alignUp(len(s.Data), RawAlignment)
	}
	return off
}

type dosHeader struct {
	Magic  uint16     `struc:"uint16,little"`
	Fields [29]uint16 `struc:"[29]uint16,little"`
	Lfanew uint32     `struc:"uint32,little"`
}

type fileHeader struct {
	Machine              uint16 `struc:"uint16,little"`
	NumberOfSections     uint16 `struc:"uint16,little"`
	TimeDateStamp        uint32 `struc:"uint32,little"`
	PointerToSymbolTable uint32 `struc:"uint32,little"`
	NumberOfSymbols      uint32 `struc:"uint32,little"`
	SizeOfOptionalHeader uint16 `struc:"uint16,little"`
	Characteristics      uint16 `struc:"uint16,little"`
}

// optionalCommon is the run of fields shared by both layouts after ImageBase.
type optionalCommon struct {
	SectionAlignment            uint32 `struc:"uint32,little"`
	FileAlignment               uint32 `struc:"uint32,little"`
	MajorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MinorOperatingSystemVersion uint16 `struc:"uint16,little"`
	MajorImageVersion           uint16 `struc:"uint16,little"`
	MinorImageVersion           uint16 `struc:"uint16,little"`
	MajorSubsystemVersion       uint16 `struc:"uint16,little"`
	MinorSubsystemVersion       uint16 `struc:"uint16,little"`
	Win32VersionValue           uint32 `struc:"uint32,little"`
	SizeOfImage                 uint32 `struc:"uint32,little"`
	SizeOfHeaders               uint32 `struc:"uint32,little"`
	CheckSum                    uint32 `struc:"uint32,little"`
	Subsystem                   uint16 `struc:"uint16,little"`
	DllCharacteristics          uint16 `struc:"uint16,little"`
}

type optionalHead32 struct {
	Magic                   uint16 `struc:"uint16,little"`
	MajorLinkerVersion      uint8  `struc:"uint8"`
	MinorLinkerVersion      uint8  `struc:"uint8"`
	SizeOfCode              uint32 `struc:"uint32,little"`
	SizeOfInitializedData   uint32 `struc:"uint32,little"`
	SizeOfUninitializedData uint32 `struc:"uint32,little"`
	AddressOfEntryPoint     uint32 `struc:"uint32,little"`
	BaseOfCode              uint32 `struc:"uint32,little"`
	BaseOfData              uint32 `struc:"uint32,little"`
	ImageBase               uint32 `struc:"uint32,little"`
}

type optionalHead64 struct {
	Magic                   uint16 `struc:"uint16,little"`
	MajorLinkerVersion      uint8  `struc:"uint8"`
	MinorLinkerVersion      uint8  `struc:"uint8"`
	SizeOfCode              uint32 `struc:"uint32,little"`
	SizeOfInitializedData   uint32 `struc:"uint32,little"`
	SizeOfUninitializedData uint32 `struc:"uint32,little"`
	AddressOfEntryPoint     uint32 `struc:"uint32,little"`
	BaseOfCode              uint32 `struc:"uint32,little"`
	ImageBase               uint64 `struc:"uint64,little"`
}

type optionalTail32 struct {
	SizeOfStackReserve  uint32 `struc:"uint32,little"`
	SizeOfStackCommit   uint32 `struc:"uint32,little"`
	SizeOfHeapReserve   uint32 `struc:"uint32,little"`
	SizeOfHeapCommit    uint32 `struc:"uint32,little"`
	LoaderFlags         uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes uint32 `struc:"uint32,little"`
}

type optionalTail64 struct {
	SizeOfStackReserve  uint64 `struc:"uint64,little"`
	SizeOfStackCommit   uint64 `struc:"uint64,little"`
	SizeOfHeapReserve   uint64 `struc:"uint64,little"`
	SizeOfHeapCommit    uint64 `struc:"uint64,little"`
	LoaderFlags         uint32 `struc:"uint32,little"`
	NumberOfRvaAndSizes uint32 `struc:"uint32,little"`
}

type sectionHeader struct {
	Name                 [8]byte `struc:"[8]byte"`
	VirtualSize          uint32  `struc:"uint32,little"`
	VirtualAddress       uint32  `struc:"uint32,little"`
	SizeOfRawData        uint32  `struc:"uint32,little"`
	PointerToRawData     uint32  `struc:"uint32,little"`
	PointerToRelocations uint32  `struc:"uint32,little"`
	PointerToLinenumbers uint32  `struc:"uint32,little"`
	NumberOfRelocations  uint16  `struc:"uint16,little"`
	NumberOfLinenumbers  uint16  `struc:"uint16,little"`
	Characteristics      uint32  `struc:"uint32,little"`
}

// Build serializes the image. It panics only if a record cannot be packed.
func (im *Image) Build() []byte {
	var buf bytes.Buffer
	pack := func(v any) {
		if err := struc.Pack(&buf, v); err != nil {
			panic(err)
		}
	}

	pack(&dosHeader{Magic: 0x5A4D, Lfanew: Lfanew})
	buf.Write(make([]byte, Lfanew-buf.Len()))
	buf.WriteString("PE\x00\x00")

	pack(&fileHeader{
		Machine:              im.Machine,
		NumberOfSections:     uint16(len(im.Sections)),
		TimeDateStamp:        0x5F000000,
		SizeOfOptionalHeader: uint16(im.OptionalHeaderSize() + im.OptionalHeaderSizeDelta),
		Characteristics:      im.Characteristics,
	})

	common := optionalCommon{
		SectionAlignment:            SectionAlignment,
		FileAlignment:               im.FileAlignment,
		MajorOperatingSystemVersion: 6,
		MajorSubsystemVersion:       6,
		SizeOfImage:                 im.sizeOfImage(),
		SizeOfHeaders:               uint32(im.RawStart()),
		CheckSum:                    im.CheckSum,
		Subsystem:                   im.Subsystem,
		DllCharacteristics:          im.DllCharacteristics,
	}
	if im.Is64 {
		magic := im.Magic
		if magic == 0 {
			magic = Magic64
		}
		pack(&optionalHead64{
			Magic:               magic,
			MajorLinkerVersion:  14,
			AddressOfEntryPoint: im.EntryPoint,
			BaseOfCode:          SectionAlignment,
			ImageBase:           ImageBase64,
		})
		pack(&common)
		pack(&optionalTail64{
			SizeOfStackReserve:  0x100000,
			SizeOfStackCommit:   0x1000,
			SizeOfHeapReserve:   0x100000,
			SizeOfHeapCommit:    0x1000,
			NumberOfRvaAndSizes: im.NumberOfRvaAndSizes,
		})
	} else {
		magic := im.Magic
		if magic == 0 {
			magic = Magic32
		}
		pack(&optionalHead32{
			Magic:               magic,
			MajorLinkerVersion:  14,
			AddressOfEntryPoint: im.EntryPoint,
			BaseOfCode:          SectionAlignment,
			ImageBase:           ImageBase32,
		})
		pack(&common)
		pack(&optionalTail32{
			SizeOfStackReserve:  0x100000,
			SizeOfStackCommit:   0x1000,
			SizeOfHeapReserve:   0x100000,
			SizeOfHeapCommit:    0x1000,
			NumberOfRvaAndSizes: im.NumberOfRvaAndSizes,
		})
	}
	for i := 0; i < int(min(im.NumberOfRvaAndSizes, NumDirectories)); i++ {
		pack(&im.Directories[i])
	}

	for i, s := range im.Sections {
		raw := alignUp(len(s.Data), RawAlignment)
		h := sectionHeader{
			VirtualSize:      s.VirtualSize,
			VirtualAddress:   s.VirtualAddress,
			SizeOfRawData:    uint32(raw),
			PointerToRawData: uint32(im.RawOffset(i)),
			Characteristics:  s.Characteristics,
		}
		if h.VirtualSize == 0 {
			h.VirtualSize = uint32(raw)
		}
		copy(h.Name[:], s.Name)
		pack(&h)
	}

	buf.Write(make([]byte, im.RawStart()-buf.Len()))
	for _, s := range im.Sections {
		buf.Write(s.Data)
		buf.Write(make([]byte, alignUp(len(s.Data), RawAlignment)-len(s.Data)))
	}
	return buf.Bytes()
}

func (im *Image) sizeOfImage() uint32 {
	if im.SizeOfImage != 0 {
		return im.SizeOfImage
	}
	size := uint32(im.RawOffset(len(im.Sections)))
	return max(im.NextVA(), uint32(alignUp(int(size), SectionAlignment)))
}

// Module is one imported DLL.
type Module struct {
	Name    string
	Symbols []Symbol
}

// Symbol is imported by name when Name is set, otherwise by Ordinal.
type Symbol struct {
	Hint    uint16
	Name    string
	Ordinal uint64
}

// ImportData lays out a complete import table for a section at va: the descriptor
// array with its zero terminator, then per module the DLL name, hint/name pairs,
// the lookup table and the address table.
func ImportData(va uint32, is64 bool, modules []Module) []byte {
	descSize := (len(modules) + 1) * 20
	desc := make([]byte, descSize)
	var tail []byte
	at := func() uint32 { return va + uint32(descSize+len(tail)) }

	for i, m := range modules {
		nameRVA := at()
		tail = append(tail, m.Name...)
		tail = append(tail, 0)

		var thunks []uint64
		for _, s := range m.Symbols {
			if s.Name == "" {
				flag := uint64(ordinalFlag32)
				if is64 {
					flag = ordinalFlag64
				}
				thunks = append(thunks, flag|s.Ordinal)
				continue
			}
			if len(tail)%2 == 1 {
				tail = append(tail, 0)
			}
			thunks = append(thunks, uint64(at()))
			tail = binary.LittleEndian.AppendUint16(tail, s.Hint)
			tail = append(tail, s.Name...)
			tail = append(tail, 0)
		}
		thunks = append(thunks, 0)

		lookup := at()
		tail = appendThunks(tail, thunks, is64)
		address := at()
		tail = appendThunks(tail, thunks, is64)

		d := desc[i*20:]
		binary.LittleEndian.PutUint32(d[0:], lookup)
		binary.LittleEndian.PutUint32(d[12:], nameRVA)
		binary.LittleEndian.PutUint32(d[16:], address)
	}
	return append(desc, tail...)
}

func appendThunks(b []byte, thunks []uint64, is64 bool) []byte {
	for _, t := range thunks {
		if is64 {
			b = binary.LittleEndian.AppendUint64(b, t)
		} else {
			b = binary.LittleEndian.AppendUint32(b, uint32(t))
		}
	}
	return b
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
