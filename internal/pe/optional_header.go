package pe

import "encoding/binary"

const (
	optionalHeader32Fixed = 96
	optionalHeader64Fixed = 112
	dataDirectorySize     = 8
)

// DataDirectory locates one special-purpose table by RVA and size.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// IsZero reports whether the slot is absent.
func (d DataDirectory) IsZero() bool {
	return d.VirtualAddress == 0 && d.Size == 0
}

func parseDataDirectory(c *cursor) DataDirectory {
	var d DataDirectory
	c.scope("Data directory", func() {
		d.VirtualAddress = c.u32()
		d.Size = c.u32()
	})
	return d
}

// OptionalHeader is either *OptionalHeader32 or *OptionalHeader64.
type OptionalHeader interface {
	// Size is the number of bytes the header occupies on disk.
	Size() int
	Is64() bool
	ImageSize() uint32
	EntryPoint() uint32
	ImageBaseAddress() uint64
	Directories() []DataDirectory
	// DataDirectory returns the slot at idx, or false when it is missing or zero.
	DataDirectory(idx DataDirectoryIndex) (DataDirectory, bool)

	optionalHeader()
}

// OptionalHeader32 is the PE32 layout.
type OptionalHeader32 struct {
	Magic                       OptionalHeaderMagic
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   SubSystem
	DllCharacteristics          DllCharacteristics
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	DataDirectories             []DataDirectory
}

// OptionalHeader64 is the PE32+ layout.
type OptionalHeader64 struct {
	Magic                       OptionalHeaderMagic
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   SubSystem
	DllCharacteristics          DllCharacteristics
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	DataDirectories             []DataDirectory
}

func (*OptionalHeader32) optionalHeader() {}
func (*OptionalHeader64) optionalHeader() {}

func (h *OptionalHeader32) Size() int {
	return optionalHeader32Fixed + dataDirectorySize*len(h.DataDirectories)
}

func (h *OptionalHeader64) Size() int {
	return optionalHeader64Fixed + dataDirectorySize*len(h.DataDirectories)
}

func (*OptionalHeader32) Is64() bool { return false }
func (*OptionalHeader64) Is64() bool { return true }

func (h *OptionalHeader32) ImageSize() uint32 { return h.SizeOfImage }
func (h *OptionalHeader64) ImageSize() uint32 { return h.SizeOfImage }

func (h *OptionalHeader32) EntryPoint() uint32 { return h.AddressOfEntryPoint }
func (h *OptionalHeader64) EntryPoint() uint32 { return h.AddressOfEntryPoint }

func (h *OptionalHeader32) ImageBaseAddress() uint64 { return uint64(h.ImageBase) }
func (h *OptionalHeader64) ImageBaseAddress() uint64 { return h.ImageBase }

func (h *OptionalHeader32) Directories() []DataDirectory { return h.DataDirectories }
func (h *OptionalHeader64) Directories() []DataDirectory { return h.DataDirectories }

func (h *OptionalHeader32) DataDirectory(idx DataDirectoryIndex) (DataDirectory, bool) {
	return lookupDirectory(h.DataDirectories, idx)
}

func (h *OptionalHeader64) DataDirectory(idx DataDirectoryIndex) (DataDirectory, bool) {
	return lookupDirectory(h.DataDirectories, idx)
}

func lookupDirectory(dirs []DataDirectory, idx DataDirectoryIndex) (DataDirectory, bool) {
	if idx < 0 || int(idx) >= len(dirs) || dirs[idx].IsZero() {
		return DataDirectory{}, false
	}
	return dirs[idx], true
}

// parseOptionalHeader peeks the magic to pick a layout; the chosen layout reads it again.
func parseOptionalHeader(c *cursor) OptionalHeader {
	var oh OptionalHeader
	c.scope("Optional header", func() {
		b := c.peek(2)
		if b == nil {
			c.take(2)
			return
		}
		magic := OptionalHeaderMagic(binary.LittleEndian.Uint16(b))
		if !magic.known() {
			c.fail(KindUnknownVariant, c.pos(), "optional header magic 0x%X", uint16(magic))
			return
		}
		if magic == MagicHeader64 {
			h := parseOptionalHeader64(c)
			if c.err == nil {
				oh = h
			}
			return
		}
		h := parseOptionalHeader32(c)
		if c.err == nil {
			oh = h
		}
	})
	return oh
}

func verifyMagic(c *cursor, want OptionalHeaderMagic) OptionalHeaderMagic {
	at := c.pos()
	m := OptionalHeaderMagic(c.u16())
	if c.err == nil && m != want {
		c.fail(KindBadMagic, at, "optional header magic: 期望 %s, 实际 %s", want, m)
	}
	return m
}

func parseDirectories(c *cursor) []DataDirectory {
	n := c.boundedCount(MaxDataDirectories, "number_of_rva_and_sizes")
	return repeat(c, n, parseDataDirectory)
}

// checkAlignment enforces size_of_image % file_alignment == 0.
func checkAlignment(c *cursor, at int, sizeOfImage, fileAlignment uint32) {
	c.scope("alignment check", func() {
		if fileAlignment == 0 {
			c.fail(KindMisaligned, at, "file_alignment 为 0")
			return
		}
		if sizeOfImage%fileAlignment != 0 {
			c.fail(KindMisaligned, at, "size_of_image 0x%X 不是 file_alignment 0x%X 的倍数",
				sizeOfImage, fileAlignment)
		}
	})
}

func parseOptionalHeader32(c *cursor) *OptionalHeader32 {
	h := &OptionalHeader32{}
	at := c.pos()
	c.scope("Optional header 32", func() {
		h.Magic = verifyMagic(c, MagicHeader32)
		h.MajorLinkerVersion = c.u8()
		h.MinorLinkerVersion = c.u8()
		h.SizeOfCode = c.u32()
		h.SizeOfInitializedData = c.u32()
		h.SizeOfUninitializedData = c.u32()
		h.AddressOfEntryPoint = c.u32()
		h.BaseOfCode = c.u32()
		h.BaseOfData = c.u32()
		h.ImageBase = c.u32()
		h.SectionAlignment = c.u32()
		h.FileAlignment = c.u32()
		h.MajorOperatingSystemVersion = c.u16()
		h.MinorOperatingSystemVersion = c.u16()
		h.MajorImageVersion = c.u16()
		h.MinorImageVersion = c.u16()
		h.MajorSubsystemVersion = c.u16()
		h.MinorSubsystemVersion = c.u16()
		h.Win32VersionValue = c.u32()
		h.SizeOfImage = c.u32()
		h.SizeOfHeaders = c.u32()
		h.CheckSum = c.u32()
		h.Subsystem = enum16(c, "subsystem", SubSystem.known)
		h.DllCharacteristics = DecodeDllCharacteristics(c.u16())
		h.SizeOfStackReserve = c.u32()
		h.SizeOfStackCommit = c.u32()
		h.SizeOfHeapReserve = c.u32()
		h.SizeOfHeapCommit = c.u32()
		h.LoaderFlags = c.u32()
		h.DataDirectories = parseDirectories(c)
		if c.err == nil {
			checkAlignment(c, at, h.SizeOfImage, h.FileAlignment)
		}
	})
	return h
}

func parseOptionalHeader64(c *cursor) *OptionalHeader64 {
	h := &OptionalHeader64{}
	at := c.pos()
	c.scope("Optional header 64", func() {
		h.Magic = verifyMagic(c, MagicHeader64)
		h.MajorLinkerVersion = c.u8()
		h.MinorLinkerVersion = c.u8()
		h.SizeOfCode = c.u32()
		h.SizeOfInitializedData = c.u32()
		h.SizeOfUninitializedData = c.u32()
		h.AddressOfEntryPoint = c.u32()
		h.BaseOfCode = c.u32()
		h.ImageBase = c.u64()
		h.SectionAlignment = c.u32()
		h.FileAlignment = c.u32()
		h.MajorOperatingSystemVersion = c.u16()
		h.MinorOperatingSystemVersion = c.u16()
		h.MajorImageVersion = c.u16()
		h.MinorImageVersion = c.u16()
		h.MajorSubsystemVersion = c.u16()
		h.MinorSubsystemVersion = c.u16()
		h.Win32VersionValue = c.u32()
		h.SizeOfImage = c.u32()
		h.SizeOfHeaders = c.u32()
		h.CheckSum = c.u32()
		h.Subsystem = enum16(c, "subsystem", SubSystem.known)
		h.DllCharacteristics = DecodeDllCharacteristics(c.u16())
		h.SizeOfStackReserve = c.u64()
		h.SizeOfStackCommit = c.u64()
		h.SizeOfHeapReserve = c.u64()
		h.SizeOfHeapCommit = c.u64()
		h.LoaderFlags = c.u32()
		h.DataDirectories = parseDirectories(c)
		if c.err == nil {
			checkAlignment(c, at, h.SizeOfImage, h.FileAlignment)
		}
	})
	return h
}
