package pe

// FileHeaderSize is the size of the COFF file header.
const FileHeaderSize = 20

// FileHeader is the COFF file header that follows the PE signature.
type FileHeader struct {
	Machine              FileMachine
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      FileCharacteristics
}

func parseFileHeader(c *cursor) FileHeader {
	var h FileHeader
	c.scope("File header", func() {
		h.Machine = enum16(c, "machine", FileMachine.known)
		h.NumberOfSections = c.u16()
		h.TimeDateStamp = c.u32()
		h.PointerToSymbolTable = c.u32()
		h.NumberOfSymbols = c.u32()
		h.SizeOfOptionalHeader = c.u16()
		h.Characteristics = DecodeFileCharacteristics(c.u16())
	})
	return h
}
