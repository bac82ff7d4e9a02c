package pe

import (
	"fmt"
)

const exportDirectorySize = 40

// ExportDirectory represents the PE export directory table.
type ExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// Export is one named entry of the export table.
type Export struct {
	Name    string
	Ordinal uint32
	// RVA is zero when the name ordinal points past AddressOfFunctions.
	RVA uint32
}

func parseExportDirectory(c *cursor) ExportDirectory {
	var d ExportDirectory
	c.scope("Export directory", func() {
		d.Characteristics = c.u32()
		d.TimeDateStamp = c.u32()
		d.MajorVersion = c.u16()
		d.MinorVersion = c.u16()
		d.Name = c.u32()
		d.Base = c.u32()
		d.NumberOfFunctions = c.u32()
		d.NumberOfNames = c.u32()
		d.AddressOfFunctions = c.u32()
		d.AddressOfNames = c.u32()
		d.AddressOfNameOrdinals = c.u32()
	})
	return d
}

// resolveArray reads n fixed-size entries at rva with decode.
func resolveArray[T any](h *PeHeader, rva uint32, n uint32, width uint64, decode func(*cursor) T) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	off, _, err := h.locate(uint64(rva))
	if err != nil {
		return nil, err
	}
	raw, err := h.ResolveSize(uint64(rva), uint64(n)*width)
	if err != nil {
		return nil, err
	}
	c := viewCursor(raw, int(off))
	out := repeat(c, int(n), decode)
	return out, c.err
}

// Exports reads the export directory and its named entries in name-table order.
// A missing directory yields nil without error.
func (h *PeHeader) Exports() (*ExportDirectory, []Export, error) {
	dir, ok := h.OptionalHeader.DataDirectory(DirectoryExportTable)
	if !ok {
		return nil, nil, nil
	}

	exports, ed, err := h.walkExports(dir)
	if err != nil {
		return nil, nil, withContext("Export table", err)
	}
	return ed, exports, nil
}

func (h *PeHeader) walkExports(dir DataDirectory) ([]Export, *ExportDirectory, error) {
	off, _, err := h.locate(uint64(dir.VirtualAddress))
	if err != nil {
		return nil, nil, err
	}
	raw, err := h.ResolveSize(uint64(dir.VirtualAddress), exportDirectorySize)
	if err != nil {
		return nil, nil, err
	}
	c := viewCursor(raw, int(off))
	ed := parseExportDirectory(c)
	if c.err != nil {
		return nil, nil, c.err
	}

	names, err := resolveArray(h, ed.AddressOfNames, ed.NumberOfNames, 4, (*cursor).u32)
	if err != nil {
		return nil, nil, withContext("Export name pointers", err)
	}
	ordinals, err := resolveArray(h, ed.AddressOfNameOrdinals, ed.NumberOfNames, 2, (*cursor).u16)
	if err != nil {
		return nil, nil, withContext("Export name ordinals", err)
	}
	functions, err := resolveArray(h, ed.AddressOfFunctions, ed.NumberOfFunctions, 4, (*cursor).u32)
	if err != nil {
		return nil, nil, withContext("Export functions", err)
	}

	exports := make([]Export, 0, len(names))
	for i, nameRVA := range names {
		name, err := h.ResolveString(uint64(nameRVA))
		if err != nil {
			return nil, nil, withContext(fmt.Sprintf("Export name %d", i), err)
		}
		e := Export{Name: name, Ordinal: ed.Base + uint32(ordinals[i])}
		if idx := int(ordinals[i]); idx < len(functions) {
			e.RVA = functions[idx]
		}
		exports = append(exports, e)
	}
	return exports, &ed, nil
}
