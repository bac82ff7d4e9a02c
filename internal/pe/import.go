package pe

import (
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"
)

const (
	importDescriptorSize = 20
	ordinalFlag32        = 0x80000000
	ordinalFlag64        = 0x8000000000000000
)

// ImportDescriptor is one IMAGE_IMPORT_DESCRIPTOR entry.
type ImportDescriptor struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

func parseImportDescriptor(c *cursor) ImportDescriptor {
	var d ImportDescriptor
	c.scope("Import descriptor", func() {
		d.OriginalFirstThunk = c.u32()
		d.TimeDateStamp = c.u32()
		d.ForwarderChain = c.u32()
		d.Name = c.u32()
		d.FirstThunk = c.u32()
	})
	return d
}

// ImportSymbol is either an OrdinalImport or a NamedImport.
type ImportSymbol interface {
	String() string
	importSymbol()
}

// OrdinalImport is a thunk with the ordinal flag set; the flag is cleared.
type OrdinalImport uint64

// NamedImport is a thunk pointing at a hint/name pair.
type NamedImport struct {
	Hint uint16
	Name string
}

func (OrdinalImport) importSymbol() {}
func (NamedImport) importSymbol()   {}

func (o OrdinalImport) String() string {
	return fmt.Sprintf("#%d", uint64(o))
}

func (n NamedImport) String() string {
	return n.Name
}

// ImportedModule is one DLL and the symbols taken from it, in thunk order.
type ImportedModule struct {
	Name       string
	Descriptor ImportDescriptor
	Symbols    []ImportSymbol
}

// Imports walks the import directory. A missing directory yields an empty table.
func (h *PeHeader) Imports(logger hclog.Logger) ([]ImportedModule, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	dir, ok := h.OptionalHeader.DataDirectory(DirectoryImportTable)
	if !ok {
		logger.Trace("No import directory present")
		return nil, nil
	}

	modules, err := h.walkImports(dir, logger)
	if err != nil {
		return nil, withContext("Import table", err)
	}
	logger.Debug("Walked import table",
		"rva", fmt.Sprintf("0x%x", dir.VirtualAddress),
		"modules", len(modules))
	return modules, nil
}

func (h *PeHeader) walkImports(dir DataDirectory, logger hclog.Logger) ([]ImportedModule, error) {
	off, end, err := h.locate(uint64(dir.VirtualAddress))
	if err != nil {
		return nil, err
	}
	c := viewCursor(h.Data[off:end], int(off))

	var modules []ImportedModule
	for {
		d := parseImportDescriptor(c)
		if c.err != nil {
			return nil, c.err
		}
		if d.FirstThunk == 0 {
			break
		}

		name, err := h.ResolveString(uint64(d.Name))
		if err != nil {
			return nil, withContext("Import module name", err)
		}
		symbols, err := h.walkThunks(d.FirstThunk)
		if err != nil {
			return nil, withContext("Import thunks", err)
		}
		logger.Trace("Import descriptor",
			"module", name,
			"first_thunk", fmt.Sprintf("0x%x", d.FirstThunk),
			"symbols", len(symbols))
		modules = append(modules, ImportedModule{Name: name, Descriptor: d, Symbols: symbols})
	}
	return modules, nil
}

// walkThunks reads pointer-width entries at rva until a zero entry.
func (h *PeHeader) walkThunks(rva uint32) ([]ImportSymbol, error) {
	off, end, err := h.locate(uint64(rva))
	if err != nil {
		return nil, err
	}
	c := viewCursor(h.Data[off:end], int(off))
	is64 := h.Is64()

	var symbols []ImportSymbol
	for {
		var v, flag uint64
		if is64 {
			v, flag = c.u64(), ordinalFlag64
		} else {
			v, flag = uint64(c.u32()), ordinalFlag32
		}
		if c.err != nil {
			return nil, c.err
		}
		if v == 0 {
			return symbols, nil
		}
		if v&flag != 0 {
			symbols = append(symbols, OrdinalImport(v&^flag))
			continue
		}
		sym, err := h.importByName(v)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
}

func (h *PeHeader) importByName(rva uint64) (NamedImport, error) {
	var sym NamedImport
	if rva > math.MaxUint32 {
		return sym, withContext("Import by name", noSectionFor(rva))
	}
	sp, err := h.locateSpan(rva)
	if err != nil {
		return sym, withContext("Import by name", err)
	}
	c := viewCursor(h.Data[sp.off:sp.end], int(sp.off))
	c.scope("Import by name", func() {
		sym.Hint = c.u16()
		if c.err != nil {
			return
		}
		name, err := h.stringAt(span{off: uint64(c.pos()), end: sp.end, cut: sp.cut})
		if err != nil {
			c.err = err
			return
		}
		sym.Name = name
	})
	return sym, c.err
}
