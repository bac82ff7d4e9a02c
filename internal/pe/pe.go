package pe

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options tunes a parse.
type Options struct {
	// Logger receives Debug and Trace events. Nil discards them.
	Logger hclog.Logger
}

func (o Options) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

// Pe is a fully parsed image. It holds slices of the buffer it was parsed from,
// so that buffer must stay valid and unmodified while the Pe is in use.
type Pe struct {
	Data      []byte
	DosHeader DosHeader
	Header    *PeHeader
	Imports   []ImportedModule
}

// ExeInfo is a coarse platform summary of an image.
type ExeInfo struct {
	OS   string
	Arch string
	Bits int
}

// ImportPair is one (module, symbol) entry of the flattened import list.
type ImportPair struct {
	Module string
	Symbol ImportSymbol
}

// ParseDosHeader decodes only the MZ header.
func ParseDosHeader(buf []byte) (*DosHeader, error) {
	c := newCursor(buf, 0)
	h := parseDosHeader(c)
	if c.err != nil {
		return nil, c.err
	}
	return &h, nil
}

// ParseHeaders decodes the DOS and PE headers without walking imports.
func ParseHeaders(buf []byte) (*DosHeader, *PeHeader, error) {
	return parseHeaders(buf, hclog.NewNullLogger())
}

func parseHeaders(buf []byte, logger hclog.Logger) (*DosHeader, *PeHeader, error) {
	dos, err := ParseDosHeader(buf)
	if err != nil {
		return nil, nil, err
	}
	h, _, err := ParseHeader(buf, dos.Lfanew, logger)
	if err != nil {
		return nil, nil, err
	}
	return dos, h, nil
}

// Parse decodes the whole image including the import table.
func Parse(buf []byte) (*Pe, error) {
	return ParseWithOptions(buf, Options{})
}

// ParseWithOptions is Parse with a logger.
func ParseWithOptions(buf []byte, opts Options) (*Pe, error) {
	logger := opts.logger()
	dos, h, err := parseHeaders(buf, logger)
	if err != nil {
		return nil, err
	}
	imports, err := h.Imports(logger)
	if err != nil {
		return nil, err
	}
	return &Pe{
		Data:      buf,
		DosHeader: *dos,
		Header:    h,
		Imports:   imports,
	}, nil
}

// Arch reports os, architecture family and pointer width from the machine type.
func (p *Pe) Arch() ExeInfo {
	info := ExeInfo{OS: "windows"}
	switch p.Header.FileHeader.Machine {
	case MachineIA64:
		info.Arch, info.Bits = "ia", 64
	case MachineAMD64:
		info.Arch, info.Bits = "x86", 64
	default:
		info.Arch, info.Bits = "x86", 32
	}
	return info
}

// Symbols flattens Imports into (module, symbol) pairs, keeping order.
func (p *Pe) Symbols() []ImportPair {
	var pairs []ImportPair
	for _, m := range p.Imports {
		for _, s := range m.Symbols {
			pairs = append(pairs, ImportPair{Module: m.Name, Symbol: s})
		}
	}
	return pairs
}

// Module returns the imported module with the given name, compared case-insensitively.
func (p *Pe) Module(name string) (*ImportedModule, bool) {
	for i := range p.Imports {
		if strings.EqualFold(p.Imports[i].Name, name) {
			return &p.Imports[i], true
		}
	}
	return nil, false
}

// DataAt returns length bytes of the truncated image view starting at file offset start.
func (p *Pe) DataAt(start, length int) ([]byte, error) {
	data := p.Header.Data
	if start < 0 || length < 0 || start > len(data) || length > len(data)-start {
		return nil, newError(KindOutOfBounds, start, "请求 0x%X 字节, 视图长度 0x%X", length, len(data))
	}
	return data[start : start+length], nil
}
