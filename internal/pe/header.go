package pe

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

var peMagic = []byte("PE\x00\x00")

// PeHeader is everything from the PE signature through the section table.
type PeHeader struct {
	Signature      uint32
	FileHeader     FileHeader
	OptionalHeader OptionalHeader
	// Sections keeps file order; RVA lookup scans it front to back.
	Sections []SectionHeader
	// Data is the input truncated to min(size_of_image, len(input)).
	// Every RVA is resolved against it.
	Data []byte
}

// ParseHeader decodes the PE header found at offset lfanew of buf, where buf is the
// whole file. It returns the header and the offset just past the section table.
func ParseHeader(buf []byte, lfanew uint32, logger hclog.Logger) (*PeHeader, int, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if uint64(lfanew) > uint64(len(buf)) {
		err := newError(KindInsufficient, len(buf), "e_lfanew 0x%X 超出文件长度 0x%X", lfanew, len(buf))
		return nil, 0, withContext("PE header", err)
	}

	c := newCursor(buf, int(lfanew))
	h := &PeHeader{}
	c.scope("PE header", func() {
		c.tag(peMagic, "PE signature")
		if c.err != nil {
			return
		}
		h.Signature = binary.LittleEndian.Uint32(peMagic)
		h.FileHeader = parseFileHeader(c)
		optAt := c.pos()
		h.OptionalHeader = parseOptionalHeader(c)
		if c.err != nil {
			return
		}

		declared := int(h.FileHeader.SizeOfOptionalHeader)
		if size := h.OptionalHeader.Size(); size != declared {
			c.scope("Optional header does not match", func() {
				c.fail(KindHeaderSizeMismatch, optAt, "声明 %d 字节, 实际 %d 字节", declared, size)
			})
			return
		}

		c.scope("Section table", func() {
			h.Sections = repeat(c, int(h.FileHeader.NumberOfSections), parseSectionHeader)
		})
	})
	if c.err != nil {
		return nil, 0, c.err
	}

	view := min(uint64(h.OptionalHeader.ImageSize()), uint64(len(buf)))
	h.Data = buf[:view:view]
	logger.Debug("Parsed PE header",
		"pe_offset", fmt.Sprintf("0x%x", lfanew),
		"machine", h.FileHeader.Machine,
		"magic", optionalMagic(h.OptionalHeader),
		"sections", len(h.Sections))
	logger.Trace("Truncated data view to image size",
		"size_of_image", fmt.Sprintf("0x%x", h.OptionalHeader.ImageSize()),
		"buffer", len(buf),
		"view", len(h.Data))

	return h, c.off, nil
}

func optionalMagic(oh OptionalHeader) OptionalHeaderMagic {
	switch h := oh.(type) {
	case *OptionalHeader32:
		return h.Magic
	case *OptionalHeader64:
		return h.Magic
	}
	return 0
}

// Is64 reports whether the image uses the PE32+ layout.
func (h *PeHeader) Is64() bool {
	return h.OptionalHeader.Is64()
}

// SectionData returns the raw bytes of section i as stored in the file, clipped to Data.
func (h *PeHeader) SectionData(i int) []byte {
	if i < 0 || i >= len(h.Sections) {
		return nil
	}
	s := &h.Sections[i]
	start := uint64(s.PointerToRawData)
	end := start + uint64(s.SizeOfRawData)
	n := uint64(len(h.Data))
	if start >= n {
		return nil
	}
	return h.Data[start:min(end, n)]
}
