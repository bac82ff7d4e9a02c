package pe

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// SectionFor returns the first section, in table order, whose range holds rva.
func (h *PeHeader) SectionFor(rva uint64) (*SectionHeader, error) {
	for i := range h.Sections {
		if h.Sections[i].Contains(rva) {
			return &h.Sections[i], nil
		}
	}
	return nil, noSectionFor(rva)
}

func noSectionFor(rva uint64) error {
	return &ParseError{Kind: KindNoSectionForRva, Detail: fmt.Sprintf("RVA 0x%X", rva)}
}

// span is the part of one section's raw data that Data holds, from a resolved offset.
// cut reports that Data ends before the section's declared raw data does.
type span struct {
	off, end uint64
	cut      bool
}

// locate maps rva to the file offset and the end of its section's raw data in Data.
func (h *PeHeader) locate(rva uint64) (uint64, uint64, error) {
	sp, err := h.locateSpan(rva)
	return sp.off, sp.end, err
}

// locateSpan is locate with truncation reported. An RVA past the section's
// declared raw data is OutOfBounds; one that the declared data covers but the
// buffer does not is Insufficient.
func (h *PeHeader) locateSpan(rva uint64) (span, error) {
	s, err := h.SectionFor(rva)
	if err != nil {
		return span{}, err
	}
	off := s.Offset(rva)
	declared := uint64(s.PointerToRawData) + uint64(s.SizeOfRawData)
	n := uint64(len(h.Data))
	if off > declared {
		return span{}, newError(KindOutOfBounds, int(min(off, n)),
			"RVA 0x%X 映射到 0x%X, 超出节区原始数据 0x%X", rva, off, declared)
	}
	if off > n {
		return span{}, newError(KindInsufficient, int(n),
			"RVA 0x%X 映射到 0x%X, 数据在 0x%X 处截断", rva, off, n)
	}
	return span{off: off, end: min(declared, n), cut: declared > n}, nil
}

// Resolve returns the bytes from rva to the end of the owning section's raw data.
func (h *PeHeader) Resolve(rva uint64) ([]byte, error) {
	off, end, err := h.locate(rva)
	if err != nil {
		return nil, err
	}
	return h.Data[off:end:end], nil
}

// ResolveSize returns exactly size bytes starting at rva. The bytes may run past
// the owning section as long as Data holds them.
func (h *PeHeader) ResolveSize(rva, size uint64) ([]byte, error) {
	sp, err := h.locateSpan(rva)
	if err != nil {
		return nil, err
	}
	off, n := sp.off, uint64(len(h.Data))
	if size > n-off {
		kind := KindOutOfBounds
		if sp.cut {
			kind = KindInsufficient
		}
		return nil, newError(kind, int(off), "需要 0x%X 字节, 剩余 0x%X 字节", size, n-off)
	}
	return h.Data[off : off+size : off+size], nil
}

// ResolveString reads the NUL-terminated UTF-8 string at rva.
func (h *PeHeader) ResolveString(rva uint64) (string, error) {
	sp, err := h.locateSpan(rva)
	if err != nil {
		return "", err
	}
	return h.stringAt(sp)
}

// stringAt reads the NUL-terminated string starting at sp.off. A missing NUL
// in a span cut short by the end of Data is Insufficient.
func (h *PeHeader) stringAt(sp span) (string, error) {
	str, err := cString(h.Data[sp.off:sp.end], int(sp.off))
	if err != nil && sp.cut && KindOf(err) == KindNotNulTerminated {
		return "", newError(KindInsufficient, int(sp.end), "字符串在 0x%X 处被截断", sp.end)
	}
	return str, err
}

// cString splits raw at the first NUL; base is raw's offset for error reporting.
func cString(raw []byte, base int) (string, error) {
	i := bytes.IndexByte(raw, 0)
	if i < 0 {
		return "", newError(KindNotNulTerminated, base, "在 %d 字节内未找到 NUL", len(raw))
	}
	if !utf8.Valid(raw[:i]) {
		return "", newError(KindInvalidUTF8, base, "%q", raw[:i])
	}
	return string(raw[:i]), nil
}
