package pe

// CodeCave is a run of padding bytes inside a section's raw data.
type CodeCave struct {
	Section  string // Section name.
	Offset   uint32 // File offset.
	RVA      uint32 // Relative Virtual Address.
	Size     uint32 // Available size in bytes.
	FillByte byte   // Fill pattern (0x00 or 0xCC).
}

// CodeCaveDetector finds code caves in a parsed image.
type CodeCaveDetector struct {
	header *PeHeader
}

// NewCodeCaveDetector creates a new code cave detector.
func NewCodeCaveDetector(h *PeHeader) *CodeCaveDetector {
	return &CodeCaveDetector{header: h}
}

// FindCodeCaves searches for code caves in all sections.
// minSize specifies the minimum cave size in bytes.
func (d *CodeCaveDetector) FindCodeCaves(minSize uint32) []CodeCave {
	var caves []CodeCave
	for i := range d.header.Sections {
		caves = append(caves, d.findInSection(i, minSize)...)
	}
	return caves
}

// findInSection scans one section for runs of 0x00 or 0xCC.
func (d *CodeCaveDetector) findInSection(idx int, minSize uint32) []CodeCave {
	section := &d.header.Sections[idx]
	data := d.header.SectionData(idx)

	var caves []CodeCave
	caveStart := -1
	var fillByte byte

	for i, b := range data {
		if b == 0x00 || b == 0xCC {
			if caveStart == -1 {
				caveStart = i
				fillByte = b
			} else if b != fillByte {
				// Different fill byte, end previous cave and start new one.
				if uint32(i-caveStart) >= minSize {
					caves = append(caves, newCodeCave(section, caveStart, i, fillByte))
				}
				caveStart = i
				fillByte = b
			}
			continue
		}
		if caveStart != -1 && uint32(i-caveStart) >= minSize {
			caves = append(caves, newCodeCave(section, caveStart, i, fillByte))
		}
		caveStart = -1
	}

	// Handle cave extending to end of section.
	if caveStart != -1 && uint32(len(data)-caveStart) >= minSize {
		caves = append(caves, newCodeCave(section, caveStart, len(data), fillByte))
	}

	return caves
}

func newCodeCave(section *SectionHeader, start, end int, fillByte byte) CodeCave {
	return CodeCave{
		Section:  section.Name.String(),
		Offset:   section.PointerToRawData + uint32(start),
		RVA:      section.VirtualAddress + uint32(start),
		Size:     uint32(end - start),
		FillByte: fillByte,
	}
}
