package pe

import (
	"fmt"
)

// Info contains analyzed PE file information.
type Info struct {
	FilePath           string        `yaml:"file_path"`
	FileSize           int64         `yaml:"file_size"`
	Architecture       string        `yaml:"architecture"`
	Format             string        `yaml:"format"`
	Subsystem          string        `yaml:"subsystem"`
	EntryPoint         uint64        `yaml:"entry_point"`
	ImageBase          uint64        `yaml:"image_base"`
	ImageSize          uint32        `yaml:"image_size"`
	TimeDateStamp      uint32        `yaml:"time_date_stamp"`
	Characteristics    string        `yaml:"characteristics"`
	DllCharacteristics string        `yaml:"dll_characteristics"`
	Checksum           *ChecksumInfo `yaml:"checksum"`
	Sections           []SectionInfo `yaml:"sections"`
	Imports            []ImportInfo  `yaml:"imports"`
	Exports            []string      `yaml:"exports"`
}

// SectionInfo contains information about a PE section.
type SectionInfo struct {
	Name            string  `yaml:"name"`
	VirtualAddress  uint32  `yaml:"virtual_address"`
	VirtualSize     uint32  `yaml:"virtual_size"`
	Size            uint32  `yaml:"size"`
	Characteristics string  `yaml:"characteristics"`
	Permissions     string  `yaml:"permissions"`
	Entropy         float64 `yaml:"entropy"`
}

// ImportInfo contains information about imported DLL and functions.
type ImportInfo struct {
	DLL       string   `yaml:"dll"`
	Functions []string `yaml:"functions"`
}

// Analyzer extracts information from parsed PE images.
type Analyzer struct {
	pe       *Pe
	filepath string
	filesize int64
}

// NewAnalyzer creates a new analyzer for the given reader.
func NewAnalyzer(r *Reader) *Analyzer {
	return &Analyzer{pe: r.Pe(), filepath: r.FilePath(), filesize: r.FileSize()}
}

// NewBufferAnalyzer analyzes an image that is already parsed in memory.
func NewBufferAnalyzer(p *Pe, name string) *Analyzer {
	return &Analyzer{pe: p, filepath: name, filesize: int64(len(p.Data))}
}

// Analyze extracts all information from the PE file.
func (a *Analyzer) Analyze() (*Info, error) {
	if a.pe == nil {
		return nil, fmt.Errorf("文件已关闭: %s", a.filepath)
	}

	info := &Info{
		FilePath: a.filepath,
		FileSize: a.filesize,
	}

	a.extractBasicInfo(info)
	a.extractSections(info)
	a.extractImports(info)
	a.extractExports(info)
	info.Checksum = VerifyChecksum(a.pe)

	return info, nil
}

func (a *Analyzer) extractBasicInfo(info *Info) {
	fh := &a.pe.Header.FileHeader
	switch fh.Machine {
	case MachineI386:
		info.Architecture = "x86 (32位)"
	case MachineAMD64:
		info.Architecture = "x64 (64位)"
	case MachineIA64:
		info.Architecture = "IA64 (64位)"
	default:
		info.Architecture = fmt.Sprintf("未知 (0x%X)", uint16(fh.Machine))
	}
	info.TimeDateStamp = fh.TimeDateStamp
	info.Characteristics = fh.Characteristics.String()

	oh := a.pe.Header.OptionalHeader
	info.EntryPoint = uint64(oh.EntryPoint())
	info.ImageBase = oh.ImageBaseAddress()
	info.ImageSize = oh.ImageSize()

	switch opt := oh.(type) {
	case *OptionalHeader32:
		info.Format = opt.Magic.String()
		info.Subsystem = getSubsystem(opt.Subsystem)
		info.DllCharacteristics = opt.DllCharacteristics.String()
	case *OptionalHeader64:
		info.Format = opt.Magic.String()
		info.Subsystem = getSubsystem(opt.Subsystem)
		info.DllCharacteristics = opt.DllCharacteristics.String()
	}
}

func (a *Analyzer) extractSections(info *Info) {
	h := a.pe.Header
	for i := range h.Sections {
		section := &h.Sections[i]
		info.Sections = append(info.Sections, SectionInfo{
			Name:            section.Name.String(),
			VirtualAddress:  section.VirtualAddress,
			VirtualSize:     section.PhysicalAddress,
			Size:            section.SizeOfRawData,
			Characteristics: section.Characteristics.String(),
			Permissions:     section.Permissions(),
			Entropy:         CalculateSectionEntropy(h, i),
		})
	}
}

func (a *Analyzer) extractImports(info *Info) {
	for _, m := range a.pe.Imports {
		funcs := make([]string, 0, len(m.Symbols))
		for _, s := range m.Symbols {
			funcs = append(funcs, s.String())
		}
		info.Imports = append(info.Imports, ImportInfo{
			DLL:       m.Name,
			Functions: funcs,
		})
	}
}

func (a *Analyzer) extractExports(info *Info) {
	_, exports, err := a.pe.Header.Exports()
	if err != nil {
		// Silently ignore export parsing errors
		return
	}
	for _, e := range exports {
		info.Exports = append(info.Exports, e.Name)
	}
}

func getSubsystem(subsystem SubSystem) string {
	switch subsystem {
	case SubSystemWindowsGui:
		return "Windows GUI"
	case SubSystemWindowsCui:
		return "Windows 控制台"
	case SubSystemNative:
		return "Native"
	default:
		if subsystem.known() {
			return subsystem.String()
		}
		return fmt.Sprintf("未知 (0x%X)", uint16(subsystem))
	}
}
