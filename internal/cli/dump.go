package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ZacharyZcR/pedump/internal/pe"
)

// dumper writes "name: value" lines, two spaces of indent per level.
type dumper struct {
	w     io.Writer
	depth int
}

func (d *dumper) line(format string, args ...any) {
	fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.depth), fmt.Sprintf(format, args...))
}

func (d *dumper) hex(name string, v any) {
	d.line("%s: 0x%x", name, v)
}

func (d *dumper) nested(name string, fn func()) {
	d.line("%s:", name)
	d.depth++
	fn()
	d.depth--
}

// Dump writes an indented text rendering of every parsed structure of p.
func Dump(w io.Writer, p *pe.Pe) {
	d := &dumper{w: w}
	d.nested("dos_header", func() { d.dosHeader(&p.DosHeader) })
	d.nested("pe_header", func() { d.peHeader(p.Header) })
	d.nested("imports", func() {
		for _, m := range p.Imports {
			d.nested(m.Name, func() {
				for _, s := range m.Symbols {
					d.symbol(s)
				}
			})
		}
	})
}

func (d *dumper) dosHeader(h *pe.DosHeader) {
	d.line("magic: 0x%04x", h.Magic)
	d.hex("cblp", h.Cblp)
	d.hex("cp", h.Cp)
	d.hex("crlc", h.Crlc)
	d.hex("cparhdr", h.Cparhdr)
	d.hex("minalloc", h.Minalloc)
	d.hex("maxalloc", h.Maxalloc)
	d.hex("ss", h.Ss)
	d.hex("sp", h.Sp)
	d.hex("csum", h.Csum)
	d.hex("ip", h.Ip)
	d.hex("cs", h.Cs)
	d.hex("lfarlc", h.Lfarlc)
	d.hex("ovno", h.Ovno)
	d.line("res: %#x", h.Res[:])
	d.hex("oemid", h.Oemid)
	d.hex("oeminfo", h.Oeminfo)
	d.line("res2: %#x", h.Res2[:])
	d.hex("lfanew", h.Lfanew)
}

func (d *dumper) peHeader(h *pe.PeHeader) {
	d.line("signature: 0x%08x", h.Signature)
	d.nested("file_header", func() { d.fileHeader(&h.FileHeader) })
	d.nested("optional_header", func() { d.optionalHeader(h.OptionalHeader) })
	d.nested("sections", func() {
		for i := range h.Sections {
			d.nested(h.Sections[i].Name.String(), func() { d.section(&h.Sections[i]) })
		}
	})
}

func (d *dumper) fileHeader(h *pe.FileHeader) {
	d.line("machine: %s", h.Machine)
	d.hex("number_of_sections", h.NumberOfSections)
	d.line("time_date_stamp: %s", time.Unix(int64(h.TimeDateStamp), 0).UTC().Format(time.RFC3339))
	d.hex("pointer_to_symbol_table", h.PointerToSymbolTable)
	d.hex("number_of_symbols", h.NumberOfSymbols)
	d.hex("size_of_optional_header", h.SizeOfOptionalHeader)
	d.line("characteristics: %s", h.Characteristics)
}

func (d *dumper) optionalHeader(oh pe.OptionalHeader) {
	switch h := oh.(type) {
	case *pe.OptionalHeader32:
		d.line("magic: %s", h.Magic)
		d.hex("major_linker_version", h.MajorLinkerVersion)
		d.hex("minor_linker_version", h.MinorLinkerVersion)
		d.hex("size_of_code", h.SizeOfCode)
		d.hex("size_of_initialized_data", h.SizeOfInitializedData)
		d.hex("size_of_uninitialized_data", h.SizeOfUninitializedData)
		d.hex("address_of_entry_point", h.AddressOfEntryPoint)
		d.hex("base_of_code", h.BaseOfCode)
		d.hex("base_of_data", h.BaseOfData)
		d.hex("image_base", h.ImageBase)
		d.hex("section_alignment", h.SectionAlignment)
		d.hex("file_alignment", h.FileAlignment)
		d.versions(h.MajorOperatingSystemVersion, h.MinorOperatingSystemVersion,
			h.MajorImageVersion, h.MinorImageVersion,
			h.MajorSubsystemVersion, h.MinorSubsystemVersion)
		d.hex("win32_version_value", h.Win32VersionValue)
		d.hex("size_of_image", h.SizeOfImage)
		d.hex("size_of_headers", h.SizeOfHeaders)
		d.hex("check_sum", h.CheckSum)
		d.line("subsystem: %s", h.Subsystem)
		d.line("dll_characteristics: %s", h.DllCharacteristics)
		d.hex("size_of_stack_reserve", h.SizeOfStackReserve)
		d.hex("size_of_stack_commit", h.SizeOfStackCommit)
		d.hex("size_of_heap_reserve", h.SizeOfHeapReserve)
		d.hex("size_of_heap_commit", h.SizeOfHeapCommit)
		d.hex("loader_flags", h.LoaderFlags)
	case *pe.OptionalHeader64:
		d.line("magic: %s", h.Magic)
		d.hex("major_linker_version", h.MajorLinkerVersion)
		d.hex("minor_linker_version", h.MinorLinkerVersion)
		d.hex("size_of_code", h.SizeOfCode)
		d.hex("size_of_initialized_data", h.SizeOfInitializedData)
		d.hex("size_of_uninitialized_data", h.SizeOfUninitializedData)
		d.hex("address_of_entry_point", h.AddressOfEntryPoint)
		d.hex("base_of_code", h.BaseOfCode)
		d.hex("image_base", h.ImageBase)
		d.hex("section_alignment", h.SectionAlignment)
		d.hex("file_alignment", h.FileAlignment)
		d.versions(h.MajorOperatingSystemVersion, h.MinorOperatingSystemVersion,
			h.MajorImageVersion, h.MinorImageVersion,
			h.MajorSubsystemVersion, h.MinorSubsystemVersion)
		d.hex("win32_version_value", h.Win32VersionValue)
		d.hex("size_of_image", h.SizeOfImage)
		d.hex("size_of_headers", h.SizeOfHeaders)
		d.hex("check_sum", h.CheckSum)
		d.line("subsystem: %s", h.Subsystem)
		d.line("dll_characteristics: %s", h.DllCharacteristics)
		d.hex("size_of_stack_reserve", h.SizeOfStackReserve)
		d.hex("size_of_stack_commit", h.SizeOfStackCommit)
		d.hex("size_of_heap_reserve", h.SizeOfHeapReserve)
		d.hex("size_of_heap_commit", h.SizeOfHeapCommit)
		d.hex("loader_flags", h.LoaderFlags)
	}
	d.nested("data_directory", func() {
		for i, dd := range oh.Directories() {
			if dd.IsZero() {
				continue
			}
			d.line("%s: rva 0x%x size 0x%x", pe.DataDirectoryIndex(i), dd.VirtualAddress, dd.Size)
		}
	})
}

func (d *dumper) versions(osMajor, osMinor, imgMajor, imgMinor, subMajor, subMinor uint16) {
	d.line("operating_system_version: %d.%d", osMajor, osMinor)
	d.line("image_version: %d.%d", imgMajor, imgMinor)
	d.line("subsystem_version: %d.%d", subMajor, subMinor)
}

func (d *dumper) section(s *pe.SectionHeader) {
	d.hex("physical_address", s.PhysicalAddress)
	d.hex("virtual_address", s.VirtualAddress)
	d.hex("size_of_raw_data", s.SizeOfRawData)
	d.hex("pointer_to_raw_data", s.PointerToRawData)
	d.hex("pointer_to_relocations", s.PointerToRelocations)
	d.hex("pointer_to_linenumbers", s.PointerToLinenumbers)
	d.hex("number_of_relocations", s.NumberOfRelocations)
	d.hex("number_of_linenumbers", s.NumberOfLinenumbers)
	d.line("characteristics: %s", s.Characteristics)
}

func (d *dumper) symbol(sym pe.ImportSymbol) {
	switch s := sym.(type) {
	case pe.NamedImport:
		d.line("%s Hint[%d]", s.Name, s.Hint)
	case pe.OrdinalImport:
		d.line("Ordinal[%d]", uint64(s))
	}
}
