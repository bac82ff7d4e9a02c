package pe

import "fmt"

// FileMachine is the target CPU of the image.
type FileMachine uint16

// Supported machine types.
const (
	MachineI386  FileMachine = 0x014c
	MachineIA64  FileMachine = 0x0200
	MachineAMD64 FileMachine = 0x8664
)

func (m FileMachine) known() bool {
	switch m {
	case MachineI386, MachineIA64, MachineAMD64:
		return true
	}
	return false
}

func (m FileMachine) String() string {
	switch m {
	case MachineI386:
		return "I386"
	case MachineIA64:
		return "IA64"
	case MachineAMD64:
		return "AMD64"
	default:
		return fmt.Sprintf("FileMachine(0x%04x)", uint16(m))
	}
}

// OptionalHeaderMagic selects the optional header layout.
type OptionalHeaderMagic uint16

// Optional header magics.
const (
	MagicHeader32  OptionalHeaderMagic = 0x10b
	MagicHeader64  OptionalHeaderMagic = 0x20b
	MagicHeaderRom OptionalHeaderMagic = 0x107
)

func (m OptionalHeaderMagic) known() bool {
	switch m {
	case MagicHeader32, MagicHeader64, MagicHeaderRom:
		return true
	}
	return false
}

func (m OptionalHeaderMagic) String() string {
	switch m {
	case MagicHeader32:
		return "PE32"
	case MagicHeader64:
		return "PE32+"
	case MagicHeaderRom:
		return "ROM"
	default:
		return fmt.Sprintf("OptionalHeaderMagic(0x%x)", uint16(m))
	}
}

// SubSystem is the runtime subsystem an image targets.
type SubSystem uint16

// Subsystems.
const (
	SubSystemNative                 SubSystem = 1
	SubSystemWindowsGui             SubSystem = 2
	SubSystemWindowsCui             SubSystem = 3
	SubSystemOS2Cui                 SubSystem = 5
	SubSystemPosixCui               SubSystem = 7
	SubSystemWindowsCeGui           SubSystem = 9
	SubSystemEfiApplication         SubSystem = 10
	SubSystemEfiBootServiceDriver   SubSystem = 11
	SubSystemEfiRuntimeDriver       SubSystem = 12
	SubSystemEfiRom                 SubSystem = 13
	SubSystemXbox                   SubSystem = 14
	SubSystemWindowsBootApplication SubSystem = 16
)

var subSystemNames = map[SubSystem]string{
	SubSystemNative:                 "Native",
	SubSystemWindowsGui:             "WindowsGui",
	SubSystemWindowsCui:             "WindowsCui",
	SubSystemOS2Cui:                 "OS2Cui",
	SubSystemPosixCui:               "PosixCui",
	SubSystemWindowsCeGui:           "WindowsCeGui",
	SubSystemEfiApplication:         "EfiApplication",
	SubSystemEfiBootServiceDriver:   "EfiBootServiceDriver",
	SubSystemEfiRuntimeDriver:       "EfiRuntimeDriver",
	SubSystemEfiRom:                 "EfiRom",
	SubSystemXbox:                   "Xbox",
	SubSystemWindowsBootApplication: "WindowsBootApplication",
}

func (s SubSystem) known() bool {
	_, ok := subSystemNames[s]
	return ok
}

func (s SubSystem) String() string {
	if name, ok := subSystemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SubSystem(%d)", uint16(s))
}

// DataDirectoryIndex names a slot of the optional header's data directory array.
type DataDirectoryIndex int

// Data directory slots.
const (
	DirectoryExportTable DataDirectoryIndex = iota
	DirectoryImportTable
	DirectoryResourceTable
	DirectoryExceptionTable
	DirectoryCertificateTable
	DirectoryBaseRelocationTable
	DirectoryDebug
	DirectoryArchitecture
	DirectoryGlobalPtr
	DirectoryTLSTable
	DirectoryLoadConfigTable
	DirectoryBoundImport
	DirectoryIAT
	DirectoryDelayImportDescriptor
	DirectoryCLRRuntimeHeader
	DirectoryReserved
)

// MaxDataDirectories bounds number_of_rva_and_sizes.
const MaxDataDirectories = 16

var directoryNames = [MaxDataDirectories]string{
	"ExportTable",
	"ImportTable",
	"ResourceTable",
	"ExceptionTable",
	"CertificateTable",
	"BaseRelocationTable",
	"Debug",
	"Architecture",
	"GlobalPtr",
	"TLSTable",
	"LoadConfigTable",
	"BoundImport",
	"IAT",
	"DelayImportDescriptor",
	"CLRRuntimeHeader",
	"Reserved",
}

func (i DataDirectoryIndex) String() string {
	if i >= 0 && int(i) < len(directoryNames) {
		return directoryNames[i]
	}
	return fmt.Sprintf("DataDirectoryIndex(%d)", int(i))
}

// enum16 reads a u16 and fails with UnknownVariant unless known accepts it.
func enum16[T ~uint16](c *cursor, name string, known func(T) bool) T {
	at := c.pos()
	v := T(c.u16())
	if c.err == nil && !known(v) {
		c.fail(KindUnknownVariant, at, "%s 0x%X", name, uint16(v))
	}
	return v
}
