package pe

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pedump/internal/petest"
)

var sampleModules = []petest.Module{
	{
		Name: "KERNEL32.dll",
		Symbols: []petest.Symbol{
			{Hint: 0x120, Name: "ExitProcess"},
			{Ordinal: 7},
			{Hint: 0x2, Name: "GetLastError"},
		},
	},
	{
		Name:    "USER32.dll",
		Symbols: []petest.Symbol{{Hint: 0x33, Name: "MessageBoxA"}},
	},
}

func TestImports(t *testing.T) {
	for _, is64 := range []bool{false, true} {
		name := "PE32"
		if is64 {
			name = "PE32+"
		}
		t.Run(name, func(t *testing.T) {
			im := petest.New32()
			if is64 {
				im = petest.New64()
			}
			im.AddImports(sampleModules...)
			buf := im.Build()

			p, err := Parse(buf)
			require.NoError(t, err)
			require.Len(t, p.Imports, 2)

			k := p.Imports[0]
			assert.Equal(t, "KERNEL32.dll", k.Name)
			assert.Equal(t, []ImportSymbol{
				NamedImport{Hint: 0x120, Name: "ExitProcess"},
				OrdinalImport(7),
				NamedImport{Hint: 0x2, Name: "GetLastError"},
			}, k.Symbols)
			assert.NotZero(t, k.Descriptor.FirstThunk)
			assert.NotZero(t, k.Descriptor.OriginalFirstThunk)

			u := p.Imports[1]
			assert.Equal(t, "USER32.dll", u.Name)
			assert.Equal(t, []ImportSymbol{NamedImport{Hint: 0x33, Name: "MessageBoxA"}}, u.Symbols)

			// debug/pe skips ordinal imports and reports "symbol:module".
			f, err := pe.NewFile(bytes.NewReader(buf))
			require.NoError(t, err)
			want, err := f.ImportedSymbols()
			require.NoError(t, err)

			var got []string
			for _, pair := range p.Symbols() {
				if named, ok := pair.Symbol.(NamedImport); ok {
					got = append(got, named.Name+":"+pair.Module)
				}
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestImportSymbolsOrder(t *testing.T) {
	im := petest.New32()
	im.AddImports(sampleModules...)
	p, err := Parse(im.Build())
	require.NoError(t, err)

	pairs := p.Symbols()
	require.Len(t, pairs, 4)
	assert.Equal(t, ImportPair{Module: "KERNEL32.dll", Symbol: NamedImport{Hint: 0x120, Name: "ExitProcess"}}, pairs[0])
	assert.Equal(t, ImportPair{Module: "KERNEL32.dll", Symbol: OrdinalImport(7)}, pairs[1])
	assert.Equal(t, "GetLastError", pairs[2].Symbol.String())
	assert.Equal(t, "USER32.dll", pairs[3].Module)
	assert.Equal(t, "#7", pairs[1].Symbol.String())
}

func TestImportsWithoutDirectory(t *testing.T) {
	im := petest.New32()
	im.AddSection(".text", []byte{0xC3}, petest.ScnCode|petest.ScnExecute|petest.ScnRead)

	p, err := Parse(im.Build())
	require.NoError(t, err)
	assert.Empty(t, p.Imports)
	assert.Empty(t, p.Symbols())
}

func TestImportsEmptyTable(t *testing.T) {
	im := petest.New64()
	im.AddImports()

	p, err := Parse(im.Build())
	require.NoError(t, err)
	assert.Empty(t, p.Imports)
}

func TestImportSentinelIsFirstThunkOnly(t *testing.T) {
	im := petest.New32()
	va := im.NextVA()
	data := petest.ImportData(va, false, sampleModules[:1])
	// The terminator keeps junk in every field except FirstThunk.
	term := data[20:40]
	binary.LittleEndian.PutUint32(term[0:], 0xDEADBEEF)
	binary.LittleEndian.PutUint32(term[12:], 0xDEADBEEF)
	im.AddSection(".idata", data, petest.ScnData|petest.ScnRead)
	im.Directories[petest.DirImport] = petest.Directory{VirtualAddress: va, Size: 40}

	p, err := Parse(im.Build())
	require.NoError(t, err)
	require.Len(t, p.Imports, 1)
	assert.Equal(t, "KERNEL32.dll", p.Imports[0].Name)
}

func TestImportOrdinalFlags(t *testing.T) {
	tests := []struct {
		name    string
		is64    bool
		ordinal uint64
	}{
		{name: "PE32 low", is64: false, ordinal: 1},
		{name: "PE32 max", is64: false, ordinal: 0x7FFFFFFF},
		{name: "PE32+ low", is64: true, ordinal: 1},
		{name: "PE32+ wide", is64: true, ordinal: 0x1_0000_0001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := petest.New32()
			if tt.is64 {
				im = petest.New64()
			}
			im.AddImports(petest.Module{Name: "ord.dll", Symbols: []petest.Symbol{{Ordinal: tt.ordinal}}})

			p, err := Parse(im.Build())
			require.NoError(t, err)
			require.Len(t, p.Imports, 1)
			assert.Equal(t, []ImportSymbol{OrdinalImport(tt.ordinal)}, p.Imports[0].Symbols)
		})
	}
}

func TestImportTruncatedDescriptors(t *testing.T) {
	im := petest.New32()
	va := im.NextVA()
	data := petest.ImportData(va, false, sampleModules[:1])
	im.AddSection(".idata", data, petest.ScnData|petest.ScnRead)
	// Shift the directory so the descriptor walk runs off the section's raw data.
	im.Directories[petest.DirImport] = petest.Directory{VirtualAddress: va + petest.RawAlignment - 8, Size: 40}
	im.Sections[0].VirtualSize = petest.RawAlignment

	_, err := Parse(im.Build())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficient)
	assert.Equal(t, []string{"Import table", "Import descriptor"}, Contexts(err))
}

func TestImportNameRVAOutOfRange(t *testing.T) {
	im := petest.New64()
	va := im.NextVA()
	data := petest.ImportData(va, true, []petest.Module{{Name: "a.dll", Symbols: []petest.Symbol{{Name: "f"}}}})

	// Point the single thunk of the address table at an RVA above 4 GiB.
	ft := binary.LittleEndian.Uint32(data[16:]) - va
	binary.LittleEndian.PutUint64(data[ft:], 0x1_0000_0000)
	im.AddSection(".idata", data, petest.ScnData|petest.ScnRead)
	im.Directories[petest.DirImport] = petest.Directory{VirtualAddress: va, Size: 40}

	_, err := Parse(im.Build())
	assert.ErrorIs(t, err, ErrNoSectionForRva)
	assert.Equal(t, []string{"Import table", "Import thunks", "Import by name"}, Contexts(err))
}

func TestImportModuleNameErrors(t *testing.T) {
	im := petest.New32()
	va := im.NextVA()
	data := petest.ImportData(va, false, sampleModules[:1])
	binary.LittleEndian.PutUint32(data[12:], 0x9000)
	im.AddSection(".idata", data, petest.ScnData|petest.ScnRead)
	im.Directories[petest.DirImport] = petest.Directory{VirtualAddress: va, Size: 40}

	_, err := Parse(im.Build())
	assert.ErrorIs(t, err, ErrNoSectionForRva)
	assert.Equal(t, []string{"Import table", "Import module name"}, Contexts(err))
}

func TestImportsDirectoryOutsideSections(t *testing.T) {
	im := petest.New32()
	im.AddSection(".text", []byte{0xC3}, petest.ScnCode|petest.ScnRead)
	im.Directories[petest.DirImport] = petest.Directory{VirtualAddress: 0x8000, Size: 40}

	_, err := Parse(im.Build())
	assert.ErrorIs(t, err, ErrNoSectionForRva)
	assert.Equal(t, []string{"Import table"}, Contexts(err))

	// ParseHeaders does not walk imports.
	_, _, err = ParseHeaders(im.Build())
	assert.NoError(t, err)
}

func TestImportsLogging(t *testing.T) {
	im := petest.New32()
	im.AddImports(sampleModules...)

	var out bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &out, Level: hclog.Trace})
	_, err := ParseWithOptions(im.Build(), Options{Logger: logger})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Parsed PE header")
	assert.Contains(t, out.String(), "Walked import table")
	assert.Contains(t, out.String(), "module=USER32.dll")
}

func TestTruncatedImports(t *testing.T) {
	for _, is64 := range []bool{false, true} {
		im := petest.New32()
		if is64 {
			im = petest.New64()
		}
		va := im.AddImports(sampleModules...)
		buf := im.Build()
		dataEnd := im.RawOffset(0) + len(petest.ImportData(va, is64, sampleModules))

		for n := im.HeaderEnd(); n < dataEnd; n++ {
			_, err := Parse(buf[:n])
			require.Error(t, err, "prefix %d", n)
			require.ErrorIs(t, err, ErrInsufficient, "prefix %d: %v", n, err)
			assert.Equal(t, "Import table", Contexts(err)[0], "prefix %d", n)
		}
		for n := dataEnd; n <= len(buf); n++ {
			p, err := Parse(buf[:n])
			require.NoError(t, err, "prefix %d", n)
			require.Len(t, p.Imports, 2, "prefix %d", n)
		}
	}
}

func TestResolveCutSection(t *testing.T) {
	im := petest.New32()
	va := im.AddSection(".rdata", []byte("name\x00"), petest.ScnData|petest.ScnRead)
	im.Sections[0].VirtualSize = 0x1000
	buf := im.Build()
	raw := im.RawOffset(0)

	tests := []struct {
		name   string
		prefix int
		rva    uint32
		kind   ErrorKind
	}{
		{name: "section starts past end", prefix: raw - 1, rva: va, kind: KindInsufficient},
		{name: "string cut", prefix: raw + 3, rva: va, kind: KindInsufficient},
		{name: "past declared raw size", prefix: len(buf), rva: va + petest.RawAlignment + 1, kind: KindOutOfBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h, err := ParseHeaders(buf[:tt.prefix])
			require.NoError(t, err)

			_, err = h.ResolveString(uint64(tt.rva))
			assert.Equal(t, tt.kind, KindOf(err), "%v", err)
			_, err = h.ResolveSize(uint64(tt.rva), 8)
			assert.Equal(t, tt.kind, KindOf(err), "%v", err)
		})
	}

	_, h, err := ParseHeaders(buf)
	require.NoError(t, err)
	name, err := h.ResolveString(uint64(va))
	require.NoError(t, err)
	assert.Equal(t, "name", name)
}
