package pe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pedump/internal/petest"
)

// exportData lays out an export directory for a section at va with two named
// functions whose name table order differs from their function table order.
func exportData(va uint32) []byte {
	data := make([]byte, 0x70)
	le := binary.LittleEndian

	le.PutUint32(data[12:], va+0x60) // Name
	le.PutUint32(data[16:], 1)       // Base
	le.PutUint32(data[20:], 2)       // NumberOfFunctions
	le.PutUint32(data[24:], 2)       // NumberOfNames
	le.PutUint32(data[28:], va+0x28) // AddressOfFunctions
	le.PutUint32(data[32:], va+0x30) // AddressOfNames
	le.PutUint32(data[36:], va+0x38) // AddressOfNameOrdinals

	le.PutUint32(data[0x28:], 0x1010)
	le.PutUint32(data[0x2C:], 0x1020)
	le.PutUint32(data[0x30:], va+0x40)
	le.PutUint32(data[0x34:], va+0x50)
	le.PutUint16(data[0x38:], 1)
	le.PutUint16(data[0x3A:], 0)

	copy(data[0x40:], "Alpha\x00")
	copy(data[0x50:], "Beta\x00")
	copy(data[0x60:], "sample.dll\x00")
	return data
}

func exportImage(mutate func(va uint32, data []byte)) *petest.Image {
	im := petest.New32()
	im.Characteristics |= 0x2000
	va := im.NextVA()
	data := exportData(va)
	if mutate != nil {
		mutate(va, data)
	}
	im.AddSection(".edata", data, petest.ScnData|petest.ScnRead)
	im.Directories[petest.DirExport] = petest.Directory{VirtualAddress: va, Size: uint32(len(data))}
	return im
}

func TestExports(t *testing.T) {
	p, err := Parse(exportImage(nil).Build())
	require.NoError(t, err)
	assert.True(t, p.Header.FileHeader.Characteristics.Dll)

	dir, exports, err := p.Header.Exports()
	require.NoError(t, err)
	require.NotNil(t, dir)
	assert.Equal(t, uint32(1), dir.Base)
	assert.Equal(t, uint32(2), dir.NumberOfNames)

	name, err := p.Header.ResolveString(uint64(dir.Name))
	require.NoError(t, err)
	assert.Equal(t, "sample.dll", name)

	assert.Equal(t, []Export{
		{Name: "Alpha", Ordinal: 2, RVA: 0x1020},
		{Name: "Beta", Ordinal: 1, RVA: 0x1010},
	}, exports)

	info, err := NewBufferAnalyzer(p, "sample.dll").Analyze()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta"}, info.Exports)
}

func TestExportsMissingDirectory(t *testing.T) {
	p, err := Parse(sampleImage(false).Build())
	require.NoError(t, err)

	dir, exports, err := p.Header.Exports()
	assert.NoError(t, err)
	assert.Nil(t, dir)
	assert.Nil(t, exports)
}

func TestExportsErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(va uint32, data []byte)
		kind     ErrorKind
		contexts []string
	}{
		{
			name: "name table outside sections",
			mutate: func(va uint32, data []byte) {
				binary.LittleEndian.PutUint32(data[32:], 0x9000)
			},
			kind:     KindNoSectionForRva,
			contexts: []string{"Export table", "Export name pointers"},
		},
		{
			name: "too many functions",
			mutate: func(va uint32, data []byte) {
				binary.LittleEndian.PutUint32(data[20:], 0x10000)
			},
			kind:     KindOutOfBounds,
			contexts: []string{"Export table", "Export functions"},
		},
		{
			name: "name without terminator",
			mutate: func(va uint32, data []byte) {
				binary.LittleEndian.PutUint32(data[0x34:], va+0x1FF)
			},
			kind:     KindNotNulTerminated,
			contexts: []string{"Export table", "Export name 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := exportImage(tt.mutate)
			buf := im.Build()
			buf[im.RawOffset(0)+0x1FF] = 'z'

			p, err := Parse(buf)
			require.NoError(t, err)

			_, _, err = p.Header.Exports()
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.contexts, Contexts(err))

			// The analyzer report leaves exports out instead of failing.
			info, err := NewBufferAnalyzer(p, "broken.dll").Analyze()
			require.NoError(t, err)
			assert.Empty(t, info.Exports)
		})
	}
}
