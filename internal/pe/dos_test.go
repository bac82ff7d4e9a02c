package pe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pedump/internal/petest"
)

func TestParseDosHeader(t *testing.T) {
	buf := petest.New32().Build()

	h, err := ParseDosHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5A4D), h.Magic)
	assert.Equal(t, uint32(petest.Lfanew), h.Lfanew)
}

func TestParseDosHeaderShortInput(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		kind ErrorKind
	}{
		{name: "empty", buf: nil, kind: KindInsufficient},
		{name: "one byte", buf: []byte("M"), kind: KindInsufficient},
		{name: "magic only", buf: []byte("MZ"), kind: KindInsufficient},
		{name: "wrong magic", buf: []byte("ZM"), kind: KindBadMagic},
		{name: "one byte short", buf: append([]byte("MZ"), make([]byte, DosHeaderSize-3)...), kind: KindInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDosHeader(tt.buf)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, []string{"Image DOS header"}, Contexts(err))
		})
	}
}

func TestParseDosHeaderBadMagicOffset(t *testing.T) {
	buf := make([]byte, DosHeaderSize)
	copy(buf, "PE")

	_, err := ParseDosHeader(buf)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindBadMagic, pe.Kind)
	assert.Equal(t, 0, pe.Offset)
}

func TestParseDosHeaderExactSize(t *testing.T) {
	buf := make([]byte, DosHeaderSize)
	copy(buf, "MZ")
	buf[60] = 0x40

	h, err := ParseDosHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x40), h.Lfanew)
}
