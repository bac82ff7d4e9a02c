package pe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStickyError(t *testing.T) {
	c := newCursor([]byte{0x34, 0x12, 0xff}, 0)

	assert.Equal(t, uint16(0x1234), c.u16())
	assert.Equal(t, uint32(0), c.u32())
	require.Error(t, c.err)

	first := c.err
	assert.Equal(t, uint16(0), c.u16())
	assert.Equal(t, uint8(0), c.u8())
	assert.Same(t, first, c.err)

	var pe *ParseError
	require.ErrorAs(t, c.err, &pe)
	assert.Equal(t, KindInsufficient, pe.Kind)
	assert.Equal(t, 2, pe.Offset)
}

func TestCursorLittleEndian(t *testing.T) {
	c := newCursor([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
	}, 0)

	assert.Equal(t, uint8(0x01), c.u8())
	assert.Equal(t, uint16(0x0302), c.u16())
	assert.Equal(t, uint32(0x07060504), c.u32())
	assert.Equal(t, uint64(0x0f0e0d0c0b0a0908), c.u64())
	assert.NoError(t, c.err)
	assert.Equal(t, 0, c.remaining())
}

func TestCursorTag(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		kind ErrorKind
	}{
		{name: "match", buf: []byte("MZ"), kind: 0},
		{name: "mismatch", buf: []byte("ZM"), kind: KindBadMagic},
		{name: "short", buf: []byte("M"), kind: KindInsufficient},
		{name: "empty", buf: nil, kind: KindInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCursor(tt.buf, 0)
			c.tag([]byte("MZ"), "magic")
			assert.Equal(t, tt.kind, KindOf(c.err))
		})
	}
}

func TestCursorViewOffsets(t *testing.T) {
	c := viewCursor([]byte{0x01}, 0x200)
	c.u16()

	var pe *ParseError
	require.ErrorAs(t, c.err, &pe)
	assert.Equal(t, 0x200, pe.Offset)
}

func TestBoundedCount(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want int
		kind ErrorKind
	}{
		{name: "zero", raw: []byte{0, 0, 0, 0}, want: 0},
		{name: "at limit", raw: []byte{16, 0, 0, 0}, want: 16},
		{name: "over limit", raw: []byte{17, 0, 0, 0}, kind: KindTooMany},
		{name: "huge", raw: []byte{0xff, 0xff, 0xff, 0xff}, kind: KindTooMany},
		{name: "truncated", raw: []byte{16, 0}, kind: KindInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCursor(tt.raw, 0)
			got := c.boundedCount(16, "count")
			assert.Equal(t, tt.kind, KindOf(c.err))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepeatStopsOnFailure(t *testing.T) {
	c := newCursor([]byte{1, 0, 2, 0, 3}, 0)
	got := repeat(c, 3, (*cursor).u16)

	assert.Equal(t, []uint16{1, 2}, got)
	assert.Equal(t, KindInsufficient, KindOf(c.err))
}

func TestRepeatZero(t *testing.T) {
	c := newCursor(nil, 0)
	got := repeat(c, 0, (*cursor).u32)

	assert.Empty(t, got)
	assert.NoError(t, c.err)
}

func TestScopeNestsContexts(t *testing.T) {
	c := newCursor(nil, 0)
	c.scope("outer", func() {
		c.scope("inner", func() {
			c.u8()
		})
	})

	assert.Equal(t, []string{"outer", "inner"}, Contexts(c.err))
	assert.True(t, errors.Is(c.err, ErrInsufficient))
	assert.False(t, errors.Is(c.err, ErrBadMagic))
	assert.Contains(t, c.err.Error(), "outer: inner: ")
}

func TestScopeSkippedAfterFailure(t *testing.T) {
	c := newCursor(nil, 0)
	c.u8()
	ran := false
	c.scope("later", func() { ran = true })

	assert.False(t, ran)
	assert.Empty(t, Contexts(c.err))
}

func TestWithContextNil(t *testing.T) {
	assert.NoError(t, withContext("anything", nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(0), KindOf(nil))
	assert.Equal(t, KindOutOfBounds, KindOf(withContext("a", withContext("b", ErrOutOfBounds))))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "数据不足", KindInsufficient.String())
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}
