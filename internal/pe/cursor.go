package pe

import (
	"bytes"
	"encoding/binary"
)

// cursor reads little-endian fields from the front of an immutable buffer.
// The first failure sticks: later reads return zero values and leave err untouched,
// so a decoder can read a whole record and check err once.
type cursor struct {
	buf  []byte
	off  int
	base int // added to off when reporting error offsets
	err  error
}

func newCursor(buf []byte, off int) *cursor {
	return &cursor{buf: buf, off: off}
}

// viewCursor reads a sub-slice whose first byte sits at base in the original buffer.
func viewCursor(view []byte, base int) *cursor {
	return &cursor{buf: view, base: base}
}

func (c *cursor) pos() int {
	return c.base + c.off
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

func (c *cursor) fail(kind ErrorKind, at int, format string, args ...any) {
	if c.err == nil {
		c.err = newError(kind, at, format, args...)
	}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.remaining() < n {
		c.fail(KindInsufficient, c.pos(), "需要 %d 字节, 剩余 %d 字节", n, c.remaining())
		return nil
	}
	b := c.buf[c.off : c.off+n : c.off+n]
	c.off += n
	return b
}

// peek returns the next n bytes without consuming them, or nil if fewer remain.
func (c *cursor) peek(n int) []byte {
	if c.err != nil || c.remaining() < n {
		return nil
	}
	return c.buf[c.off : c.off+n]
}

func (c *cursor) u8() uint8 {
	b := c.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (c *cursor) u16() uint16 {
	b := c.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (c *cursor) u32() uint32 {
	b := c.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (c *cursor) u64() uint64 {
	b := c.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// tag consumes len(want) bytes and fails with BadMagic unless they equal want.
func (c *cursor) tag(want []byte, what string) {
	at := c.pos()
	got := c.take(len(want))
	if got != nil && !bytes.Equal(got, want) {
		c.fail(KindBadMagic, at, "%s: 期望 %q, 实际 %q", what, want, got)
	}
}

// u16s fills dst with exactly len(dst) consecutive values.
func (c *cursor) u16s(dst []uint16) {
	for i := range dst {
		dst[i] = c.u16()
	}
}

// boundedCount reads a u32 count and rejects it when it exceeds max.
func (c *cursor) boundedCount(max uint32, what string) int {
	at := c.pos()
	n := c.u32()
	if c.err == nil && n > max {
		c.fail(KindTooMany, at, "%s: %d > %d", what, n, max)
	}
	if c.err != nil {
		return 0
	}
	return int(n)
}

// repeat runs decode exactly n times unless the cursor fails first.
func repeat[T any](c *cursor, n int, decode func(*cursor) T) []T {
	out := make([]T, 0, min(n, 64))
	for i := 0; i < n && c.err == nil; i++ {
		v := decode(c)
		if c.err == nil {
			out = append(out, v)
		}
	}
	return out
}

// scope runs fn and wraps any failure it causes in a named context.
func (c *cursor) scope(context string, fn func()) {
	if c.err != nil {
		return
	}
	fn()
	if c.err != nil {
		c.err = withContext(context, c.err)
	}
}
