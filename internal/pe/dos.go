package pe

// DosHeaderSize is the fixed size of the legacy MZ header.
const DosHeaderSize = 64

var dosMagic = []byte("MZ")

// DosHeader is the legacy MS-DOS header at the start of every image.
// Only Magic and Lfanew matter for parsing; the rest is kept as read.
type DosHeader struct {
	Magic    uint16
	Cblp     uint16
	Cp       uint16
	Crlc     uint16
	Cparhdr  uint16
	Minalloc uint16
	Maxalloc uint16
	Ss       uint16
	Sp       uint16
	Csum     uint16
	Ip       uint16
	Cs       uint16
	Lfarlc   uint16
	Ovno     uint16
	Res      [4]uint16
	Oemid    uint16
	Oeminfo  uint16
	Res2     [10]uint16
	Lfanew   uint32
}

func parseDosHeader(c *cursor) DosHeader {
	var h DosHeader
	c.scope("Image DOS header", func() {
		// The tag is compared as bytes; Magic keeps the little-endian value (0x5A4D).
		at := c.off
		c.tag(dosMagic, "DOS magic")
		if c.err != nil {
			return
		}
		c.off = at
		h.Magic = c.u16()
		h.Cblp = c.u16()
		h.Cp = c.u16()
		h.Crlc = c.u16()
		h.Cparhdr = c.u16()
		h.Minalloc = c.u16()
		h.Maxalloc = c.u16()
		h.Ss = c.u16()
		h.Sp = c.u16()
		h.Csum = c.u16()
		h.Ip = c.u16()
		h.Cs = c.u16()
		h.Lfarlc = c.u16()
		h.Ovno = c.u16()
		c.u16s(h.Res[:])
		h.Oemid = c.u16()
		h.Oeminfo = c.u16()
		c.u16s(h.Res2[:])
		h.Lfanew = c.u32()
	})
	return h
}
