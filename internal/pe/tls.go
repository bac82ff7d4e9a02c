package pe

const (
	tlsDirectory32Size = 24
	tlsDirectory64Size = 40
	maxTLSCallbacks    = 100
)

// TLSInfo contains TLS (Thread Local Storage) information.
// Addresses are virtual addresses as stored, not RVAs.
type TLSInfo struct {
	HasTLS                bool
	Callbacks             []uint64
	StartAddressOfRawData uint64
	EndAddressOfRawData   uint64
	AddressOfIndex        uint64
	AddressOfCallBacks    uint64
	SizeOfZeroFill        uint32
	Characteristics       uint32
}

// TLS reads the TLS directory and its callback array. A missing directory
// yields a TLSInfo with HasTLS false.
func (h *PeHeader) TLS() (*TLSInfo, error) {
	info := &TLSInfo{}
	dir, ok := h.OptionalHeader.DataDirectory(DirectoryTLSTable)
	if !ok {
		return info, nil
	}
	info.HasTLS = true

	size := uint64(tlsDirectory32Size)
	if h.Is64() {
		size = tlsDirectory64Size
	}
	off, _, err := h.locate(uint64(dir.VirtualAddress))
	if err != nil {
		return info, withContext("TLS directory", err)
	}
	raw, err := h.ResolveSize(uint64(dir.VirtualAddress), size)
	if err != nil {
		return info, withContext("TLS directory", err)
	}

	c := viewCursor(raw, int(off))
	c.scope("TLS directory", func() {
		info.StartAddressOfRawData = h.readPointer(c)
		info.EndAddressOfRawData = h.readPointer(c)
		info.AddressOfIndex = h.readPointer(c)
		info.AddressOfCallBacks = h.readPointer(c)
		info.SizeOfZeroFill = c.u32()
		info.Characteristics = c.u32()
	})
	if c.err != nil {
		return info, c.err
	}

	if info.AddressOfCallBacks != 0 {
		info.Callbacks = h.tlsCallbacks(info.AddressOfCallBacks)
	}
	return info, nil
}

// readPointer reads one pointer-width value for the image's layout.
func (h *PeHeader) readPointer(c *cursor) uint64 {
	if h.Is64() {
		return c.u64()
	}
	return uint64(c.u32())
}

// tlsCallbacks reads the NULL-terminated callback array at va. Unresolvable
// arrays yield whatever was read before the failure.
func (h *PeHeader) tlsCallbacks(va uint64) []uint64 {
	base := h.OptionalHeader.ImageBaseAddress()
	if va < base {
		return nil
	}
	off, end, err := h.locate(va - base)
	if err != nil {
		return nil
	}

	c := viewCursor(h.Data[off:end], int(off))
	var callbacks []uint64
	for i := 0; i < maxTLSCallbacks; i++ {
		cb := h.readPointer(c)
		if c.err != nil || cb == 0 {
			break
		}
		callbacks = append(callbacks, cb)
	}
	return callbacks
}
