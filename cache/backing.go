package cache

// BackingStore is the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches size bytes starting at addr.
	Read(addr uint64, size int) []byte
	// Write stores data starting at addr.
	Write(addr uint64, data []byte)
}

const pageBits = 12

// Memory is a sparse byte-addressed memory. Pages are allocated on first
// write; unwritten bytes read as zero.
type Memory struct {
	pages map[uint64]*[1 << pageBits]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[1 << pageBits]byte)}
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	page, ok := m.pages[addr>>pageBits]
	if !ok {
		return 0
	}
	return page[addr&(1<<pageBits-1)]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value byte) {
	page, ok := m.pages[addr>>pageBits]
	if !ok {
		page = new([1 << pageBits]byte)
		m.pages[addr>>pageBits] = page
	}
	page[addr&(1<<pageBits-1)] = value
}

// Read fetches data from memory.
func (m *Memory) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = m.Read8(addr + uint64(i))
	}
	return data
}

// Write stores data to memory.
func (m *Memory) Write(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}
