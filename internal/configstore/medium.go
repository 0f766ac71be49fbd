package configstore

import (
	"sync"
)

// Medium is the byte-addressable storage behind the config record. Commit
// must be all-or-nothing from the caller's point of view.
type Medium interface {
	ReadRecord() ([]byte, error)
	Commit(record []byte) error
	Close() error
}

// MemoryMedium emulates an erased EEPROM page: fresh cells read as 0xFF.
type MemoryMedium struct {
	mu      sync.Mutex
	cells   []byte
	commits int
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{cells: Blank()}
}

// NewMemoryMediumWith preloads raw cell contents, e.g. a record written by an
// older firmware.
func NewMemoryMediumWith(raw []byte) *MemoryMedium {
	m := NewMemoryMedium()
	copy(m.cells, raw)
	return m
}

func (m *MemoryMedium) ReadRecord() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.cells))
	copy(out, m.cells)
	return out, nil
}

func (m *MemoryMedium) Commit(record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cells := Blank()
	copy(cells, record)
	m.cells = cells
	m.commits++
	return nil
}

func (m *MemoryMedium) Close() error { return nil }

// Bytes returns a copy of the current cells.
func (m *MemoryMedium) Bytes() []byte {
	b, _ := m.ReadRecord()
	return b
}

// Commits counts successful Commit calls.
func (m *MemoryMedium) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
