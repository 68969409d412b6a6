package flash

import (
	"errors"
	"sync"
)

// Mem is an in-memory partition. It also counts erases per sector so tests
// can observe wear.
type Mem struct {
	mu     sync.Mutex
	geo    Geometry
	data   []byte
	wear   []int
	closed bool

	// FailWrites and FailErases force the next operations to fail. Test hook.
	FailWrites int
	FailErases int
}

// ErrInjected is returned by Mem when a failure was requested.
var ErrInjected = errors.New("flash: injected failure")

// NewMem returns an erased in-memory partition. It panics on an invalid
// geometry, which is a programming error.
func NewMem(g Geometry) *Mem {
	if err := g.Validate(); err != nil {
		panic(err)
	}
	g = g.normalized()
	m := &Mem{geo: g, data: make([]byte, g.Size()), wear: make([]int, g.SectorCount)}
	fillErased(m.data)
	return m
}

func (m *Mem) Read(off int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := checkRead(m.geo, off, len(buf)); err != nil {
		return err
	}
	copy(buf, m.data[off:off+len(buf)])
	return nil
}

func (m *Mem) Write(off int, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailWrites > 0 {
		m.FailWrites--
		return ErrInjected
	}
	if err := checkWrite(m.geo, off, len(buf)); err != nil {
		return err
	}
	program(m.data[off:off+len(buf)], buf)
	return nil
}

func (m *Mem) Erase(off, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailErases > 0 {
		m.FailErases--
		return ErrInjected
	}
	if err := checkErase(m.geo, off, n); err != nil {
		return err
	}
	fillErased(m.data[off : off+n])
	for s := off / m.geo.SectorSize; s < (off+n)/m.geo.SectorSize; s++ {
		m.wear[s]++
	}
	return nil
}

func (m *Mem) PageInfo() Geometry { return m.geo }

// EraseCount returns how many times sector s has been erased.
func (m *Mem) EraseCount(s int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wear[s]
}

// Corrupt flips the bits of the byte at off, bypassing NOR semantics.
func (m *Mem) Corrupt(off int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[off] ^= 0xFF
}

func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
