package flash

import (
	"errors"
	"fmt"
)

// ErasedByte is the value of every byte of a freshly erased sector.
const ErasedByte = 0xFF

var (
	// ErrOutOfBounds is returned when an access falls outside the partition.
	ErrOutOfBounds = errors.New("flash: access out of bounds")
	// ErrMisaligned is returned for writes or erases that do not respect the
	// write block or sector boundaries.
	ErrMisaligned = errors.New("flash: misaligned access")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("flash: partition closed")
)

// Geometry describes the layout of a partition.
type Geometry struct {
	// SectorSize is the erase unit in bytes.
	SectorSize int
	// SectorCount is the number of sectors in the partition.
	SectorCount int
	// WriteBlockSize is the write granularity in bytes. Zero means 1.
	WriteBlockSize int
}

// Size returns the total partition size in bytes.
func (g Geometry) Size() int { return g.SectorSize * g.SectorCount }

// Validate checks that the geometry is usable.
func (g Geometry) Validate() error {
	if g.SectorSize <= 0 || g.SectorCount <= 0 {
		return fmt.Errorf("flash: invalid geometry %dx%d", g.SectorCount, g.SectorSize)
	}
	if g.WriteBlockSize < 0 || (g.WriteBlockSize > 0 && g.SectorSize%g.WriteBlockSize != 0) {
		return fmt.Errorf("flash: write block %d does not divide sector size %d", g.WriteBlockSize, g.SectorSize)
	}
	return nil
}

func (g Geometry) normalized() Geometry {
	if g.WriteBlockSize == 0 {
		g.WriteBlockSize = 1
	}
	return g
}

// Partition is a raw flash area. Implementations must be safe for use by a
// single caller at a time; the slot store serializes access itself.
type Partition interface {
	// Read copies len(buf) bytes at off into buf.
	Read(off int, buf []byte) error
	// Write programs buf at off. Bits can only be cleared.
	Write(off int, buf []byte) error
	// Erase resets [off, off+n) to ErasedByte. Both bounds must be sector aligned.
	Erase(off, n int) error
	// PageInfo returns the partition geometry.
	PageInfo() Geometry
	// Close releases the partition.
	Close() error
}

func checkRead(g Geometry, off, n int) error {
	if off < 0 || n < 0 || off+n > g.Size() {
		return fmt.Errorf("%w: read [%d,%d) of %d", ErrOutOfBounds, off, off+n, g.Size())
	}
	return nil
}

func checkWrite(g Geometry, off, n int) error {
	if off < 0 || n < 0 || off+n > g.Size() {
		return fmt.Errorf("%w: write [%d,%d) of %d", ErrOutOfBounds, off, off+n, g.Size())
	}
	if off%g.WriteBlockSize != 0 || n%g.WriteBlockSize != 0 {
		return fmt.Errorf("%w: write [%d,%d) with block %d", ErrMisaligned, off, off+n, g.WriteBlockSize)
	}
	return nil
}

func checkErase(g Geometry, off, n int) error {
	if off < 0 || n < 0 || off+n > g.Size() {
		return fmt.Errorf("%w: erase [%d,%d) of %d", ErrOutOfBounds, off, off+n, g.Size())
	}
	if off%g.SectorSize != 0 || n%g.SectorSize != 0 {
		return fmt.Errorf("%w: erase [%d,%d) with sector %d", ErrMisaligned, off, off+n, g.SectorSize)
	}
	return nil
}

// program applies NOR semantics: the stored byte becomes old AND new.
func program(dst, src []byte) {
	for i := range src {
		dst[i] &= src[i]
	}
}

func fillErased(b []byte) {
	for i := range b {
		b[i] = ErasedByte
	}
}
