package flash

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

var testGeo = Geometry{SectorSize: 64, SectorCount: 4, WriteBlockSize: 4}

func exercisePartition(t *testing.T, p Partition) {
	t.Helper()
	buf := make([]byte, 8)
	if err := p.Read(0, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(buf, bytes.Repeat([]byte{0xFF}, 8)) {
		t.Fatalf("fresh partition not erased: %x", buf)
	}

	if err := p.Write(0, []byte{0x0F, 0xF0, 0x00, 0xFF}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// a second program can only clear more bits
	if err := p.Write(0, []byte{0xF3, 0xFF, 0xFF, 0x7F}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got := make([]byte, 4)
	if err := p.Read(0, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if want := []byte{0x03, 0xF0, 0x00, 0x7F}; !bytes.Equal(got, want) {
		t.Fatalf("NOR semantics: got %x want %x", got, want)
	}

	if err := p.Write(2, []byte{0, 0}); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected misaligned write, got %v", err)
	}
	if err := p.Erase(8, 64); !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected misaligned erase, got %v", err)
	}
	if err := p.Read(250, make([]byte, 8)); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected out of bounds, got %v", err)
	}

	if err := p.Erase(0, 64); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if err := p.Read(0, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("erase did not reset: %x", got)
	}
	if g := p.PageInfo(); g.SectorSize != 64 || g.SectorCount != 4 {
		t.Fatalf("geometry: %+v", g)
	}
}

func TestMemPartition(t *testing.T) {
	m := NewMem(testGeo)
	exercisePartition(t, m)
	if m.EraseCount(0) != 1 || m.EraseCount(1) != 0 {
		t.Fatalf("wear counters: %d %d", m.EraseCount(0), m.EraseCount(1))
	}
	m.FailWrites = 1
	if err := m.Write(0, make([]byte, 4)); !errors.Is(err, ErrInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.Read(0, make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}

func TestFilePartitionPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ens.img")
	p, err := OpenFile(path, testGeo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exercisePartition(t, p)
	if err := p.Write(64, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	p2, err := OpenFile(path, testGeo)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	got := make([]byte, 4)
	if err := p2.Read(64, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("not persisted: %x", got)
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := (Geometry{SectorSize: 64, SectorCount: 1, WriteBlockSize: 3}).Validate(); err == nil {
		t.Fatalf("expected error for write block not dividing sector")
	}
	if err := (Geometry{}).Validate(); err == nil {
		t.Fatalf("expected error for empty geometry")
	}
}
