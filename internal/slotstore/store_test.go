package slotstore

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/ensdb/internal/flash"
)

const testEntry = 29

func newTestStore(t *testing.T) (*Store, *flash.Mem) {
	t.Helper()
	mem := flash.NewMem(flash.Geometry{SectorSize: 128, SectorCount: 4, WriteBlockSize: 1})
	s, err := New(mem, testEntry)
	require.NoError(t, err)
	return s, mem
}

func payload(seed byte) []byte {
	p := make([]byte, testEntry)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

func TestNewDerivesGeometry(t *testing.T) {
	s, _ := newTestStore(t)
	require.Equal(t, 32, s.SlotSize())
	require.Equal(t, 4, s.SlotsPerSector())
	require.Equal(t, 16, s.Capacity())
	require.Equal(t, testEntry, s.EntrySize())
}

func TestNewRejectsMisalignedEntrySize(t *testing.T) {
	mem := flash.NewMem(flash.Geometry{SectorSize: 128, SectorCount: 2, WriteBlockSize: 4})
	_, err := New(mem, 29)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(mem, 32)
	require.NoError(t, err)
}

func TestNewRejectsSlotLargerThanSector(t *testing.T) {
	mem := flash.NewMem(flash.Geometry{SectorSize: 32, SectorCount: 2})
	_, err := New(mem, 32)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	want := payload(3)
	require.NoError(t, s.Write(5, want))

	got, err := s.Read(5)
	require.NoError(t, err)
	require.True(t, bytes.Equal(want, got))

	// the returned slice is a copy
	got[0] ^= 0xFF
	again, err := s.Read(5)
	require.NoError(t, err)
	require.Equal(t, want, again)
}

func TestReadErasedSlotIsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWriteLiveSlotIsAddressInUse(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Write(1, payload(1)))
	err := s.Write(1, payload(2))
	require.ErrorIs(t, err, ErrAddressInUse)

	var se *SlotError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 1, se.ID)

	// the original payload is untouched
	got, err := s.Read(1)
	require.NoError(t, err)
	require.Equal(t, payload(1), got)
}

func TestDeleteTombstones(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Write(2, payload(9)))
	require.NoError(t, s.Delete(2))

	_, err := s.Read(2)
	require.ErrorIs(t, err, ErrDeleted)

	// a tombstone still needs an erase before reuse
	require.ErrorIs(t, s.Write(2, payload(9)), ErrAddressInUse)
}

func TestCorruptionReadsAsNotFound(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, s.Write(3, payload(4)))
	mem.Corrupt(3*32 + 7)

	_, err := s.Read(3)
	require.ErrorIs(t, err, ErrNotFound)
	var se *SlotError
	require.True(t, errors.As(err, &se))
	require.NotEqual(t, se.Stored, se.Computed)
	require.Equal(t, uint64(1), s.Stats().CRCMismatches)
}

func TestEraseContainingSector(t *testing.T) {
	s, mem := newTestStore(t)
	for id := 4; id < 8; id++ {
		require.NoError(t, s.Write(id, payload(byte(id))))
	}
	require.NoError(t, s.Write(8, payload(8)))

	freed, err := s.EraseContainingSector(4)
	require.NoError(t, err)
	require.Equal(t, 128/32, freed)
	require.Equal(t, 1, mem.EraseCount(1))

	for id := 4; id < 8; id++ {
		_, err := s.Read(id)
		require.ErrorIs(t, err, ErrNotFound, "slot %d", id)
		require.NoError(t, s.Write(id, payload(byte(id+1))), "slot %d reusable", id)
	}
	// neighbouring sector untouched
	got, err := s.Read(8)
	require.NoError(t, err)
	require.Equal(t, payload(8), got)
}

func TestEraseContainingSectorRequiresAlignment(t *testing.T) {
	s, mem := newTestStore(t)
	_, err := s.EraseContainingSector(5)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 0, mem.EraseCount(1))
}

func TestFlashFailuresAreInternal(t *testing.T) {
	s, mem := newTestStore(t)
	mem.FailWrites = 1
	err := s.Write(0, payload(0))
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, flash.ErrInjected)

	mem.FailErases = 1
	_, err = s.EraseContainingSector(0)
	require.ErrorIs(t, err, ErrInternal)
}

func TestOutOfRangeIDs(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read(16)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorIs(t, s.Write(-1, payload(0)), ErrInvalidArgument)
	require.ErrorIs(t, s.Write(0, make([]byte, 3)), ErrInvalidArgument)
}

func TestStatsCount(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Write(0, payload(0)))
	_, _ = s.Read(0)
	require.NoError(t, s.Delete(0))
	_, _ = s.EraseContainingSector(0)

	st := s.Stats()
	require.Equal(t, Stats{Reads: 1, Writes: 1, Deletes: 1, Erases: 1}, st)
}

func TestSyncReachesFilePartition(t *testing.T) {
	mem, _ := newTestStore(t)
	require.NoError(t, mem.Sync())
	require.Zero(t, mem.Stats().Syncs)

	part, err := flash.OpenFile(filepath.Join(t.TempDir(), "img"), flash.Geometry{SectorSize: 128, SectorCount: 4, WriteBlockSize: 1})
	require.NoError(t, err)
	s, err := New(part, testEntry)
	require.NoError(t, err)
	require.NoError(t, s.Write(0, payload(7)))
	require.NoError(t, s.Sync())
	require.Equal(t, uint64(1), s.Stats().Syncs)

	require.NoError(t, part.Close())
	err = s.Sync()
	require.ErrorIs(t, err, ErrInternal)
	require.ErrorIs(t, err, flash.ErrClosed)
}
