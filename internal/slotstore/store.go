package slotstore

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/rzbill/ensdb/internal/flash"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

const (
	liveBit = 0x01
	crcMask = 0xFE
)

// Stats counts slot operations since the store was created.
type Stats struct {
	Reads         uint64 `json:"reads"`
	Writes        uint64 `json:"writes"`
	Deletes       uint64 `json:"deletes"`
	Erases        uint64 `json:"erases"`
	Syncs         uint64 `json:"syncs"`
	CRCMismatches uint64 `json:"crc_mismatches"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for erase and corruption events.
func WithLogger(l logpkg.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is a CRC-checked slot store over one partition. All methods are safe
// for concurrent use; a single mutex is held for the duration of each call.
type Store struct {
	mu     sync.Mutex
	part   flash.Partition
	logger logpkg.Logger

	entrySize      int
	slotSize       int
	sectorSize     int
	sectorCount    int
	slotsPerSector int

	buf   []byte
	stats Stats
}

// New creates a store of entrySize-byte payloads over part. entrySize must be
// a multiple of the partition write block and the resulting slot must fit in
// one sector.
func New(part flash.Partition, entrySize int, opts ...Option) (*Store, error) {
	geo := part.PageInfo()
	wb := geo.WriteBlockSize
	if wb <= 0 {
		wb = 1
	}
	if entrySize <= 0 || entrySize%wb != 0 {
		return nil, fmt.Errorf("slotstore: entry size %d not a multiple of write block %d: %w", entrySize, wb, ErrInvalidArgument)
	}
	slot := slotSizeFor(entrySize)
	if slot > geo.SectorSize || geo.SectorSize%slot != 0 {
		return nil, fmt.Errorf("slotstore: slot size %d does not fit sector size %d: %w", slot, geo.SectorSize, ErrInvalidArgument)
	}
	s := &Store{
		part:           part,
		logger:         logpkg.NewNopLogger(),
		entrySize:      entrySize,
		slotSize:       slot,
		sectorSize:     geo.SectorSize,
		sectorCount:    geo.SectorCount,
		slotsPerSector: geo.SectorSize / slot,
		buf:            make([]byte, slot),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// slotSizeFor returns the smallest power of two holding the payload plus the
// metadata byte.
func slotSizeFor(entrySize int) int {
	return 1 << bits.Len(uint(entrySize))
}

// EntrySize returns the payload size of each slot.
func (s *Store) EntrySize() int { return s.entrySize }

// SlotSize returns the on-flash size of each slot.
func (s *Store) SlotSize() int { return s.slotSize }

// SlotsPerSector returns how many slots one erase frees.
func (s *Store) SlotsPerSector() int { return s.slotsPerSector }

// Capacity returns the number of slots in the partition.
func (s *Store) Capacity() int { return s.sectorCount * s.slotsPerSector }

// Sync flushes the partition when it supports it, as flash.File does.
// Partitions without a Sync method are already durable and this is a no-op.
func (s *Store) Sync() error {
	sy, ok := s.part.(interface{ Sync() error })
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := sy.Sync(); err != nil {
		return fmt.Errorf("slotstore: sync: %w: %w", ErrInternal, err)
	}
	s.stats.Syncs++
	return nil
}

// Stats returns a snapshot of the operation counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) checkID(op string, id int) error {
	if id < 0 || id >= s.Capacity() {
		return slotErr(op, id, ErrInvalidArgument)
	}
	return nil
}

// Read returns a copy of the payload stored in slot id.
func (s *Store) Read(id int) ([]byte, error) {
	if err := s.checkID("read", id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reads++

	if err := s.part.Read(id*s.slotSize, s.buf); err != nil {
		return nil, ioErr("read", id, err)
	}
	payload, meta := s.buf[:s.entrySize], s.buf[s.entrySize]
	if erased(s.buf[:s.entrySize+1]) {
		return nil, slotErr("read", id, ErrNotFound)
	}
	if meta&liveBit == 0 {
		return nil, slotErr("read", id, ErrDeleted)
	}
	if sum := crc7(crcSeed, payload); sum != meta&crcMask {
		s.stats.CRCMismatches++
		s.logger.Warn("slot crc mismatch",
			logpkg.Slot(id),
			logpkg.Int("stored", int(meta&crcMask)),
			logpkg.Int("computed", int(sum)))
		return nil, &SlotError{Op: "read", ID: id, Err: ErrNotFound, Stored: meta & crcMask, Computed: sum}
	}
	return append([]byte(nil), payload...), nil
}

// Write stores payload in slot id. The slot must be erased.
func (s *Store) Write(id int, payload []byte) error {
	if err := s.checkID("write", id); err != nil {
		return err
	}
	if len(payload) != s.entrySize {
		return fmt.Errorf("slotstore: payload is %d bytes, want %d: %w", len(payload), s.entrySize, ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	off := id * s.slotSize
	if err := s.part.Read(off, s.buf); err != nil {
		return ioErr("write", id, err)
	}
	if !erased(s.buf) {
		return slotErr("write", id, ErrAddressInUse)
	}
	copy(s.buf, payload)
	s.buf[s.entrySize] = crc7(crcSeed, payload) | liveBit
	if err := s.part.Write(off, s.buf); err != nil {
		return ioErr("write", id, err)
	}
	s.stats.Writes++
	return nil
}

// Delete zeroes slot id. The tombstone is permanent until the sector is erased.
func (s *Store) Delete(id int) error {
	if err := s.checkID("delete", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf)
	if err := s.part.Write(id*s.slotSize, s.buf); err != nil {
		return ioErr("delete", id, err)
	}
	s.stats.Deletes++
	return nil
}

// EraseContainingSector erases the sector starting at slot id and returns the
// number of slots freed. id must be the first slot of its sector.
func (s *Store) EraseContainingSector(id int) (int, error) {
	if err := s.checkID("erase", id); err != nil {
		return 0, err
	}
	off := id * s.slotSize
	if off%s.sectorSize != 0 {
		return 0, slotErr("erase", id, ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.part.Erase(off, s.sectorSize); err != nil {
		return 0, ioErr("erase", id, err)
	}
	s.stats.Erases++
	s.logger.Debug("sector erased", logpkg.Slot(id), logpkg.Int("sector", off/s.sectorSize))
	return s.slotsPerSector, nil
}

func erased(b []byte) bool {
	for _, v := range b {
		if v != flash.ErasedByte {
			return false
		}
	}
	return true
}
