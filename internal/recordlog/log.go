package recordlog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/ensdb/internal/seqring"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// Slots is the slot store surface the log needs. *slotstore.Store
// satisfies it.
type Slots interface {
	Read(id int) ([]byte, error)
	Write(id int, payload []byte) error
	Delete(id int) error
	EraseContainingSector(id int) (int, error)
	EntrySize() int
	SlotsPerSector() int
	Capacity() int
}

// Options configures Open.
type Options struct {
	// Clean discards persisted metadata and starts empty.
	Clean bool
	// Capacity limits the number of slots used. Zero means the whole store.
	// It must be a multiple of the slots per sector and a power of two.
	Capacity int
	// SyncWrites flushes the slots before each metadata update. It only has
	// an effect when the slots implement Syncer.
	SyncWrites bool
	Logger     logpkg.Logger
}

// Syncer is implemented by slot stores that can flush to stable storage.
type Syncer interface {
	Sync() error
}

// State is a consistent view of the interval.
type State struct {
	Oldest uint32 `json:"oldest"`
	Latest uint32 `json:"latest"`
	Count  uint32 `json:"count"`
	Empty  bool   `json:"empty"`
}

// Log is the circular record log. Add, Delete, Reset and Interval are
// linearized by one mutex; Load takes no log lock.
type Log struct {
	slots     Slots
	meta      MetaStore
	logger    logpkg.Logger
	capacity  uint32
	entrySize int
	syncer    Syncer

	mu     sync.Mutex
	oldest uint32
	count  uint32
}

// Open attaches a log to slots and loads or resets its metadata.
func Open(slots Slots, meta MetaStore, opts Options) (*Log, error) {
	if slots == nil || meta == nil {
		return nil, fmt.Errorf("recordlog: nil slots or meta store: %w", ErrInvalidArgument)
	}
	if slots.EntrySize() < RecordSize {
		return nil, fmt.Errorf("recordlog: entry size %d below record size %d: %w", slots.EntrySize(), RecordSize, ErrInvalidArgument)
	}
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = slots.Capacity()
	}
	sps := slots.SlotsPerSector()
	switch {
	case capacity <= 0 || capacity > slots.Capacity():
		return nil, fmt.Errorf("recordlog: capacity %d outside (0, %d]: %w", capacity, slots.Capacity(), ErrInvalidArgument)
	case sps <= 0 || capacity%sps != 0:
		return nil, fmt.Errorf("recordlog: capacity %d not a multiple of %d slots per sector: %w", capacity, sps, ErrInvalidArgument)
	case uint64(capacity) > seqring.Size || seqring.Size%uint64(capacity) != 0:
		// sn mod capacity must stay continuous across the ring wrap.
		return nil, fmt.Errorf("recordlog: capacity %d does not divide the sequence ring: %w", capacity, ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	l := &Log{
		slots:     slots,
		meta:      meta,
		logger:    logger.WithComponent("recordlog"),
		capacity:  uint32(capacity),
		entrySize: slots.EntrySize(),
	}
	if sy, ok := slots.(Syncer); ok && opts.SyncWrites {
		l.syncer = sy
	}

	if !opts.Clean {
		raw, err := meta.Get(KeyMeta)
		if err == nil {
			m, derr := decodeMeta(raw)
			if derr == nil && m.count <= l.capacity && m.oldest <= seqring.Mask {
				l.oldest, l.count = m.oldest, m.count
				l.logger.Info("metadata loaded", logpkg.Uint32("oldest", l.oldest), logpkg.Uint32("count", l.count))
				return l, nil
			}
			err = derr
			if err == nil {
				err = errBadMeta
			}
		}
		l.logger.Warn("metadata unreadable, starting empty", logpkg.Err(err))
	}
	if err := l.persist(); err != nil {
		return nil, err
	}
	return l, nil
}

// syncSlots flushes slot writes ahead of the metadata that refers to them.
func (l *Log) syncSlots() error {
	if l.syncer == nil {
		return nil
	}
	if err := l.syncer.Sync(); err != nil {
		return fmt.Errorf("recordlog: sync slots: %w: %w", ErrInternal, err)
	}
	return nil
}

func (l *Log) persist() error {
	if err := l.meta.Set(KeyMeta, encodeMeta(logMeta{oldest: l.oldest, count: l.count})); err != nil {
		return fmt.Errorf("recordlog: persist metadata: %w: %w", ErrInternal, err)
	}
	return nil
}

func (l *Log) slotOf(sn uint32) int { return int((sn & seqring.Mask) % l.capacity) }

// Add appends rec and returns its sequence number. rec.SN is ignored. When
// the target slot still holds data from a previous lap its sector is erased
// first; records in that sector leave the interval.
//
// A flash failure during the erase, or during the write that follows it,
// still advances the metadata so the log never sticks on one slot; the error
// is returned alongside the sequence number that was skipped.
func (l *Log) Add(ctx context.Context, rec Record) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		l.oldest = 0
	}
	next := seqring.IncrementBy(l.oldest, l.count)
	slot := l.slotOf(next)
	rec.SN = next
	payload := EncodeRecord(rec, l.entrySize)

	err := l.slots.Write(slot, payload)
	if errors.Is(err, ErrAddressInUse) {
		err = l.makeRoom(slot)
		if err == nil {
			err = l.slots.Write(slot, payload)
			if err != nil {
				l.logger.Error("write after erase failed, record dropped", logpkg.SN(next), logpkg.Err(err))
			}
		}
		if serr := l.syncSlots(); serr != nil && err == nil {
			err = serr
		}
		l.advance()
		if perr := l.persist(); perr != nil && err == nil {
			err = perr
		}
		return next, err
	}
	if err != nil {
		return 0, err
	}
	// The slot is written either way; a failed sync still advances so the
	// next Add does not collide with it.
	serr := l.syncSlots()
	l.advance()
	if err := l.persist(); err != nil {
		return next, err
	}
	if serr != nil {
		return next, serr
	}
	l.logger.Debug("record added", logpkg.SN(next), logpkg.Slot(slot))
	return next, nil
}

// makeRoom erases the sector holding slot and drops the records it held
// from the interval.
func (l *Log) makeRoom(slot int) error {
	sps := l.slots.SlotsPerSector()
	first := slot - slot%sps
	freed, err := l.slots.EraseContainingSector(first)
	if err != nil {
		l.logger.Error("sector erase failed", logpkg.Slot(first), logpkg.Err(err))
		return err
	}
	// The erased sector held sequence numbers [next-capacity, next-capacity+freed).
	// Those still inside the interval are evicted.
	free := l.capacity - l.count
	if uint32(freed) > free {
		evicted := uint32(freed) - free
		l.oldest = seqring.IncrementBy(l.oldest, evicted)
		l.count -= evicted
		l.logger.Debug("evicted", logpkg.Uint32("records", evicted), logpkg.Uint32("oldest", l.oldest))
	}
	return nil
}

func (l *Log) advance() {
	if l.count < l.capacity {
		l.count++
	} else {
		l.oldest = seqring.Increment(l.oldest)
	}
}

// Load returns the record stored under sn. A slot that has since been reused
// by another sequence number reads as ErrNotFound.
func (l *Log) Load(sn uint32) (Record, error) {
	sn &= seqring.Mask
	payload, err := l.slots.Read(l.slotOf(sn))
	if err != nil {
		return Record{}, err
	}
	rec, err := DecodeRecord(payload)
	if err != nil {
		return Record{}, err
	}
	if rec.SN != sn {
		return Record{}, fmt.Errorf("recordlog: sn %d: slot holds sn %d: %w", sn, rec.SN, ErrNotFound)
	}
	return rec, nil
}

// Delete tombstones sn. Only deleting the oldest record moves the interval;
// interior deletions leave holes.
func (l *Log) Delete(sn uint32) error {
	sn &= seqring.Mask
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 || !seqring.Within(sn, l.oldest, l.latestLocked()) {
		return fmt.Errorf("recordlog: delete sn %d outside interval: %w", sn, ErrNotFound)
	}
	if err := l.slots.Delete(l.slotOf(sn)); err != nil {
		return err
	}
	if sn == l.oldest {
		l.oldest = seqring.Increment(l.oldest)
		l.count--
		return l.persist()
	}
	return nil
}

// Reset empties the log. Flash is left as is; stale slots are erased lazily
// by Add.
func (l *Log) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.oldest, l.count = 0, 0
	l.logger.Info("log reset")
	return l.persist()
}

// Flush persists the current metadata.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persist()
}

func (l *Log) latestLocked() uint32 {
	return seqring.IncrementBy(l.oldest, l.count-1)
}

// Oldest returns the oldest sequence number in the interval.
func (l *Log) Oldest() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.oldest
}

// Latest returns the newest stored sequence number. It is meaningless on an
// empty log; use Interval to tell.
func (l *Log) Latest() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latestLocked()
}

// Count returns the number of sequence numbers in the interval.
func (l *Log) Count() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Capacity returns the number of slots the log cycles through.
func (l *Log) Capacity() uint32 { return l.capacity }

// State returns the interval bounds and count under one lock.
func (l *Log) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return State{Oldest: l.oldest, Latest: l.oldest, Empty: true}
	}
	return State{Oldest: l.oldest, Latest: l.latestLocked(), Count: l.count}
}

// Interval returns a consistent snapshot of [oldest, latest]. ok is false on
// an empty log.
func (l *Log) Interval() (oldest, latest uint32, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return l.oldest, l.oldest, false
	}
	return l.oldest, l.latestLocked(), true
}
