package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/ensdb/internal/bloom"
	cfgpkg "github.com/rzbill/ensdb/internal/config"
	"github.com/rzbill/ensdb/internal/flash"
	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/slotstore"
	pebblestore "github.com/rzbill/ensdb/internal/storage/pebble"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Fsync defaults to FsyncModeAlways: metadata is tiny and written once
	// per record. Under FsyncModeAlways the flash image is also synced before
	// each metadata write.
	Fsync pebblestore.FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	FsyncInterval time.Duration
	// Clean starts with an empty log.
	Clean  bool
	Logger logpkg.Logger
}

// Stats is a point-in-time view of the log and slot counters.
type Stats struct {
	Oldest   uint32          `json:"oldest"`
	Latest   uint32          `json:"latest"`
	Count    uint32          `json:"count"`
	Capacity uint32          `json:"capacity"`
	Empty    bool            `json:"empty"`
	Slots    slotstore.Stats `json:"slots"`
	Meta     MetaStats       `json:"meta"`
}

// MetaStats counts metadata store traffic.
type MetaStats struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	ReadBytes  uint64 `json:"read_bytes"`
	WriteBytes uint64 `json:"write_bytes"`
}

// metaCounters implements pebblestore.MetricsHook.
type metaCounters struct {
	reads, writes, readBytes, writeBytes atomic.Uint64
}

func (m *metaCounters) ObserveWrite(_ time.Duration, n int) {
	m.writes.Add(1)
	m.writeBytes.Add(uint64(n))
}

func (m *metaCounters) ObserveRead(_ time.Duration, n int) {
	m.reads.Add(1)
	m.readBytes.Add(uint64(n))
}

func (m *metaCounters) snapshot() MetaStats {
	return MetaStats{
		Reads:      m.reads.Load(),
		Writes:     m.writes.Load(),
		ReadBytes:  m.readBytes.Load(),
		WriteBytes: m.writeBytes.Load(),
	}
}

// Runtime owns the storage stack for a single device image.
type Runtime struct {
	config   cfgpkg.Config
	logger   logpkg.Logger
	strategy bloom.Strategy

	part  *flash.File
	db    *pebblestore.DB
	slots *slotstore.Store
	log   *recordlog.Log
	meta  metaCounters

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the flash image and metadata store and attaches
// the record log.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, err := bloom.ParseStrategy(cfg.Bloom.Strategy)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("runtime: create data dir: %w", err)
		}
	}
	fsync := opts.Fsync
	if fsync == pebblestore.FsyncModeUnspecified {
		fsync = pebblestore.FsyncModeAlways
	}

	rt := &Runtime{config: cfg, logger: logger.WithComponent("runtime"), strategy: strategy}

	geo := flash.Geometry{SectorSize: cfg.Flash.SectorSize, SectorCount: cfg.Flash.SectorCount, WriteBlockSize: cfg.Flash.WriteBlock}
	rt.part, err = flash.OpenFile(cfg.FlashPath(), geo)
	if err != nil {
		return nil, err
	}
	rt.db, err = pebblestore.Open(pebblestore.Options{
		DataDir:       cfg.MetaDir(),
		Fsync:         fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       &rt.meta,
		Logger:        logger,
	})
	if err != nil {
		_ = rt.part.Close()
		return nil, err
	}

	entry := cfg.Log.EntrySize
	if entry == 0 {
		entry = recordlog.EntrySizeFor(geo.WriteBlockSize)
	}
	rt.slots, err = slotstore.New(rt.part, entry, slotstore.WithLogger(logger.WithComponent("slotstore")))
	if err == nil {
		rt.log, err = recordlog.Open(rt.slots, rt.db, recordlog.Options{
			Clean:      opts.Clean,
			Capacity:   cfg.Log.Capacity,
			SyncWrites: fsync == pebblestore.FsyncModeAlways,
			Logger:     logger,
		})
	}
	if err != nil {
		_ = rt.db.Close()
		_ = rt.part.Close()
		return nil, err
	}

	oldest, latest, ok := rt.log.Interval()
	rt.logger.Info("storage opened",
		logpkg.Str("flash", cfg.FlashPath()),
		logpkg.Uint32("capacity", rt.log.Capacity()),
		logpkg.Uint32("oldest", oldest),
		logpkg.Uint32("latest", latest),
		logpkg.Bool("empty", !ok))
	return rt, nil
}

// Close flushes metadata and releases the partition and the store. It is
// safe to call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if r.log != nil {
			errs = append(errs, r.log.Flush())
		}
		if r.part != nil {
			errs = append(errs, r.part.Sync(), r.part.Close())
		}
		if r.db != nil {
			errs = append(errs, r.db.Flush(), r.db.Close())
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

// CheckHealth verifies that the partition answers reads and the metadata
// record is present.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.log == nil {
		return errors.New("runtime: not open")
	}
	var probe [1]byte
	if err := r.part.Read(0, probe[:]); err != nil {
		return fmt.Errorf("runtime: flash unreadable: %w", err)
	}
	if _, err := r.db.Get(recordlog.KeyMeta); err != nil {
		return fmt.Errorf("runtime: metadata unreadable: %w", err)
	}
	return nil
}

// Log returns the record log.
func (r *Runtime) Log() *recordlog.Log { return r.log }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }

// Stats snapshots the log interval and slot counters.
func (r *Runtime) Stats() Stats {
	st := r.log.State()
	return Stats{
		Oldest:   st.Oldest,
		Latest:   st.Latest,
		Count:    st.Count,
		Capacity: r.log.Capacity(),
		Empty:    st.Empty,
		Slots:    r.slots.Stats(),
		Meta:     r.meta.snapshot(),
	}
}

// Match runs the matching protocol with the configured filter strategy.
func (r *Runtime) Match(ctx context.Context, cands []matching.Candidate) (matching.Result, error) {
	return matching.Match(ctx, r.log, cands, matching.Options{Strategy: r.strategy, Logger: r.logger})
}
