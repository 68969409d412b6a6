package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/rzbill/ensdb/internal/config"
	"github.com/rzbill/ensdb/internal/matching"
	"github.com/rzbill/ensdb/internal/recordlog"
	"github.com/rzbill/ensdb/internal/seqring"
	pebblestore "github.com/rzbill/ensdb/internal/storage/pebble"
	"github.com/rzbill/ensdb/pkg/id"
)

func testConfig(dir string) cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfg.DataDir = dir
	cfg.Flash.SectorSize = 128
	cfg.Flash.SectorCount = 4
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t.TempDir())})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if got := rt.Log().Capacity(); got != 16 {
		t.Fatalf("capacity = %d", got)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{Config: testConfig(dir)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ident := id.Random()
	for ts := uint32(1); ts <= 20; ts++ {
		if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: ts, Identifier: ident}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	rt2, err := Open(Options{Config: testConfig(dir)})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt2.Close()
	st := rt2.Stats()
	if st.Count != 16 || st.Oldest != 4 || st.Latest != 19 {
		t.Fatalf("stats after reopen: %+v", st)
	}
	if st.Meta.Reads == 0 || st.Meta.Writes != 0 {
		t.Fatalf("meta counters after reopen: %+v", st.Meta)
	}
	if _, err := rt2.Log().Add(context.Background(), recordlog.Record{Timestamp: 21, Identifier: ident}); err != nil {
		t.Fatalf("add after reopen: %v", err)
	}
	if w := rt2.Stats().Meta.Writes; w != 1 {
		t.Fatalf("meta writes = %d", w)
	}
	rec, err := rt2.Log().Load(19)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Timestamp != 20 || rec.Identifier != ident {
		t.Fatalf("record mismatch: %+v", rec)
	}

	cands := []matching.Candidate{{Identifier: ident}}
	res, err := rt2.Match(context.Background(), cands)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if cands[0].Met != 16 || res.Confirmed != 16 {
		t.Fatalf("met = %d, result %+v", cands[0].Met, res)
	}
}

func TestCleanOpen(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{Config: testConfig(dir)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = rt.Close()

	rt2, err := Open(Options{Config: testConfig(dir), Clean: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt2.Close()
	if !rt2.Stats().Empty {
		t.Fatalf("clean open should start empty")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Bloom.Strategy = "nope"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected config error")
	}
	cfg = testConfig(t.TempDir())
	cfg.Log.Capacity = 6
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected capacity error")
	}
}

func TestFlashSyncFollowsFsyncMode(t *testing.T) {
	for _, tc := range []struct {
		mode  pebblestore.FsyncMode
		syncs uint64
	}{
		{pebblestore.FsyncModeUnspecified, 3},
		{pebblestore.FsyncModeAlways, 3},
		{pebblestore.FsyncModeNever, 0},
	} {
		rt, err := Open(Options{Config: testConfig(t.TempDir()), Fsync: tc.mode})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		for ts := uint32(1); ts <= 3; ts++ {
			if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: ts}); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		if got := rt.Stats().Slots.Syncs; got != tc.syncs {
			t.Fatalf("mode %d: flash syncs = %d, want %d", tc.mode, got, tc.syncs)
		}
		_ = rt.Close()
	}
}

func TestStatsConsistentDuringAdds(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t.TempDir()), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	done := make(chan error, 1)
	go func() {
		for ts := uint32(0); ts < 200; ts++ {
			if _, err := rt.Log().Add(context.Background(), recordlog.Record{Timestamp: ts}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			return
		default:
		}
		st := rt.Stats()
		if st.Empty {
			if st.Count != 0 {
				t.Fatalf("empty stats with count %d", st.Count)
			}
			continue
		}
		if got := seqring.Distance(st.Oldest, st.Latest) + 1; got != st.Count {
			t.Fatalf("stats interval [%d, %d] spans %d, count %d", st.Oldest, st.Latest, got, st.Count)
		}
	}
}
