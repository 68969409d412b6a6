package recordlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/ensdb/internal/flash"
	"github.com/rzbill/ensdb/internal/slotstore"
	"github.com/rzbill/ensdb/pkg/id"
)

type fixture struct {
	log   *Log
	mem   *flash.Mem
	meta  *MemMeta
	slots *slotstore.Store
}

// newFixture builds a log over sectorCount sectors of sectorSize bytes with
// 32-byte slots.
func newFixture(t *testing.T, sectorSize, sectorCount int) *fixture {
	t.Helper()
	mem := flash.NewMem(flash.Geometry{SectorSize: sectorSize, SectorCount: sectorCount, WriteBlockSize: 1})
	slots, err := slotstore.New(mem, EntrySizeFor(1))
	require.NoError(t, err)
	meta := NewMemMeta()
	l, err := Open(slots, meta, Options{})
	require.NoError(t, err)
	return &fixture{log: l, mem: mem, meta: meta, slots: slots}
}

func (f *fixture) reopen(t *testing.T, opts Options) *Log {
	t.Helper()
	l, err := Open(f.slots, f.meta, opts)
	require.NoError(t, err)
	return l
}

func rec(ts uint32) Record {
	var ident id.ID
	ident[0] = byte(ts)
	ident[1] = byte(ts >> 8)
	ident[15] = 0xA5
	return Record{Timestamp: ts, RSSI: int8(-40 - int(ts%40)), Identifier: ident, Metadata: [4]byte{1, 2, 3, byte(ts)}}
}

func addAll(t *testing.T, l *Log, timestamps ...uint32) []uint32 {
	t.Helper()
	sns := make([]uint32, 0, len(timestamps))
	for _, ts := range timestamps {
		sn, err := l.Add(context.Background(), rec(ts))
		require.NoError(t, err)
		sns = append(sns, sn)
	}
	return sns
}

func seq(from, n uint32) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = from + uint32(i)
	}
	return out
}

func collect(it *Iterator) []uint32 {
	var sns []uint32
	for r := range it.All() {
		sns = append(sns, r.SN)
	}
	return sns
}

func ptr(v uint32) *uint32 { return &v }
