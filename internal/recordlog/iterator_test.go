package recordlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/ensdb/internal/seqring"
)

func TestRangeIteratorCompleteness(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, seq(100, 12)...)

	oldest, latest, ok := f.log.Interval()
	require.True(t, ok)
	it := NewRangeIterator(f.log, &oldest, &latest)
	require.Equal(t, seq(0, 12), collect(it))
	require.True(t, it.Done())
	require.NoError(t, it.Err())
}

func TestRangeIteratorDefaultsAfterWrap(t *testing.T) {
	f := newFixture(t, 32, 8)
	addAll(t, f.log, seq(0, 20)...)
	require.Equal(t, seq(12, 8), collect(NewRangeIterator(f.log, nil, nil)))
}

func TestRangeIteratorEmptyLog(t *testing.T) {
	f := newFixture(t, 128, 4)
	it := NewRangeIterator(f.log, nil, nil)
	require.True(t, it.Done())
	_, ok := it.Next()
	require.False(t, ok)
}

func TestRangeIteratorBounds(t *testing.T) {
	f := newFixture(t, 32, 8)
	addAll(t, f.log, seq(0, 10)...) // interval [2, 9]

	require.Equal(t, seq(2, 8), collect(NewRangeIterator(f.log, ptr(0), nil)))
	require.Equal(t, seq(2, 8), collect(NewRangeIterator(f.log, nil, ptr(20))))
	require.Equal(t, []uint32{4, 5, 6}, collect(NewRangeIterator(f.log, ptr(4), ptr(6))))
	require.Equal(t, []uint32{7}, collect(NewRangeIterator(f.log, ptr(7), ptr(7))))
	require.Empty(t, collect(NewRangeIterator(f.log, ptr(12), nil)))
	require.Empty(t, collect(NewRangeIterator(f.log, ptr(5), ptr(3))))
	require.Empty(t, collect(NewRangeIterator(f.log, nil, ptr(1))))
}

func TestIteratorSkipsHoles(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, seq(0, 12)...)
	require.NoError(t, f.log.Delete(5))
	require.NoError(t, f.log.Delete(6))

	got := collect(NewRangeIterator(f.log, nil, nil))
	require.Equal(t, []uint32{0, 1, 2, 3, 4, 7, 8, 9, 10, 11}, got)
}

func TestIteratorSeesEvictionAsHole(t *testing.T) {
	f := newFixture(t, 32, 8)
	addAll(t, f.log, seq(0, 8)...)

	it := NewRangeIterator(f.log, nil, nil)
	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, uint32(0), first.SN)

	// Evicts sn 0 and 1 while the iterator is between calls.
	addAll(t, f.log, 8, 9)

	require.Equal(t, seq(2, 6), collect(it))
	cur, ok := it.Current()
	require.True(t, ok)
	require.Equal(t, uint32(7), cur.SN)
}

func TestIteratorAcrossSequenceWrap(t *testing.T) {
	f := newFixture(t, 128, 4)
	require.NoError(t, f.meta.Set(KeyMeta, encodeMeta(logMeta{oldest: seqring.Mask - 4, count: 1})))
	l := f.reopen(t, Options{})
	addAll(t, l, 100, 101, 102, 103, 104, 105)

	want := []uint32{seqring.Mask - 3, seqring.Mask - 2, seqring.Mask - 1, seqring.Mask, 0, 1}
	require.Equal(t, want, collect(NewRangeIterator(l, nil, nil)))

	sn, err := SearchTimestamp(l, 102, SearchMin)
	require.NoError(t, err)
	require.Equal(t, seqring.Mask-1, sn)

	it, err := NewTimeRangeIterator(l, ptr(101), ptr(104))
	require.NoError(t, err)
	require.Equal(t, []uint32{seqring.Mask - 2, seqring.Mask - 1, seqring.Mask, 0}, collect(it))
}

func TestWalkCompletionSignal(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, 1, 2, 3)

	var seen []*Record
	NewRangeIterator(f.log, nil, nil).Walk(func(r *Record) Action {
		seen = append(seen, r)
		return Continue
	})
	require.Len(t, seen, 4)
	require.Equal(t, uint32(3), seen[2].Timestamp)
	require.Nil(t, seen[3])

	calls := 0
	NewRangeIterator(f.log, nil, nil).Walk(func(r *Record) Action {
		calls++
		require.NotNil(t, r)
		return Stop
	})
	require.Equal(t, 1, calls)
}

func TestWalkEmptyStillSignals(t *testing.T) {
	f := newFixture(t, 128, 4)
	calls := 0
	NewRangeIterator(f.log, nil, nil).Walk(func(r *Record) Action {
		calls++
		require.Nil(t, r)
		return Continue
	})
	require.Equal(t, 1, calls)
}

func TestAllStopsEarly(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, seq(0, 6)...)

	it := NewRangeIterator(f.log, nil, nil)
	for r := range it.All() {
		if r.SN == 2 {
			break
		}
	}
	// The sequence resumes where the loop left off.
	require.Equal(t, []uint32{3, 4, 5}, collect(it))
}

func TestClear(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, seq(0, 4)...)
	it := NewRangeIterator(f.log, nil, nil)
	_, ok := it.Next()
	require.True(t, ok)

	it.Clear()
	require.True(t, it.Done())
	_, ok = it.Current()
	require.False(t, ok)
	_, ok = it.Next()
	require.False(t, ok)
}

// Records sn 0..9 with timestamps 10, 20, ... 100.
func timeFixture(t *testing.T) *fixture {
	f := newFixture(t, 128, 4)
	for i := uint32(1); i <= 10; i++ {
		addAll(t, f.log, i*10)
	}
	return f
}

func TestTimeRangeFixture(t *testing.T) {
	f := timeFixture(t)
	cases := []struct {
		name     string
		from, to *uint32
		want     []uint32
	}{
		{"inside", ptr(25), ptr(75), []uint32{2, 3, 4, 5, 6}},
		{"inclusive bounds", ptr(30), ptr(70), []uint32{2, 3, 4, 5, 6}},
		{"whole log", ptr(10), ptr(100), seq(0, 10)},
		{"single", ptr(40), ptr(40), []uint32{3}},
		{"open start", nil, ptr(15), []uint32{0}},
		{"open end", ptr(95), nil, []uint32{9}},
		{"open both", nil, nil, seq(0, 10)},
		{"before all", ptr(0), ptr(5), nil},
		{"after all", ptr(200), ptr(300), nil},
		{"gap between records", ptr(55), ptr(58), nil},
		{"start after all", ptr(101), nil, nil},
		{"end before all", nil, ptr(9), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it, err := NewTimeRangeIterator(f.log, tc.from, tc.to)
			require.NoError(t, err)
			got := collect(it)
			require.Equal(t, tc.want, got)
			for _, sn := range got {
				r, err := f.log.Load(sn)
				require.NoError(t, err)
				if tc.from != nil {
					require.GreaterOrEqual(t, r.Timestamp, *tc.from)
				}
				if tc.to != nil {
					require.LessOrEqual(t, r.Timestamp, *tc.to)
				}
			}
		})
	}
}

func TestTimeRangeRejectsInvertedBounds(t *testing.T) {
	f := timeFixture(t)
	_, err := NewTimeRangeIterator(f.log, ptr(80), ptr(20))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTimeRangeEmptyLog(t *testing.T) {
	f := newFixture(t, 128, 4)
	it, err := NewTimeRangeIterator(f.log, ptr(1), ptr(2))
	require.NoError(t, err)
	require.True(t, it.Done())

	_, err = SearchTimestamp(f.log, 1, SearchMax)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTimeRangeWithHoles(t *testing.T) {
	f := timeFixture(t)
	require.NoError(t, f.log.Delete(4)) // ts 50

	it, err := NewTimeRangeIterator(f.log, ptr(45), ptr(75))
	require.NoError(t, err)
	require.Equal(t, []uint32{5, 6}, collect(it))
}

func TestTimeRangeMostlyHoles(t *testing.T) {
	f := timeFixture(t)
	for sn := uint32(1); sn <= 8; sn++ {
		require.NoError(t, f.log.Delete(sn))
	}

	it, err := NewTimeRangeIterator(f.log, ptr(55), ptr(58))
	require.NoError(t, err)
	require.Empty(t, collect(it))

	it, err = NewTimeRangeIterator(f.log, ptr(5), ptr(100))
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 9}, collect(it))
}

func TestSearchTimestampModes(t *testing.T) {
	f := timeFixture(t)
	for _, tc := range []struct {
		target uint32
		mode   SearchMode
		want   uint32
	}{
		{45, SearchMin, 4},
		{50, SearchMin, 4},
		{45, SearchMax, 3},
		{50, SearchMax, 4},
		{1, SearchMin, 0},
		{1000, SearchMax, 9},
	} {
		got, err := SearchTimestamp(f.log, tc.target, tc.mode)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "target %d mode %s", tc.target, tc.mode)
	}
}
