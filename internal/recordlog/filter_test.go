package recordlog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterByRSSI(t *testing.T) {
	f := newFixture(t, 128, 4)
	addAll(t, f.log, seq(0, 10)...) // rssi -40 .. -49

	flt, err := NewFilter("rssi >= -42")
	require.NoError(t, err)

	var kept []uint32
	for r := range NewRangeIterator(f.log, nil, nil).All() {
		if flt.Match(r) {
			kept = append(kept, r.Timestamp)
		}
	}
	require.Equal(t, []uint32{0, 1, 2}, kept)
}

func TestFilterHexFields(t *testing.T) {
	r := rec(7)
	flt, err := NewFilter(`identifier.startsWith("0700") && metadata == "01020307" && sn == 0`)
	require.NoError(t, err)
	require.True(t, flt.Match(r))
	require.Equal(t, `identifier.startsWith("0700") && metadata == "01020307" && sn == 0`, flt.String())

	r.Metadata[3] = 9
	require.False(t, flt.Match(r))
}

func TestFilterEmptyMatchesAll(t *testing.T) {
	flt, err := NewFilter("  ")
	require.NoError(t, err)
	require.Nil(t, flt)
	require.True(t, flt.Match(rec(1)))
	require.Equal(t, "", flt.String())
}

func TestFilterRejectsBadExpressions(t *testing.T) {
	_, err := NewFilter("rssi >")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFilter("sn + 1")
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFilter("unknown_var == 1")
	require.Error(t, err)
}
