package recordlog

import (
	"errors"
	"fmt"

	"github.com/rzbill/ensdb/internal/seqring"
)

// SearchMode selects which bound SearchTimestamp converges to.
type SearchMode int

const (
	// SearchMin finds the first sequence number with timestamp >= target.
	SearchMin SearchMode = iota
	// SearchMax finds the last sequence number with timestamp <= target.
	SearchMax
)

func (m SearchMode) String() string {
	if m == SearchMax {
		return "max"
	}
	return "min"
}

// SearchTimestamp bisects the log's interval for target. Unreadable entries
// are stepped around by probing +1, -1, +2, -2... from the midpoint. When no
// entry satisfies the bound the nearest end of the interval is returned, so
// callers must check the record found there. An empty log yields ErrNotFound.
func SearchTimestamp(l *Log, target uint32, mode SearchMode) (uint32, error) {
	lo, hi, ok := l.Interval()
	if !ok {
		return 0, fmt.Errorf("recordlog: search %s %d on empty log: %w", mode, target, ErrNotFound)
	}
	for lo != hi {
		var wlo, whi, mid uint32
		if mode == SearchMin {
			wlo, whi = lo, seqring.Decrement(hi)
			mid = seqring.Middle(lo, hi)
		} else {
			wlo, whi = seqring.Increment(lo), hi
			mid = seqring.Increment(seqring.Middle(lo, hi))
		}

		sn, ts, found, err := probe(l, mid, wlo, whi)
		if err != nil {
			return 0, err
		}
		switch {
		case !found && mode == SearchMin:
			lo = hi
		case !found:
			hi = lo
		case mode == SearchMin && ts >= target:
			hi = sn
		case mode == SearchMin:
			lo = seqring.Increment(sn)
		case ts <= target:
			lo = sn
		default:
			hi = seqring.Decrement(sn)
		}
	}
	return lo, nil
}

// probe looks for a readable record starting at mid and moving outward,
// staying inside [wlo, whi].
func probe(l *Log, mid, wlo, whi uint32) (sn, ts uint32, found bool, err error) {
	span := int64(seqring.Distance(wlo, whi))
	d := int64(seqring.Distance(wlo, mid))
	for k := int64(0); d+k <= span || d-k >= 0; k++ {
		positions := [2]int64{d + k, d - k}
		n := 2
		if k == 0 {
			n = 1
		}
		for _, pos := range positions[:n] {
			if pos < 0 || pos > span {
				continue
			}
			cand := seqring.IncrementBy(wlo, uint32(pos))
			rec, lerr := l.Load(cand)
			if lerr == nil {
				return cand, rec.Timestamp, true, nil
			}
			if !errors.Is(lerr, ErrNotFound) && !errors.Is(lerr, ErrDeleted) {
				return 0, 0, false, lerr
			}
		}
	}
	return 0, 0, false, nil
}
