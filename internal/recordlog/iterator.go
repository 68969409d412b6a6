package recordlog

import (
	"errors"
	"fmt"
	"iter"

	"github.com/rzbill/ensdb/internal/seqring"
)

// Action tells Walk whether to keep going.
type Action int

const (
	Continue Action = iota
	Stop
)

// Iterator is a caller-owned cursor over a sequence-number range. It is not
// safe for concurrent use and holds no lock between calls; records evicted
// or deleted mid-traversal are skipped like any other hole.
type Iterator struct {
	log      *Log
	cur      Record
	hasCur   bool
	next     uint32
	end      uint32
	finished bool
	err      error
}

// NewRangeIterator iterates [start, end]. Nil bounds default to the log's
// current interval. Bounds past the newest record clamp to it, bounds before
// the oldest clamp to the oldest; a range that ends before it starts is empty.
func NewRangeIterator(l *Log, start, end *uint32) *Iterator {
	it := &Iterator{log: l}
	oldest, latest, ok := l.Interval()
	if !ok {
		it.finished = true
		return it
	}
	from, to := oldest, latest
	if start != nil {
		s, inRange := clampBound(*start, oldest, latest)
		if !inRange && !before(*start, oldest, latest) {
			it.finished = true
			return it
		}
		from = s
	}
	if end != nil {
		e, inRange := clampBound(*end, oldest, latest)
		if !inRange && before(*end, oldest, latest) {
			it.finished = true
			return it
		}
		to = e
	}
	if seqring.Distance(oldest, from) > seqring.Distance(oldest, to) {
		it.finished = true
		return it
	}
	it.next, it.end = from, to
	return it
}

// before reports whether an out-of-window sn is closer to the window's old
// end than to its new end.
func before(sn, oldest, latest uint32) bool {
	return seqring.Distance(sn&seqring.Mask, oldest) <= seqring.Distance(latest, sn&seqring.Mask)
}

// clampBound maps sn into [oldest, latest]. inRange is false when clamping
// was needed.
func clampBound(sn, oldest, latest uint32) (uint32, bool) {
	sn &= seqring.Mask
	if seqring.Within(sn, oldest, latest) {
		return sn, true
	}
	if before(sn, oldest, latest) {
		return oldest, false
	}
	return latest, false
}

// NewTimeRangeIterator iterates the records whose timestamps fall within
// [tsStart, tsEnd], both inclusive. Nil bounds are open. The translation
// assumes timestamps grow with sequence numbers.
func NewTimeRangeIterator(l *Log, tsStart, tsEnd *uint32) (*Iterator, error) {
	if tsStart != nil && tsEnd != nil && *tsEnd < *tsStart {
		return nil, fmt.Errorf("recordlog: time range end %d before start %d: %w", *tsEnd, *tsStart, ErrInvalidArgument)
	}
	empty := &Iterator{log: l, finished: true}

	var startSN, endSN *uint32
	if tsStart != nil {
		sn, err := SearchTimestamp(l, *tsStart, SearchMin)
		if err != nil {
			return emptyOr(empty, err)
		}
		if rec, err := l.Load(sn); err == nil && rec.Timestamp < *tsStart {
			return empty, nil
		}
		startSN = &sn
	}
	if tsEnd != nil {
		sn, err := SearchTimestamp(l, *tsEnd, SearchMax)
		if err != nil {
			return emptyOr(empty, err)
		}
		if rec, err := l.Load(sn); err == nil && rec.Timestamp > *tsEnd {
			return empty, nil
		}
		endSN = &sn
	}
	return NewRangeIterator(l, startSN, endSN), nil
}

func emptyOr(empty *Iterator, err error) (*Iterator, error) {
	if errors.Is(err, ErrNotFound) {
		return empty, nil
	}
	return nil, err
}

// Next returns the next readable record. Each attempt consumes one sequence
// number, so the number of loads is bounded by the range size no matter how
// many holes it contains.
func (it *Iterator) Next() (Record, bool) {
	for !it.finished {
		sn := it.next
		if sn == it.end {
			it.finished = true
		} else {
			it.next = seqring.Increment(sn)
		}
		rec, err := it.log.Load(sn)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDeleted) {
				continue
			}
			it.err = err
			it.finished = true
			break
		}
		it.cur, it.hasCur = rec, true
		return rec, true
	}
	return Record{}, false
}

// Current returns the record most recently returned by Next.
func (it *Iterator) Current() (Record, bool) { return it.cur, it.hasCur }

// Done reports whether the iterator is exhausted.
func (it *Iterator) Done() bool { return it.finished }

// Err returns the flash error that stopped iteration early, if any.
func (it *Iterator) Err() error { return it.err }

// Clear resets the iterator to the finished, empty state.
func (it *Iterator) Clear() {
	*it = Iterator{log: it.log, finished: true}
}

// Walk calls fn for each record until fn returns Stop. On normal exhaustion
// fn is called once more with a nil record; after Stop it is not.
func (it *Iterator) Walk(fn func(rec *Record) Action) {
	for {
		rec, ok := it.Next()
		if !ok {
			break
		}
		if fn(&rec) == Stop {
			return
		}
	}
	fn(nil)
}

// All returns the remaining records as a sequence.
func (it *Iterator) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for {
			rec, ok := it.Next()
			if !ok || !yield(rec) {
				return
			}
		}
	}
}
