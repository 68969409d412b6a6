// Package recordlog implements the circular contact log on top of a slot
// store.
//
// Records are addressed by 24-bit sequence numbers; sequence number sn lives
// in slot sn mod capacity. The valid interval [oldest, oldest+count) is
// persisted in a small key/value store after every mutation so the log
// survives restarts. When the writer laps the ring the containing sector is
// erased and the records it held are evicted from the interval.
//
// Reading is done with an Iterator, either over a sequence-number range or
// over a timestamp range translated to sequence numbers by bisection:
//
//	it, err := recordlog.NewTimeRangeIterator(l, &from, &to)
//	for rec := range it.All() {
//	    ...
//	}
//
// Holes (deleted or evicted records) are skipped silently.
package recordlog
