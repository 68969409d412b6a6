// Package seqring implements wraparound-safe arithmetic over the 24-bit
// sequence numbers assigned to stored records.
//
// Sequence numbers live in a modular ring of size 2^24. Ordering between two
// values is only meaningful inside a single capacity-sized window of the
// record log; the helpers here never compare globally.
//
//	sn := seqring.Increment(seqring.Mask) // 0
//	mid := seqring.Middle(older, newer)   // midpoint, also across the wrap
package seqring
