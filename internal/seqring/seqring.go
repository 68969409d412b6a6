package seqring

// Bits is the width of a sequence number.
const Bits = 24

// Mask selects the significant bits of a sequence number.
const Mask uint32 = 1<<Bits - 1

// Size is the number of distinct sequence numbers in the ring.
const Size = uint64(Mask) + 1

// Masked reduces v into the ring.
func Masked(v uint32) uint32 { return v & Mask }

// Equal reports whether a and b denote the same ring position.
func Equal(a, b uint32) bool { return a&Mask == b&Mask }

// Increment returns sn+1 in the ring.
func Increment(sn uint32) uint32 { return (sn + 1) & Mask }

// Decrement returns sn-1 in the ring; 0 wraps to Mask.
func Decrement(sn uint32) uint32 {
	sn &= Mask
	if sn == 0 {
		return Mask
	}
	return sn - 1
}

// IncrementBy returns sn+n in the ring.
func IncrementBy(sn, n uint32) uint32 {
	return uint32((uint64(sn) + uint64(n)) & uint64(Mask))
}

// DecrementBy returns sn-n in the ring.
func DecrementBy(sn, n uint32) uint32 {
	return IncrementBy(sn, uint32((Size-uint64(n&Mask))&uint64(Mask)))
}

// Middle approximates the midpoint between older and newer. When the window
// straddles zero (older > newer) the sum is lifted by Mask before halving so
// that the result lands inside the window instead of near 2^23.
//
// For older != newer the result is always in [older, newer) walking forward
// from older, which bisection relies on to make progress.
func Middle(older, newer uint32) uint32 {
	o, n := uint64(older&Mask), uint64(newer&Mask)
	if o <= n {
		return uint32(((o + n) / 2) & uint64(Mask))
	}
	return uint32(((o + n + uint64(Mask)) / 2) & uint64(Mask))
}

// Distance returns the number of forward steps from older to newer.
func Distance(older, newer uint32) uint32 {
	return (newer - older) & Mask
}

// Within reports whether sn lies in the closed window [older, newer].
func Within(sn, older, newer uint32) bool {
	return Distance(older, sn) <= Distance(older, newer)
}
