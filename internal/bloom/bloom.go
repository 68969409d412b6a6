// Package bloom is a small Bloom filter over 16-byte identifiers, built and
// discarded within one matching call.
package bloom

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/rzbill/ensdb/pkg/id"
)

// Strategy selects how bit positions are derived from an identifier.
type Strategy int

const (
	// StrategyChunk uses the four little-endian 32-bit words of the
	// identifier directly. Good for identifiers that are already uniformly
	// random, such as rolling proximity identifiers.
	StrategyChunk Strategy = iota
	// StrategyMurmur hashes the identifier with four murmur3 seeds.
	StrategyMurmur
)

// K is the number of bit positions per identifier.
const K = id.Size / 4

// ParseStrategy maps "chunk" or "murmur" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chunk":
		return StrategyChunk, nil
	case "murmur", "murmur3":
		return StrategyMurmur, nil
	default:
		return StrategyChunk, fmt.Errorf("bloom: unknown strategy %q", s)
	}
}

func (s Strategy) String() string {
	if s == StrategyMurmur {
		return "murmur"
	}
	return "chunk"
}

// Filter is a Bloom filter. It is not safe for concurrent use.
type Filter struct {
	bits     []byte
	nbits    uint32
	strategy Strategy
}

// SizeFor returns the rule-of-thumb filter size in bytes for n identifiers.
func SizeFor(n int) int {
	if n < 1 {
		return 1
	}
	return 2 * n
}

// New allocates a zeroed filter of sizeBytes bytes.
func New(sizeBytes int, strategy Strategy) (*Filter, error) {
	if sizeBytes <= 0 || uint64(sizeBytes)*8 >= 1<<32 {
		return nil, fmt.Errorf("bloom: size %d bytes out of range", sizeBytes)
	}
	return &Filter{
		bits:     make([]byte, sizeBytes),
		nbits:    uint32(sizeBytes * 8),
		strategy: strategy,
	}, nil
}

// Size returns the filter size in bytes.
func (f *Filter) Size() int { return len(f.bits) }

// positions must not be called on a destroyed filter.
func (f *Filter) positions(ident id.ID) [K]uint32 {
	var pos [K]uint32
	for i := 0; i < K; i++ {
		var h uint32
		if f.strategy == StrategyMurmur {
			h = murmur3.Sum32WithSeed(ident[:], uint32(i))
		} else {
			h = binary.LittleEndian.Uint32(ident[i*4 : i*4+4])
		}
		pos[i] = h % f.nbits
	}
	return pos
}

// Add records ident in the filter.
func (f *Filter) Add(ident id.ID) {
	if f.bits == nil {
		return
	}
	for _, p := range f.positions(ident) {
		f.bits[p/8] |= 1 << (p % 8)
	}
}

// ProbablyContains reports whether ident may have been added. A false
// result is definite.
func (f *Filter) ProbablyContains(ident id.ID) bool {
	if f.bits == nil {
		return false
	}
	for _, p := range f.positions(ident) {
		if f.bits[p/8]&(1<<(p%8)) == 0 {
			return false
		}
	}
	return true
}

// Destroy releases the bit array. The filter is empty afterwards.
func (f *Filter) Destroy() {
	f.bits = nil
	f.nbits = 0
}
