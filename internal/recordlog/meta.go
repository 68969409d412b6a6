package recordlog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"sync"
)

// MetaStore is the small durable key/value store holding log metadata.
// pebblestore.DB satisfies it.
type MetaStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// KeyMeta is the key under which {oldest, count} is stored.
var KeyMeta = []byte("recordlog/meta")

// Layout: version:1 | oldest_be4 | count_be4 | crc32c_be4
const (
	metaVersion = 1
	metaLen     = 13
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errBadMeta = errors.New("recordlog: malformed metadata")

type logMeta struct {
	oldest uint32
	count  uint32
}

func encodeMeta(m logMeta) []byte {
	b := make([]byte, metaLen)
	b[0] = metaVersion
	binary.BigEndian.PutUint32(b[1:5], m.oldest)
	binary.BigEndian.PutUint32(b[5:9], m.count)
	binary.BigEndian.PutUint32(b[9:13], crc32.Checksum(b[:9], castagnoli))
	return b
}

func decodeMeta(b []byte) (logMeta, error) {
	if len(b) != metaLen || b[0] != metaVersion {
		return logMeta{}, errBadMeta
	}
	if crc32.Checksum(b[:9], castagnoli) != binary.BigEndian.Uint32(b[9:13]) {
		return logMeta{}, errBadMeta
	}
	return logMeta{
		oldest: binary.BigEndian.Uint32(b[1:5]),
		count:  binary.BigEndian.Uint32(b[5:9]),
	}, nil
}

// ErrMetaNotFound is returned by MemMeta for absent keys.
var ErrMetaNotFound = errors.New("recordlog: meta key not found")

// MemMeta is an in-memory MetaStore.
type MemMeta struct {
	mu sync.Mutex
	m  map[string][]byte

	// FailSets makes the next Set calls fail. Test hook.
	FailSets int
}

// NewMemMeta returns an empty in-memory MetaStore.
func NewMemMeta() *MemMeta { return &MemMeta{m: map[string][]byte{}} }

func (s *MemMeta) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[string(key)]
	if !ok {
		return nil, ErrMetaNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemMeta) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSets > 0 {
		s.FailSets--
		return errors.New("recordlog: injected meta failure")
	}
	s.m[string(key)] = append([]byte(nil), value...)
	return nil
}
