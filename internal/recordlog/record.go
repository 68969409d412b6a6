package recordlog

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rzbill/ensdb/internal/seqring"
	"github.com/rzbill/ensdb/pkg/id"
)

// RecordSize is the encoded size of a Record before padding:
// sn:4 | timestamp:4 | rssi:1 | identifier:16 | metadata:4, little-endian.
const RecordSize = 29

// MetadataSize is the size of the encrypted metadata blob.
const MetadataSize = 4

// Record is one stored contact event.
type Record struct {
	SN         uint32
	Timestamp  uint32
	RSSI       int8
	Identifier id.ID
	Metadata   [MetadataSize]byte
}

// EntrySizeFor returns the slot payload size for a write block size.
func EntrySizeFor(writeBlock int) int {
	if writeBlock <= 1 {
		return RecordSize
	}
	return (RecordSize + writeBlock - 1) / writeBlock * writeBlock
}

// EncodeRecord serializes r into a zero-padded buffer of entrySize bytes.
func EncodeRecord(r Record, entrySize int) []byte {
	if entrySize < RecordSize {
		entrySize = RecordSize
	}
	b := make([]byte, entrySize)
	binary.LittleEndian.PutUint32(b[0:4], r.SN&seqring.Mask)
	binary.LittleEndian.PutUint32(b[4:8], r.Timestamp)
	b[8] = byte(r.RSSI)
	copy(b[9:25], r.Identifier[:])
	copy(b[25:29], r.Metadata[:])
	return b
}

// DecodeRecord parses the first RecordSize bytes of b.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, fmt.Errorf("recordlog: short record (%d bytes): %w", len(b), ErrInvalidArgument)
	}
	var r Record
	r.SN = binary.LittleEndian.Uint32(b[0:4])
	r.Timestamp = binary.LittleEndian.Uint32(b[4:8])
	r.RSSI = int8(b[8])
	copy(r.Identifier[:], b[9:25])
	copy(r.Metadata[:], b[25:29])
	return r, nil
}

type recordJSON struct {
	SN         uint32 `json:"sn"`
	Timestamp  uint32 `json:"timestamp"`
	RSSI       int8   `json:"rssi"`
	Identifier id.ID  `json:"identifier"`
	Metadata   string `json:"metadata,omitempty"`
}

// MarshalJSON renders the identifier and metadata as lowercase hex.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		SN:         r.SN,
		Timestamp:  r.Timestamp,
		RSSI:       r.RSSI,
		Identifier: r.Identifier,
		Metadata:   hex.EncodeToString(r.Metadata[:]),
	})
}

// UnmarshalJSON accepts the MarshalJSON form. Metadata may be omitted but
// otherwise must be exactly MetadataSize bytes of hex.
func (r *Record) UnmarshalJSON(b []byte) error {
	var v recordJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	out := Record{SN: v.SN, Timestamp: v.Timestamp, RSSI: v.RSSI, Identifier: v.Identifier}
	if v.Metadata != "" {
		m, err := ParseMetadata(v.Metadata)
		if err != nil {
			return err
		}
		out.Metadata = m
	}
	*r = out
	return nil
}

// ParseMetadata decodes exactly MetadataSize bytes of hex.
func ParseMetadata(s string) ([MetadataSize]byte, error) {
	var out [MetadataSize]byte
	m, err := hex.DecodeString(s)
	if err != nil || len(m) != MetadataSize {
		return out, fmt.Errorf("recordlog: metadata %q: want %d hex bytes: %w", s, MetadataSize, ErrInvalidArgument)
	}
	copy(out[:], m)
	return out, nil
}
