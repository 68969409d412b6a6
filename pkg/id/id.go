package id

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size is the length of an ID in bytes.
const Size = 16

// ID is a 16-byte opaque identifier.
type ID [Size]byte

// ErrInvalid is returned by Parse for malformed input.
var ErrInvalid = errors.New("id: invalid identifier")

// Bytes returns a copy of the raw representation.
func (i ID) Bytes() []byte { b := make([]byte, Size); copy(b, i[:]); return b }

// String returns the lowercase hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// IsZero reports whether every byte is zero.
func (i ID) IsZero() bool { return i == ID{} }

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Parse decodes 32 hex digits. Dashes are ignored so UUID-style input is accepted.
func Parse(s string) (ID, error) {
	var out ID
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(s) != 2*Size {
		return out, fmt.Errorf("%w: want %d hex digits, got %d", ErrInvalid, 2*Size, len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

// MustParse is Parse that panics on error. Intended for fixtures.
func MustParse(s string) ID {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromBytes copies b into an ID. b must be exactly Size bytes.
func FromBytes(b []byte) (ID, error) {
	var out ID
	if len(b) != Size {
		return out, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalid, Size, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Random returns a cryptographically random ID.
func Random() ID {
	var out ID
	if _, err := rand.Read(out[:]); err != nil {
		panic(fmt.Sprintf("id: entropy source failed: %v", err))
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
