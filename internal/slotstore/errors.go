package slotstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInternal reports a flash I/O failure.
	ErrInternal = errors.New("internal error")
	// ErrNotFound reports a slot without valid data (erased or failing CRC).
	ErrNotFound = errors.New("entry not found")
	// ErrDeleted reports a slot whose liveness bit is clear.
	ErrDeleted = errors.New("entry deleted")
	// ErrAddressInUse reports a write to a slot that has not been erased.
	ErrAddressInUse = errors.New("address already in use")
	// ErrInvalidArgument reports a rejected argument; nothing was touched.
	ErrInvalidArgument = errors.New("invalid argument")
)

// SlotError carries the slot context of a failed operation. It unwraps to
// one of the package sentinels.
type SlotError struct {
	Op  string
	ID  int
	Err error

	// Stored and Computed are set for CRC mismatches.
	Stored   uint8
	Computed uint8
	// Cause is the underlying flash error, if any.
	Cause error
}

func (e *SlotError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("slotstore: %s slot %d: %v: %v", e.Op, e.ID, e.Err, e.Cause)
	case e.Stored != e.Computed:
		return fmt.Sprintf("slotstore: %s slot %d: %v (crc stored %#02x computed %#02x)", e.Op, e.ID, e.Err, e.Stored, e.Computed)
	default:
		return fmt.Sprintf("slotstore: %s slot %d: %v", e.Op, e.ID, e.Err)
	}
}

func (e *SlotError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func slotErr(op string, id int, err error) *SlotError {
	return &SlotError{Op: op, ID: id, Err: err}
}

func ioErr(op string, id int, cause error) *SlotError {
	return &SlotError{Op: op, ID: id, Err: ErrInternal, Cause: cause}
}
