package recordlog

import "github.com/rzbill/ensdb/internal/slotstore"

// The log shares the slot store's error taxonomy so callers can compare
// against either package.
var (
	ErrInternal        = slotstore.ErrInternal
	ErrNotFound        = slotstore.ErrNotFound
	ErrDeleted         = slotstore.ErrDeleted
	ErrAddressInUse    = slotstore.ErrAddressInUse
	ErrInvalidArgument = slotstore.ErrInvalidArgument
)
