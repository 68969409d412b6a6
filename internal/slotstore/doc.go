// Package slotstore implements a fixed-size-entry store over one raw flash
// partition.
//
// # Slot layout
//
// Every slot occupies the next power of two that fits entrySize+1 bytes:
//
//	payload[entrySize] | meta(1) | padding (left erased)
//
// Bit 0 of meta is the liveness flag, bits 1..7 hold the CRC7 of the payload.
// A delete programs the whole slot to zero, which clears liveness and also
// invalidates the CRC. Reads therefore cannot tell "deleted" apart from
// "corrupted" in general; a clear liveness bit reports ErrDeleted and every
// other mismatch reports ErrNotFound. Mismatches are counted in Stats.
//
// # Write discipline
//
// Flash cannot be rewritten in place. Write refuses a slot that is not fully
// erased with ErrAddressInUse, and space is reclaimed a sector at a time with
// EraseContainingSector.
//
//	s, _ := slotstore.New(part, 29)
//	_ = s.Write(0, payload)
//	p, err := s.Read(0)
//	freed, _ := s.EraseContainingSector(0)
package slotstore
