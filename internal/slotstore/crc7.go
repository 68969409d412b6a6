package slotstore

// crcSeed matches the seed used by the device firmware so that images stay
// readable across implementations.
const crcSeed = 42

// crc7 computes the CRC-7 (polynomial x^7+x^3+1) of data, MSB first. The
// result is left aligned: bits 1..7 carry the CRC and bit 0 is always zero,
// leaving room for the liveness flag.
func crc7(seed uint8, data []byte) uint8 {
	for _, b := range data {
		e := seed ^ b
		f := e ^ (e >> 4) ^ (e >> 7)
		seed = (f << 1) ^ (f << 4)
	}
	return seed
}
