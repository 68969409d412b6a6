// Package id provides the 16-byte broadcast identifier carried by every
// contact record.
//
// An ID is opaque: the store never interprets it beyond equality and
// lexical ordering. The canonical text form is 32 lowercase hex digits.
//
//	x, err := id.Parse("00112233445566778899aabbccddeeff")
//	r := id.Random()
//	x.Compare(r)
package id
