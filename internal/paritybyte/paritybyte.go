// Package paritybyte implements the smallest unit this node stores: an
// 8-bit value paired with an odd-parity invariant over its nine bits.
package paritybyte

import "math/bits"

// Byte is an 8-bit data value plus an implicit ninth parity bit chosen so
// that the total count of set bits, data plus parity, is odd. The parity
// bit is never observed on the wire; only the eight data bits are
// serialized, and a receiver recomputes its own parity bit on arrival.
type Byte struct {
	data   uint8
	parity bool
}

// New constructs a Byte from a raw 8-bit value, computing the parity bit
// so that the value starts out parity-ok.
func New(data uint8) Byte {
	return Byte{data: data, parity: oddParityBit(data)}
}

// Value returns the eight data bits.
func (b Byte) Value() uint8 {
	return b.data
}

// IsParityOk reports whether the stored parity bit is still consistent
// with the data bits, i.e. whether data+parity together carry an odd
// number of set bits.
func (b Byte) IsParityOk() bool {
	return oddParityBit(b.data) == b.parity
}

// ParityBit returns the stored parity bit, independent of whether it is
// still consistent with the data bits. Byte stores use this to pack a
// Byte into a single atomically-addressable word.
func (b Byte) ParityBit() bool {
	return b.parity
}

// FromRaw reconstructs a Byte from its two stored bits directly, bypassing
// parity computation. Byte stores use this to unpack a Byte from a single
// atomically-addressable word.
func FromRaw(data uint8, parityBit bool) Byte {
	return Byte{data: data, parity: parityBit}
}

// Corrupt flips one data bit without touching the stored parity bit, so
// that IsParityOk subsequently reports false. It is a test/operator aid
// for fault injection, not part of normal node operation.
func (b Byte) Corrupt(bitIndex int) Byte {
	b.data ^= 1 << uint(bitIndex&7)
	return b
}

// oddParityBit returns the parity bit that, appended to data, makes the
// total number of set bits odd.
func oddParityBit(data uint8) bool {
	return bits.OnesCount8(data)%2 == 0
}
