// Package store implements the node's fixed-size, concurrently accessed
// byte store: exactly Size parity bytes, each independently readable and
// writable without a coarse lock.
package store

import (
	"fmt"
	"sync/atomic"

	"github.com/parity-mesh/paritynode/internal/paritybyte"
)

// Size is the fixed length of the byte store, per spec: exactly
// 1,000,000 indices, 0 .. Size-1.
const Size = 1_000_000

const parityBitMask = uint32(1) << 8

// Store is a fixed-length sequence of paritybyte.Byte. Every slot is
// boxed in its own atomic.Uint32 so that a writer (bootstrap worker,
// corrector, or injection console) replaces a slot's value in one
// indivisible operation; readers (server handlers, correction scanners)
// never observe a torn byte, only a whole value that is either the old
// one or the new one.
type Store struct {
	slots []atomic.Uint32
}

// New allocates a Store of Size slots, all parity-ok and zero-valued.
func New() *Store {
	s := &Store{slots: make([]atomic.Uint32, Size)}
	zero := pack(paritybyte.New(0))
	for i := range s.slots {
		s.slots[i].Store(zero)
	}
	return s
}

// NewFromBytes seeds a Store from exactly Size raw bytes, each becoming a
// fresh parity-ok Byte. It is the counterpart of a pre-loaded data file;
// callers are responsible for reading that file (an external concern).
func NewFromBytes(raw []byte) (*Store, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("store: seed data must be exactly %d bytes, got %d", Size, len(raw))
	}
	s := &Store{slots: make([]atomic.Uint32, Size)}
	for i, v := range raw {
		s.slots[i].Store(pack(paritybyte.New(v)))
	}
	return s, nil
}

// Len returns the number of indices in the store (always Size).
func (s *Store) Len() int {
	return len(s.slots)
}

// Get returns the Byte currently stored at i.
func (s *Store) Get(i int) paritybyte.Byte {
	return unpack(s.slots[i].Load())
}

// Set atomically replaces the Byte stored at i.
func (s *Store) Set(i int, b paritybyte.Byte) {
	s.slots[i].Store(pack(b))
}

// SetRange writes len(data) freshly parity-ok bytes starting at offset.
// Used by bootstrap workers, each of which owns a disjoint range.
func (s *Store) SetRange(offset int, data []uint8) {
	for i, v := range data {
		s.Set(offset+i, paritybyte.New(v))
	}
}

// Range returns a copy of the Value() bytes in [offset, offset+length).
// Callers must have already ensured every byte in range is parity-ok;
// Range itself does not check.
func (s *Store) Range(offset, length int) []uint8 {
	out := make([]uint8, length)
	for i := 0; i < length; i++ {
		out[i] = s.Get(offset + i).Value()
	}
	return out
}

// FirstSuspect scans forward from start (inclusive) and returns the index
// of the first byte whose parity check fails, or -1 if none is found
// before the end of the store.
func (s *Store) FirstSuspect(start int) int {
	for i := start; i < len(s.slots); i++ {
		if !s.Get(i).IsParityOk() {
			return i
		}
	}
	return -1
}

func pack(b paritybyte.Byte) uint32 {
	v := uint32(b.Value())
	if b.ParityBit() {
		v |= parityBitMask
	}
	return v
}

func unpack(v uint32) paritybyte.Byte {
	return paritybyte.FromRaw(uint8(v&0xff), v&parityBitMask != 0)
}
