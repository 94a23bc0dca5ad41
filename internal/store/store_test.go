package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parity-mesh/paritynode/internal/paritybyte"
)

func TestNewIsFullyParityOk(t *testing.T) {
	s := New()
	require.Equal(t, Size, s.Len())
	require.Equal(t, -1, s.FirstSuspect(0))
}

func TestNewFromBytesRejectsWrongLength(t *testing.T) {
	_, err := NewFromBytes(make([]byte, 999))
	require.Error(t, err)
}

func TestNewFromBytesRoundTrips(t *testing.T) {
	raw := make([]byte, Size)
	raw[0], raw[1], raw[Size-1] = 0x41, 0x42, 0xff

	s, err := NewFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, uint8(0x41), s.Get(0).Value())
	require.Equal(t, uint8(0x42), s.Get(1).Value())
	require.Equal(t, uint8(0xff), s.Get(Size-1).Value())
}

func TestSetRangeAndRange(t *testing.T) {
	s := New()
	data := []uint8{10, 20, 30, 40}
	s.SetRange(100, data)
	require.Equal(t, data, s.Range(100, len(data)))
}

func TestCorruptionIsVisibleThroughGet(t *testing.T) {
	s := New()
	s.Set(42, paritybyte.New(0x7f).Corrupt(0))
	require.False(t, s.Get(42).IsParityOk())
	require.Equal(t, 42, s.FirstSuspect(0))
}

func TestSetNeverTearsAValue(t *testing.T) {
	// A freshly-Set value must always read back whole: either the byte we
	// wrote, with parity consistent, never a mix of old/new bits.
	s := New()
	b := paritybyte.New(0xaa)
	s.Set(7, b)
	got := s.Get(7)
	require.Equal(t, b.Value(), got.Value())
	require.True(t, got.IsParityOk())
}
