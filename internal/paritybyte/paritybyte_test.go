package paritybyte

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsParityOk(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := New(uint8(v))
		require.True(t, b.IsParityOk(), "value %d should start parity-ok", v)
		require.Equal(t, uint8(v), b.Value())
	}
}

func TestCorruptFlipsDataLeavesParityBitAlone(t *testing.T) {
	b := New(0x55)
	require.True(t, b.IsParityOk())

	corrupted := b.Corrupt(0)
	require.NotEqual(t, b.Value(), corrupted.Value(), "corruption must mutate the data bits")
	require.False(t, corrupted.IsParityOk(), "single-bit corruption must be detectable")
}

func TestCorruptEveryBitPosition(t *testing.T) {
	for bit := 0; bit < 8; bit++ {
		b := New(0x00)
		c := b.Corrupt(bit)
		require.False(t, c.IsParityOk(), "bit %d corruption should fail parity", bit)
	}
}

func TestRoundTripAllValues(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := New(uint8(v))
		require.True(t, b.IsParityOk())
		for bit := 0; bit < 8; bit++ {
			require.False(t, b.Corrupt(bit).IsParityOk())
		}
	}
}
