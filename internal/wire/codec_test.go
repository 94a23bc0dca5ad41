package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := BlockRequest{Start: 990_000, Length: 10_000}
	require.NoError(t, WriteRequest(&buf, req))

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestResponseRoundTripData(t *testing.T) {
	var buf bytes.Buffer
	data := []uint8{1, 2, 3, 4, 5}
	require.NoError(t, WriteResponse(&buf, data))

	got, err := ReadResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestResponseRoundTripNull(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, nil))

	got, err := ReadResponse(&buf)
	require.ErrorIs(t, err, ErrNullResponse)
	require.Nil(t, got)
}

func TestValidateBoundaries(t *testing.T) {
	require.NoError(t, BlockRequest{Start: 0, Length: 1}.Validate(1_000_000))
	require.NoError(t, BlockRequest{Start: 999_999, Length: 1}.Validate(1_000_000))
	require.ErrorIs(t, BlockRequest{Start: -1, Length: 1}.Validate(1_000_000), ErrOutOfRange)
	require.ErrorIs(t, BlockRequest{Start: 999_999, Length: 2}.Validate(1_000_000), ErrOutOfRange)
	require.ErrorIs(t, BlockRequest{Start: 0, Length: 0}.Validate(1_000_000), ErrOutOfRange)
}

func TestResponseRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, make([]uint8, 0)))
	// overwrite the length prefix with something huge but not the null sentinel
	buf2 := bytes.NewBuffer(nil)
	_ = buf2
	// construct a frame claiming an oversized length directly
	huge := make([]byte, 4)
	huge[0], huge[1], huge[2], huge[3] = 0x00, 0x00, 0x30, 0x00 // 0x00300000 > maxResponseLength
	_, err := ReadResponse(bytes.NewReader(huge))
	require.ErrorIs(t, err, ErrResponseTooLarge)
}
