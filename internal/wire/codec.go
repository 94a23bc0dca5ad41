package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// nullLength is the sentinel response-length value meaning "cannot serve
// this request" in place of a byte array.
const nullLength uint32 = 0xffffffff

// maxResponseLength bounds how large a response frame this side of the
// protocol will ever allocate for, guarding against a peer lying about
// the length of a frame it is about to send.
const maxResponseLength = 1 << 20 // the whole store, at most

// ErrNullResponse is returned by ReadResponse when the peer answered with
// the null sentinel rather than data.
var ErrNullResponse = errors.New("wire: peer returned null response")

// ErrResponseTooLarge is returned by ReadResponse when a peer claims a
// response length that exceeds maxResponseLength.
var ErrResponseTooLarge = errors.New("wire: response length exceeds maximum")

// WriteRequest serializes a BlockRequest as two little-endian int32 fields.
func WriteRequest(w io.Writer, r BlockRequest) error {
	if err := binary.Write(w, binary.LittleEndian, r.Start); err != nil {
		return fmt.Errorf("wire: write request start: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, r.Length); err != nil {
		return fmt.Errorf("wire: write request length: %w", err)
	}
	return nil
}

// ReadRequest deserializes a BlockRequest written by WriteRequest.
func ReadRequest(r io.Reader) (BlockRequest, error) {
	var req BlockRequest
	if err := binary.Read(r, binary.LittleEndian, &req.Start); err != nil {
		return BlockRequest{}, fmt.Errorf("wire: read request start: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &req.Length); err != nil {
		return BlockRequest{}, fmt.Errorf("wire: read request length: %w", err)
	}
	return req, nil
}

// WriteResponse writes a length-prefixed byte array, or the null sentinel
// when data is nil (the "cannot serve" response).
func WriteResponse(w io.Writer, data []uint8) error {
	if data == nil {
		return binary.Write(w, binary.LittleEndian, nullLength)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("wire: write response length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wire: write response payload: %w", err)
	}
	return nil
}

// ReadResponse reads a response frame. It returns ErrNullResponse when the
// peer sent the null sentinel instead of data.
func ReadResponse(r io.Reader) ([]uint8, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("wire: read response length: %w", err)
	}
	if length == nullLength {
		return nil, ErrNullResponse
	}
	if length > maxResponseLength {
		return nil, fmt.Errorf("%w: %d", ErrResponseTooLarge, length)
	}
	data := make([]uint8, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("wire: read response payload: %w", err)
	}
	return data, nil
}
