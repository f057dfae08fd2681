package protocol

import (
	"encoding/binary"
	"fmt"
)

// Reader provides sequential typed access to a packet payload.
// Uses big-endian byte order for all multi-byte values.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader over a packet payload.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("ReadByte: not enough data (pos=%d, len=%d): %w", r.pos, len(r.data), ErrMalformedPacket)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBool reads a 1-byte boolean. Any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("ReadBool: %w", err)
	}
	return b != 0, nil
}

// ReadUint16 reads a uint16 (2 bytes, BE).
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("ReadUint16: not enough data (pos=%d, len=%d): %w", r.pos, len(r.data), ErrMalformedPacket)
	}
	val := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return val, nil
}

// ReadString reads a 1-byte-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	if r.pos >= len(r.data) {
		return "", fmt.Errorf("ReadString: missing length prefix (pos=%d, len=%d): %w", r.pos, len(r.data), ErrMalformedPacket)
	}
	n := int(r.data[r.pos])
	if r.pos+1+n > len(r.data) {
		return "", fmt.Errorf("ReadString: length prefix %d overruns payload (pos=%d, len=%d): %w",
			n, r.pos, len(r.data), ErrMalformedPacket)
	}
	s := string(r.data[r.pos+1 : r.pos+1+n])
	r.pos += 1 + n
	return s, nil
}

// Remaining reports how many unread bytes the payload still holds.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}
