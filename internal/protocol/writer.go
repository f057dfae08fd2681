package protocol

import (
	"bytes"
	"fmt"
	"sync"
)

// Writer builds packet payloads field by field.
// Uses big-endian byte order for all multi-byte values.
//
// Size violations (string over 255 bytes, payload over 65535) stick to
// the writer and surface from Bytes, so builders can chain writes
// without per-field error checks.
type Writer struct {
	buf bytes.Buffer
	err error
}

// writerPool reduces allocations by reusing Writers across packets.
var writerPool = sync.Pool{
	New: func() any {
		w := &Writer{}
		w.buf.Grow(256)
		return w
	},
}

// GetWriter returns a reset Writer from the pool.
func GetWriter() *Writer {
	w := writerPool.Get().(*Writer)
	w.buf.Reset()
	w.err = nil
	return w
}

// Put returns the Writer to the pool. Do not use it afterwards.
func (w *Writer) Put() {
	writerPool.Put(w)
}

// WriteByte writes a single byte. The signature satisfies io.ByteWriter;
// the returned error is always nil since size violations surface from
// Bytes.
func (w *Writer) WriteByte(b byte) error {
	if w.err != nil {
		return nil
	}
	w.buf.WriteByte(b)
	return nil
}

// WriteBool writes a boolean as one 0/1 byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
		return
	}
	w.WriteByte(0)
}

// WriteUint16 writes a uint16 (2 bytes, BE).
func (w *Writer) WriteUint16(val uint16) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(byte(val >> 8))
	w.buf.WriteByte(byte(val))
}

// WriteString writes a 1-byte-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringSize {
		w.err = fmt.Errorf("writing string of %d bytes: %w", len(s), ErrPayloadTooLarge)
		return
	}
	w.buf.WriteByte(byte(len(s)))
	w.buf.WriteString(s)
}

// Bytes returns a copy of the accumulated payload, or the first size
// violation hit while writing.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.buf.Len() > MaxPayloadSize {
		return nil, fmt.Errorf("payload of %d bytes: %w", w.buf.Len(), ErrPayloadTooLarge)
	}
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out, nil
}
