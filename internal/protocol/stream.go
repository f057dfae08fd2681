package protocol

import "encoding/binary"

// Stream reassembles frames from a TCP byte stream. Bytes arrive in
// arbitrary chunks via Feed; Next detaches one complete packet at a time,
// leaving partial frames buffered until more bytes arrive.
//
// Not safe for concurrent use; each connection's receive loop owns its
// Stream exclusively.
type Stream struct {
	buf []byte
}

// Feed appends a chunk read from the socket.
func (s *Stream) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Next detaches the oldest complete packet from the buffer. It returns
// false when the buffered bytes do not yet form a whole frame.
func (s *Stream) Next() (Packet, bool) {
	if len(s.buf) < HeaderSize {
		return Packet{}, false
	}

	total := HeaderSize + int(binary.BigEndian.Uint16(s.buf[1:HeaderSize]))
	if len(s.buf) < total {
		return Packet{}, false
	}

	p := Packet{
		Type:    Type(s.buf[0]),
		Payload: make([]byte, total-HeaderSize),
	}
	copy(p.Payload, s.buf[HeaderSize:total])

	// Shift the remainder down so the buffer never grows past the
	// largest burst seen.
	n := copy(s.buf, s.buf[total:])
	s.buf = s.buf[:n]

	return p, true
}

// Buffered reports how many bytes await reassembly.
func (s *Stream) Buffered() int {
	return len(s.buf)
}
