// Package protocol implements the framed binary wire protocol spoken
// between chess clients and the server.
//
// Each packet on the wire is:
//
//	type (1 byte) | payload length (uint16 big-endian) | payload
//
// Payload fields are packed without alignment: strings carry a 1-byte
// length prefix (max 255 bytes), 16-bit integers are big-endian, booleans
// are a single 0/1 byte.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed size of the frame header (type + length).
	HeaderSize = 3

	// MaxPayloadSize is the largest payload a frame can carry.
	MaxPayloadSize = 65535

	// MaxStringSize is the largest string a payload field can carry.
	MaxStringSize = 255
)

var (
	// ErrMalformedPacket reports a frame or payload whose declared
	// lengths overrun the available bytes.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrPayloadTooLarge reports a payload or string field that exceeds
	// the wire limits.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Type is the 1-byte message kind tag.
//
// Values are fixed for the life of a deployment; they match the original
// protocol revision and must not be renumbered.
type Type byte

const (
	TypeRegister        Type = 0x10
	TypeRegisterSuccess Type = 0x11
	TypeRegisterFailure Type = 0x12

	TypeLogin        Type = 0x20
	TypeLoginSuccess Type = 0x21
	TypeLoginFailure Type = 0x22

	TypeGameStart        Type = 0x30
	TypeMove             Type = 0x32
	TypeMoveError        Type = 0x33
	TypeGameStatusUpdate Type = 0x34
	TypeGameEnd          Type = 0x35

	TypeRequestPlayerList Type = 0x40
	TypePlayerList        Type = 0x41

	TypeChallengeRequest      Type = 0x50
	TypeChallengeNotification Type = 0x51
	TypeChallengeResponse     Type = 0x52
	TypeChallengeAccepted     Type = 0x53
	TypeChallengeDeclined     Type = 0x54

	TypeAutoMatchRequest          Type = 0x55
	TypeAutoMatchFound            Type = 0x56
	TypeAutoMatchAccepted         Type = 0x57
	TypeAutoMatchDeclined         Type = 0x58
	TypeMatchDeclinedNotification Type = 0x59
)

var typeNames = map[Type]string{
	TypeRegister:                  "REGISTER",
	TypeRegisterSuccess:           "REGISTER_SUCCESS",
	TypeRegisterFailure:           "REGISTER_FAILURE",
	TypeLogin:                     "LOGIN",
	TypeLoginSuccess:              "LOGIN_SUCCESS",
	TypeLoginFailure:              "LOGIN_FAILURE",
	TypeGameStart:                 "GAME_START",
	TypeMove:                      "MOVE",
	TypeMoveError:                 "MOVE_ERROR",
	TypeGameStatusUpdate:          "GAME_STATUS_UPDATE",
	TypeGameEnd:                   "GAME_END",
	TypeRequestPlayerList:         "REQUEST_PLAYER_LIST",
	TypePlayerList:                "PLAYER_LIST",
	TypeChallengeRequest:          "CHALLENGE_REQUEST",
	TypeChallengeNotification:     "CHALLENGE_NOTIFICATION",
	TypeChallengeResponse:         "CHALLENGE_RESPONSE",
	TypeChallengeAccepted:         "CHALLENGE_ACCEPTED",
	TypeChallengeDeclined:         "CHALLENGE_DECLINED",
	TypeAutoMatchRequest:          "AUTO_MATCH_REQUEST",
	TypeAutoMatchFound:            "AUTO_MATCH_FOUND",
	TypeAutoMatchAccepted:         "AUTO_MATCH_ACCEPTED",
	TypeAutoMatchDeclined:         "AUTO_MATCH_DECLINED",
	TypeMatchDeclinedNotification: "MATCH_DECLINED_NOTIFICATION",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
}

// Packet is one decoded frame. Transient: payloads are never stored
// beyond handler execution.
type Packet struct {
	Type    Type
	Payload []byte
}

// Encode frames p into a fresh byte slice ready for the wire.
func Encode(p Packet) ([]byte, error) {
	if len(p.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("encoding %v packet of %d bytes: %w", p.Type, len(p.Payload), ErrPayloadTooLarge)
	}

	buf := make([]byte, HeaderSize+len(p.Payload))
	buf[0] = byte(p.Type)
	binary.BigEndian.PutUint16(buf[1:HeaderSize], uint16(len(p.Payload)))
	copy(buf[HeaderSize:], p.Payload)
	return buf, nil
}

// Decode parses one complete frame from data. The returned payload is a
// copy, safe to retain after data is reused.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("decoding packet: %d bytes is shorter than the header: %w", len(data), ErrMalformedPacket)
	}

	length := int(binary.BigEndian.Uint16(data[1:HeaderSize]))
	if len(data) < HeaderSize+length {
		return Packet{}, fmt.Errorf("decoding packet: declared length %d exceeds remaining %d bytes: %w",
			length, len(data)-HeaderSize, ErrMalformedPacket)
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+length])
	return Packet{Type: Type(data[0]), Payload: payload}, nil
}

// WritePacket frames p and writes it to w in a single write.
func WritePacket(w io.Writer, p Packet) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %v packet: %w", p.Type, err)
	}
	return nil
}

// ReadPacket reads one complete frame from r.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, fmt.Errorf("reading packet header: %w", err)
	}

	payload := make([]byte, binary.BigEndian.Uint16(header[1:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, fmt.Errorf("reading %v packet payload: %w", Type(header[0]), err)
	}

	return Packet{Type: Type(header[0]), Payload: payload}, nil
}
