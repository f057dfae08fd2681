// Package clientpackets defines the client→server payloads and their
// parsers. Parsers receive a packet payload without the frame header.
package clientpackets

import (
	"fmt"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Register is sent by the client to create a new account.
//
// Structure:
// - string: username
type Register struct {
	Username string
}

// ParseRegister parses a REGISTER payload.
func ParseRegister(data []byte) (*Register, error) {
	r := protocol.NewReader(data)

	username, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading username: %w", err)
	}

	return &Register{Username: username}, nil
}
