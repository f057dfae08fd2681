package clientpackets

import (
	"fmt"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Login is sent by the client to bind an existing account to the connection.
//
// Structure:
// - string: username
type Login struct {
	Username string
}

// ParseLogin parses a LOGIN payload.
func ParseLogin(data []byte) (*Login, error) {
	r := protocol.NewReader(data)

	username, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading username: %w", err)
	}

	return &Login{Username: username}, nil
}
