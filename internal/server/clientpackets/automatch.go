package clientpackets

import (
	"fmt"

	"github.com/tcpchess/chessd/internal/protocol"
)

// AutoMatchRequest asks the server to enqueue the player for matchmaking.
// The username must match the connection's binding; the server does not
// trust it as an identity.
type AutoMatchRequest struct {
	Username string
}

// ParseAutoMatchRequest parses an AUTO_MATCH_REQUEST payload.
func ParseAutoMatchRequest(data []byte) (*AutoMatchRequest, error) {
	r := protocol.NewReader(data)

	username, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading username: %w", err)
	}

	return &AutoMatchRequest{Username: username}, nil
}

// AutoMatchAccepted confirms a proposed pairing.
type AutoMatchAccepted struct {
	GameID string
}

// ParseAutoMatchAccepted parses an AUTO_MATCH_ACCEPTED payload.
func ParseAutoMatchAccepted(data []byte) (*AutoMatchAccepted, error) {
	r := protocol.NewReader(data)

	gameID, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading game id: %w", err)
	}

	return &AutoMatchAccepted{GameID: gameID}, nil
}

// AutoMatchDeclined rejects a proposed pairing.
type AutoMatchDeclined struct {
	GameID string
}

// ParseAutoMatchDeclined parses an AUTO_MATCH_DECLINED payload.
func ParseAutoMatchDeclined(data []byte) (*AutoMatchDeclined, error) {
	r := protocol.NewReader(data)

	gameID, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading game id: %w", err)
	}

	return &AutoMatchDeclined{GameID: gameID}, nil
}
