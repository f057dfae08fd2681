package clientpackets

import (
	"fmt"

	"github.com/tcpchess/chessd/internal/protocol"
)

// ChallengeRequest invites a named player to a direct game.
//
// Structure:
// - string: username of the invited player
type ChallengeRequest struct {
	ToUsername string
}

// ParseChallengeRequest parses a CHALLENGE_REQUEST payload.
func ParseChallengeRequest(data []byte) (*ChallengeRequest, error) {
	r := protocol.NewReader(data)

	to, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading challenged username: %w", err)
	}

	return &ChallengeRequest{ToUsername: to}, nil
}

// ChallengeResponse answers a received challenge.
//
// Structure:
// - string: username of the challenger being answered
// - bool: accepted
type ChallengeResponse struct {
	FromUsername string
	Accepted     bool
}

// ParseChallengeResponse parses a CHALLENGE_RESPONSE payload.
func ParseChallengeResponse(data []byte) (*ChallengeResponse, error) {
	r := protocol.NewReader(data)

	from, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading challenger username: %w", err)
	}

	accepted, err := r.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("reading accepted flag: %w", err)
	}

	return &ChallengeResponse{FromUsername: from, Accepted: accepted}, nil
}
