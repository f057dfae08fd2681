package clientpackets

import (
	"fmt"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Move is sent by the player whose turn it is.
//
// Structure:
// - string: game ID
// - string: move in UCI notation (e.g. "e2e4", "e7e8q")
type Move struct {
	GameID  string
	UCIMove string
}

// ParseMove parses a MOVE payload.
func ParseMove(data []byte) (*Move, error) {
	r := protocol.NewReader(data)

	gameID, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading game id: %w", err)
	}

	uciMove, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("reading uci move: %w", err)
	}

	return &Move{GameID: gameID, UCIMove: uciMove}, nil
}
