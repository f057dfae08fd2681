package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// Move rejection reasons. Snake_case by wire convention.
const (
	ReasonGameNotFound    = "game_not_found"
	ReasonNotAParticipant = "not_a_participant"
	ReasonNotYourTurn     = "not_your_turn"
	ReasonIllegalMove     = "illegal_move"
)

// NoteCheck is the status-update note sent while the side to move is in check.
const NoteCheck = "Check!"

// GameStart builds a GAME_START payload.
//
// Structure:
// - string: game ID
// - string: player 1 username (white)
// - string: player 2 username (black)
// - string: starting player username
// - string: FEN of the starting position
func GameStart(gameID, player1, player2, startingPlayer, fen string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(gameID)
	w.WriteString(player1)
	w.WriteString(player2)
	w.WriteString(startingPlayer)
	w.WriteString(fen)
	return w.Bytes()
}

// MoveError builds a MOVE_ERROR payload.
func MoveError(gameID, reason string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(gameID)
	w.WriteString(reason)
	return w.Bytes()
}

// GameStatusUpdate builds a GAME_STATUS_UPDATE payload.
//
// Structure:
// - string: game ID
// - string: FEN after the move
// - string: username whose turn it is now
// - bool: game over
// - string: note ("Check!" or empty)
func GameStatusUpdate(gameID, fen, currentTurn string, isOver bool, note string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(gameID)
	w.WriteString(fen)
	w.WriteString(currentTurn)
	w.WriteBool(isOver)
	w.WriteString(note)
	return w.Bytes()
}

// GameEnd builds a GAME_END payload. The winner is a username, or "<draw>"
// for drawn games.
//
// Structure:
// - string: game ID
// - string: winner
// - string: termination reason
// - uint16: half-moves played
func GameEnd(gameID, winner, reason string, halfMoves uint16) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(gameID)
	w.WriteString(winner)
	w.WriteString(reason)
	w.WriteUint16(halfMoves)
	return w.Bytes()
}
