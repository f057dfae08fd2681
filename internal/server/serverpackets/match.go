package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// AutoMatchFound builds an AUTO_MATCH_FOUND payload. Each of the two
// proposed players receives the other as opponent.
//
// Structure:
// - string: opponent username
// - uint16: opponent Elo
// - string: game ID of the proposed pairing
func AutoMatchFound(opponent string, opponentElo uint16, gameID string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(opponent)
	w.WriteUint16(opponentElo)
	w.WriteString(gameID)
	return w.Bytes()
}

// MatchDeclinedNotification builds a MATCH_DECLINED_NOTIFICATION payload,
// telling the peer their proposed pairing was cancelled.
func MatchDeclinedNotification(gameID string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(gameID)
	return w.Bytes()
}
