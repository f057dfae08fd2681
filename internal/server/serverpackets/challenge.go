package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// ChallengeNotification builds a CHALLENGE_NOTIFICATION payload delivered
// to the challenged player.
//
// Structure:
// - string: challenger username
// - uint16: challenger Elo
func ChallengeNotification(from string, elo uint16) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(from)
	w.WriteUint16(elo)
	return w.Bytes()
}

// ChallengeAccepted builds a CHALLENGE_ACCEPTED payload delivered to the
// challenger when the invited player accepts.
func ChallengeAccepted(from, gameID string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(from)
	w.WriteString(gameID)
	return w.Bytes()
}

// ChallengeDeclined builds a CHALLENGE_DECLINED payload. Also used when
// the named player is offline or gone, declining on their behalf.
func ChallengeDeclined(from string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(from)
	return w.Bytes()
}
