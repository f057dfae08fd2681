package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// Login failure reasons shown to the user.
const (
	ReasonUserAlreadyLoggedIn = "User already logged in."
)

// LoginSuccess builds a LOGIN_SUCCESS payload.
//
// Structure:
// - string: username
// - uint16: current Elo rating
func LoginSuccess(username string, elo uint16) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(username)
	w.WriteUint16(elo)
	return w.Bytes()
}

// LoginFailure builds a LOGIN_FAILURE payload.
func LoginFailure(reason string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(reason)
	return w.Bytes()
}
