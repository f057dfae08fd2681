// Package serverpackets builds the server→client payloads. Builders
// return the payload bytes without the frame header; framing happens at
// the send path.
package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// Registration failure reasons shown to the user.
const (
	ReasonUsernameTaken   = "Username already exists."
	ReasonInvalidUsername = "Invalid username."
	ReasonAlreadyLoggedIn = "Already logged in."
	ReasonInternalError   = "Internal server error."
)

// RegisterSuccess builds a REGISTER_SUCCESS payload.
//
// Structure:
// - string: username
// - uint16: starting Elo rating
func RegisterSuccess(username string, elo uint16) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(username)
	w.WriteUint16(elo)
	return w.Bytes()
}

// RegisterFailure builds a REGISTER_FAILURE payload.
func RegisterFailure(reason string) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteString(reason)
	return w.Bytes()
}
