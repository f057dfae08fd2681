package serverpackets

import "github.com/tcpchess/chessd/internal/protocol"

// PlayerEntry is one row of the player list.
type PlayerEntry struct {
	Username string
	Elo      uint16
}

// PlayerList builds a PLAYER_LIST payload enumerating logged-in players.
//
// Structure:
// - uint16: entry count
// - repeated: string username, uint16 Elo
func PlayerList(entries []PlayerEntry) ([]byte, error) {
	w := protocol.GetWriter()
	defer w.Put()

	w.WriteUint16(uint16(len(entries)))
	for _, e := range entries {
		w.WriteString(e.Username)
		w.WriteUint16(e.Elo)
	}
	return w.Bytes()
}
