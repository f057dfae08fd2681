// Package match pairs queued players by rating and owns game lifecycles:
// the accept/decline handshake, move orchestration, result fan-out, rating
// updates, and disconnect forfeits.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/game"
	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/server/serverpackets"
	"github.com/tcpchess/chessd/internal/store"
)

// Network is the slice of the connection layer the manager sends through.
type Network interface {
	Send(conn uuid.UUID, typ protocol.Type, payload []byte) error
	UsernameFor(conn uuid.UUID) (string, bool)
	ConnForUsername(username string) (uuid.UUID, bool)
}

// pendingPairing is a proposed game waiting for both acceptances. The game
// inside is not live until promoted.
type pendingPairing struct {
	game          *game.Game
	whiteConn     uuid.UUID
	blackConn     uuid.UUID
	whiteAccepted bool
	blackAccepted bool
}

// Manager owns the matchmaking queue, pending pairings, and live games.
// One mutex guards pending and games together; every move handler completes
// under it, which totally orders updates per game and makes GAME_END the
// final packet of every game. The queue has its own mutex and condition
// variable; the queue mutex is never held while acquiring any other lock.
type Manager struct {
	network   Network
	users     store.Store
	threshold uint16
	interval  time.Duration

	mu      sync.Mutex
	games   map[string]*game.Game
	pending map[string]*pendingPairing

	qmu   sync.Mutex
	cond  *sync.Cond
	queue []uuid.UUID
}

// NewManager wires the manager to the connection layer and the user store.
// threshold is the maximum rating gap the matcher will pair across; interval
// is the matcher's pause between pairing attempts.
func NewManager(network Network, users store.Store, threshold uint16, interval time.Duration) *Manager {
	m := &Manager{
		network:   network,
		users:     users,
		threshold: threshold,
		interval:  interval,
		games:     make(map[string]*game.Game),
		pending:   make(map[string]*pendingPairing),
	}
	m.cond = sync.NewCond(&m.qmu)
	return m
}

// newGameID builds "game_<white>_<black>_<timestamp>_<millis>", bumping the
// millisecond component until the id is free in both tables. Called with
// m.mu held.
func (m *Manager) newGameID(white, black string) string {
	now := time.Now()
	stamp := now.Format("20060102150405")
	ms := now.Nanosecond() / int(time.Millisecond)
	for {
		id := fmt.Sprintf("game_%s_%s_%s_%03d", white, black, stamp, ms)
		_, live := m.games[id]
		_, proposed := m.pending[id]
		if !live && !proposed {
			return id
		}
		ms++
	}
}

// HandleAccept records one side's acceptance of a proposed pairing. Once
// both sides accept, the game goes live and GAME_START reaches both players.
func (m *Manager) HandleAccept(conn uuid.UUID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[gameID]
	if !ok {
		slog.Warn("accept for unknown pairing", "game_id", gameID, "conn", conn)
		return
	}
	switch conn {
	case p.whiteConn:
		p.whiteAccepted = true
	case p.blackConn:
		p.blackAccepted = true
	default:
		slog.Warn("accept from a connection outside the pairing", "game_id", gameID, "conn", conn)
		return
	}
	if !p.whiteAccepted || !p.blackAccepted {
		return
	}

	delete(m.pending, gameID)
	m.games[gameID] = p.game

	payload, err := serverpackets.GameStart(gameID, p.game.White(), p.game.Black(), p.game.White(), p.game.FEN())
	if err != nil {
		slog.Error("encoding game start", "game_id", gameID, "error", err)
		delete(m.games, gameID)
		return
	}
	for _, c := range []uuid.UUID{p.whiteConn, p.blackConn} {
		if err := m.network.Send(c, protocol.TypeGameStart, payload); err != nil {
			slog.Warn("sending game start", "game_id", gameID, "conn", c, "error", err)
		}
	}
	slog.Info("game started", "game_id", gameID, "white", p.game.White(), "black", p.game.Black())
}

// HandleDecline cancels a proposed pairing: the peer is notified and put
// back at the end of the matchmaking queue.
func (m *Manager) HandleDecline(conn uuid.UUID, gameID string) {
	m.mu.Lock()

	p, ok := m.pending[gameID]
	if !ok {
		m.mu.Unlock()
		slog.Warn("decline for unknown pairing", "game_id", gameID, "conn", conn)
		return
	}
	if conn != p.whiteConn && conn != p.blackConn {
		m.mu.Unlock()
		slog.Warn("decline from a connection outside the pairing", "game_id", gameID, "conn", conn)
		return
	}
	peer := m.declineLocked(p, conn, gameID)
	m.mu.Unlock()

	m.Enqueue(peer)
	slog.Info("pairing declined", "game_id", gameID, "conn", conn)
}

// declineLocked removes a pending pairing and notifies the peer. Returns the
// peer connection so the caller can re-enqueue it. Called with m.mu held.
func (m *Manager) declineLocked(p *pendingPairing, decliner uuid.UUID, gameID string) uuid.UUID {
	delete(m.pending, gameID)
	peer := p.whiteConn
	if decliner == p.whiteConn {
		peer = p.blackConn
	}
	m.notifyDeclined(peer, gameID)
	return peer
}

func (m *Manager) notifyDeclined(conn uuid.UUID, gameID string) {
	payload, err := serverpackets.MatchDeclinedNotification(gameID)
	if err != nil {
		slog.Error("encoding match declined notification", "game_id", gameID, "error", err)
		return
	}
	if err := m.network.Send(conn, protocol.TypeMatchDeclinedNotification, payload); err != nil {
		slog.Debug("peer unreachable for declined notification", "game_id", gameID, "conn", conn, "error", err)
	}
}

// HandleMove validates and applies one move. Failures answer the sender
// alone with a MOVE_ERROR; a successful move fans the new state out to both
// participants, followed by GAME_END if the move finished the game.
func (m *Manager) HandleMove(ctx context.Context, conn uuid.UUID, gameID, uci string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		m.sendMoveError(conn, gameID, serverpackets.ReasonGameNotFound)
		return
	}
	username, ok := m.network.UsernameFor(conn)
	if !ok {
		m.sendMoveError(conn, gameID, serverpackets.ReasonNotAParticipant)
		return
	}
	if _, participant := g.Opponent(username); !participant {
		m.sendMoveError(conn, gameID, serverpackets.ReasonNotAParticipant)
		return
	}
	if username != g.CurrentTurn() {
		m.sendMoveError(conn, gameID, serverpackets.ReasonNotYourTurn)
		return
	}
	if err := g.TryMove(uci); err != nil {
		slog.Debug("move rejected", "game_id", gameID, "username", username, "move", uci, "error", err)
		m.sendMoveError(conn, gameID, serverpackets.ReasonIllegalMove)
		return
	}

	note := ""
	if g.InCheck() && !g.Over() {
		note = serverpackets.NoteCheck
	}
	status, err := serverpackets.GameStatusUpdate(gameID, g.FEN(), g.CurrentTurn(), g.Over(), note)
	if err != nil {
		slog.Error("encoding status update", "game_id", gameID, "error", err)
		return
	}
	m.sendToPlayers(g, protocol.TypeGameStatusUpdate, status)

	if g.Over() {
		m.finishLocked(ctx, g)
	}
}

// HandleDisconnect settles everything a vanished connection leaves behind:
// its queue entries, its pending pairings (as declines), and its live games
// (forfeited to the opponent). username is empty when the connection never
// logged in.
func (m *Manager) HandleDisconnect(ctx context.Context, conn uuid.UUID, username string) {
	m.dequeue(conn)

	m.mu.Lock()
	var peers []uuid.UUID
	for id, p := range m.pending {
		if conn != p.whiteConn && conn != p.blackConn {
			continue
		}
		peers = append(peers, m.declineLocked(p, conn, id))
	}
	if username != "" {
		for _, g := range m.games {
			opponent, ok := g.Opponent(username)
			if !ok {
				continue
			}
			slog.Info("forfeiting game on disconnect", "game_id", g.ID(), "username", username)
			g.Forfeit(opponent)
			m.finishLocked(ctx, g)
		}
	}
	m.mu.Unlock()

	for _, peer := range peers {
		m.Enqueue(peer)
	}
}

// AcceptChallenge creates a live game for an accepted direct challenge, the
// challenger playing white. The challenger hears the acceptance first, then
// both sides receive GAME_START. Fails without side effects when the
// challenger's connection is already gone.
func (m *Manager) AcceptChallenge(challengerConn, responderConn uuid.UUID, challenger, responder string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newGameID(challenger, responder)
	g := game.New(id, challenger, responder)

	accepted, err := serverpackets.ChallengeAccepted(responder, id)
	if err != nil {
		return "", fmt.Errorf("encoding challenge accepted: %w", err)
	}
	start, err := serverpackets.GameStart(id, challenger, responder, challenger, g.FEN())
	if err != nil {
		return "", fmt.Errorf("encoding game start: %w", err)
	}

	if err := m.network.Send(challengerConn, protocol.TypeChallengeAccepted, accepted); err != nil {
		return "", fmt.Errorf("challenger unreachable: %w", err)
	}
	m.games[id] = g
	if err := m.network.Send(challengerConn, protocol.TypeGameStart, start); err != nil {
		slog.Warn("sending game start", "game_id", id, "conn", challengerConn, "error", err)
	}
	if err := m.network.Send(responderConn, protocol.TypeGameStart, start); err != nil {
		slog.Warn("sending game start", "game_id", id, "conn", responderConn, "error", err)
	}
	slog.Info("challenge game started", "game_id", id, "white", challenger, "black", responder)
	return id, nil
}

// finishLocked fans out GAME_END, removes the game from the live table, and
// applies rating updates. Called with m.mu held on a terminated game.
func (m *Manager) finishLocked(ctx context.Context, g *game.Game) {
	payload, err := serverpackets.GameEnd(g.ID(), g.Winner(), g.Reason(), g.HalfMoves())
	if err != nil {
		slog.Error("encoding game end", "game_id", g.ID(), "error", err)
	} else {
		m.sendToPlayers(g, protocol.TypeGameEnd, payload)
	}
	delete(m.games, g.ID())
	m.updateRatings(ctx, g)
	slog.Info("game finished", "game_id", g.ID(), "winner", g.Winner(), "reason", g.Reason(), "half_moves", g.HalfMoves())
}

// sendToPlayers delivers one payload to both participants. Connections that
// vanished mid-flight are skipped; the disconnect hook settles their games.
func (m *Manager) sendToPlayers(g *game.Game, typ protocol.Type, payload []byte) {
	for _, username := range []string{g.White(), g.Black()} {
		conn, ok := m.network.ConnForUsername(username)
		if !ok {
			slog.Debug("participant has no connection", "game_id", g.ID(), "username", username)
			continue
		}
		if err := m.network.Send(conn, typ, payload); err != nil {
			slog.Warn("sending to participant", "game_id", g.ID(), "username", username, "error", err)
		}
	}
}

func (m *Manager) sendMoveError(conn uuid.UUID, gameID, reason string) {
	payload, err := serverpackets.MoveError(gameID, reason)
	if err != nil {
		slog.Error("encoding move error", "game_id", gameID, "error", err)
		return
	}
	if err := m.network.Send(conn, protocol.TypeMoveError, payload); err != nil {
		slog.Debug("sending move error", "game_id", gameID, "conn", conn, "error", err)
	}
}

// updateRatings applies Elo to a finished game. Store failures are logged
// and swallowed; the result already went out to the players.
func (m *Manager) updateRatings(ctx context.Context, g *game.Game) {
	whiteElo, err := m.users.Elo(ctx, g.White())
	if err != nil {
		slog.Error("reading rating", "username", g.White(), "error", err)
		return
	}
	blackElo, err := m.users.Elo(ctx, g.Black())
	if err != nil {
		slog.Error("reading rating", "username", g.Black(), "error", err)
		return
	}

	whiteScore := 0.5
	switch g.Winner() {
	case g.White():
		whiteScore = 1
	case g.Black():
		whiteScore = 0
	}
	newWhite, newBlack := Rate(whiteElo, blackElo, whiteScore)
	if err := m.users.UpdateElo(ctx, g.White(), newWhite); err != nil {
		slog.Error("updating rating", "username", g.White(), "error", err)
	}
	if err := m.users.UpdateElo(ctx, g.Black(), newBlack); err != nil {
		slog.Error("updating rating", "username", g.Black(), "error", err)
	}
	slog.Info("ratings updated", "game_id", g.ID(),
		"white", g.White(), "white_elo", newWhite,
		"black", g.Black(), "black_elo", newBlack)
}
