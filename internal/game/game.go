// Package game holds the per-match chess state machine.
package game

import (
	"errors"
	"fmt"

	"github.com/notnil/chess"
)

// DrawWinner is recorded as the winner of drawn games.
const DrawWinner = "<draw>"

// ReasonForfeit is the termination reason when a participant disconnects.
const ReasonForfeit = "opponent_disconnected"

// ErrIllegalMove reports a move that does not parse as UCI or is not
// legal in the current position. The game state is unchanged.
var ErrIllegalMove = errors.New("illegal move")

// Game is one chess match between two players. Not internally locked:
// the game manager serializes all access.
type Game struct {
	id    string
	white string
	black string

	eng       *chess.Game
	current   string
	halfMoves uint16
	inCheck   bool
	over      bool
	winner    string
	reason    string
}

// New starts a game from the standard position. White moves first.
func New(id, white, black string) *Game {
	return &Game{
		id:      id,
		white:   white,
		black:   black,
		eng:     chess.NewGame(),
		current: white,
	}
}

// NewFromFEN starts a game from an arbitrary position; the side to move
// comes from the FEN. Check state is tracked from moves made through
// TryMove, so positions already in check start reporting it after the
// first move.
func NewFromFEN(id, white, black, fen string) (*Game, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parsing fen %q: %w", fen, err)
	}

	g := &Game{
		id:    id,
		white: white,
		black: black,
		eng:   chess.NewGame(opt),
	}
	if g.eng.Position().Turn() == chess.White {
		g.current = white
	} else {
		g.current = black
	}
	return g, nil
}

// TryMove validates and applies one move in UCI notation. On success the
// half-move count advances and the turn toggles unless the game ended.
// Failure leaves the game untouched and returns ErrIllegalMove.
func (g *Game) TryMove(uci string) error {
	if g.over {
		return fmt.Errorf("game %s is over: %w", g.id, ErrIllegalMove)
	}

	pos := g.eng.Position()
	parsed, err := chess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return fmt.Errorf("move %q does not parse: %w", uci, ErrIllegalMove)
	}

	// The decoded move carries no position tags; apply the matching
	// instance from the legal-move list so check and castle metadata
	// come with it.
	var move *chess.Move
	for _, m := range g.eng.ValidMoves() {
		if m.S1() == parsed.S1() && m.S2() == parsed.S2() && m.Promo() == parsed.Promo() {
			move = m
			break
		}
	}
	if move == nil {
		return fmt.Errorf("move %q is not legal here: %w", uci, ErrIllegalMove)
	}

	if err := g.eng.Move(move); err != nil {
		return fmt.Errorf("applying move %q: %w", uci, ErrIllegalMove)
	}

	g.halfMoves++
	g.inCheck = move.HasTag(chess.Check)
	g.claimAutomaticDraws()

	outcome := g.eng.Outcome()
	if outcome == chess.NoOutcome {
		g.toggleTurn()
		return nil
	}

	g.over = true
	g.reason = terminationReason(g.eng.Method())
	switch outcome {
	case chess.WhiteWon:
		g.winner = g.white
	case chess.BlackWon:
		g.winner = g.black
	default:
		g.winner = DrawWinner
	}
	return nil
}

// claimAutomaticDraws ends the game at threefold repetition and the
// fifty-move rule without a player claim, the way the original ruleset
// reported them.
func (g *Game) claimAutomaticDraws() {
	for _, method := range g.eng.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			_ = g.eng.Draw(method)
			return
		}
	}
}

// Forfeit terminates the game in favour of winner. No-op if already over.
func (g *Game) Forfeit(winner string) {
	if g.over {
		return
	}
	g.over = true
	g.winner = winner
	g.reason = ReasonForfeit
}

func (g *Game) toggleTurn() {
	if g.current == g.white {
		g.current = g.black
	} else {
		g.current = g.white
	}
}

func terminationReason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	case chess.InsufficientMaterial:
		return "insufficient material"
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return "fifty move rule"
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return "threefold repetition"
	default:
		return "game over"
	}
}

// InCheck reports whether the side to move is in check.
func (g *Game) InCheck() bool { return g.inCheck }

// FEN returns the current position.
func (g *Game) FEN() string { return g.eng.Position().String() }

// ID returns the game identifier.
func (g *Game) ID() string { return g.id }

// White returns the white player's username.
func (g *Game) White() string { return g.white }

// Black returns the black player's username.
func (g *Game) Black() string { return g.black }

// CurrentTurn returns the username to move. After a terminating move it
// stays on the player who moved last.
func (g *Game) CurrentTurn() string { return g.current }

// HalfMoves returns the number of applied half-moves.
func (g *Game) HalfMoves() uint16 { return g.halfMoves }

// Over reports whether the game has terminated.
func (g *Game) Over() bool { return g.over }

// Winner returns the winner's username, DrawWinner for draws, or empty
// while the game is active.
func (g *Game) Winner() string { return g.winner }

// Reason returns the termination reason, empty while the game is active.
func (g *Game) Reason() string { return g.reason }

// Opponent returns the other participant. ok is false when username is
// not a participant.
func (g *Game) Opponent(username string) (string, bool) {
	switch username {
	case g.white:
		return g.black, true
	case g.black:
		return g.white, true
	}
	return "", false
}
