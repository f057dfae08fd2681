package match

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/game"
	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/server/serverpackets"
	"github.com/tcpchess/chessd/internal/store"
)

// fakeNetwork records every send and resolves connections both ways.
type fakeNetwork struct {
	mu       sync.Mutex
	users    map[uuid.UUID]string
	dead     map[uuid.UUID]bool
	failSend map[uuid.UUID]bool
	sent     map[uuid.UUID][]sentPacket
}

type sentPacket struct {
	typ     protocol.Type
	payload []byte
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		users:    make(map[uuid.UUID]string),
		dead:     make(map[uuid.UUID]bool),
		failSend: make(map[uuid.UUID]bool),
		sent:     make(map[uuid.UUID][]sentPacket),
	}
}

func (f *fakeNetwork) addConn(username string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.users[id] = username
	return id
}

func (f *fakeNetwork) drop(conn uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dead[conn] = true
	delete(f.users, conn)
}

// breakSend keeps the connection resolvable but fails its writes, the state
// a socket is in while its teardown races a proposal.
func (f *fakeNetwork) breakSend(conn uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failSend[conn] = true
}

func (f *fakeNetwork) Send(conn uuid.UUID, typ protocol.Type, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[conn]; !ok || f.dead[conn] || f.failSend[conn] {
		return fmt.Errorf("connection %s is gone", conn)
	}
	f.sent[conn] = append(f.sent[conn], sentPacket{typ: typ, payload: append([]byte(nil), payload...)})
	return nil
}

func (f *fakeNetwork) UsernameFor(conn uuid.UUID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[conn]
	return u, ok && u != ""
}

func (f *fakeNetwork) ConnForUsername(username string) (uuid.UUID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if u == username {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (f *fakeNetwork) packets(conn uuid.UUID) []sentPacket {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentPacket(nil), f.sent[conn]...)
}

func newTestStore(t *testing.T, elos map[string]uint16) *store.JSONStore {
	t.Helper()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "users.json"), 1200)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	for username, elo := range elos {
		if err := st.Register(context.Background(), username); err != nil {
			t.Fatalf("registering %s: %v", username, err)
		}
		if err := st.UpdateElo(context.Background(), username, elo); err != nil {
			t.Fatalf("setting elo for %s: %v", username, err)
		}
	}
	return st
}

func newTestManager(t *testing.T, network *fakeNetwork, elos map[string]uint16) (*Manager, *store.JSONStore) {
	t.Helper()
	st := newTestStore(t, elos)
	return NewManager(network, st, 200, 10*time.Millisecond), st
}

func lastPacket(t *testing.T, network *fakeNetwork, conn uuid.UUID) sentPacket {
	t.Helper()
	pkts := network.packets(conn)
	if len(pkts) == 0 {
		t.Fatal("no packets sent to connection")
	}
	return pkts[len(pkts)-1]
}

func readString(t *testing.T, r *protocol.Reader) string {
	t.Helper()
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading string field: %v", err)
	}
	return s
}

func readUint16(t *testing.T, r *protocol.Reader) uint16 {
	t.Helper()
	v, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("reading uint16 field: %v", err)
	}
	return v
}

func readBool(t *testing.T, r *protocol.Reader) bool {
	t.Helper()
	v, err := r.ReadBool()
	if err != nil {
		t.Fatalf("reading bool field: %v", err)
	}
	return v
}

func assertMoveError(t *testing.T, network *fakeNetwork, conn uuid.UUID, gameID, reason string) {
	t.Helper()
	pkt := lastPacket(t, network, conn)
	if pkt.typ != protocol.TypeMoveError {
		t.Fatalf("last packet type = %s, want MOVE_ERROR", pkt.typ)
	}
	r := protocol.NewReader(pkt.payload)
	if got := readString(t, r); got != gameID {
		t.Errorf("move error game_id = %q, want %q", got, gameID)
	}
	if got := readString(t, r); got != reason {
		t.Errorf("move error reason = %q, want %q", got, reason)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandleMoveRejections(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	mallory := network.addConn("mallory")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200, "mallory": 1200})
	ctx := context.Background()

	g := game.New("game_live", "alice", "bob")
	m.games[g.ID()] = g

	m.HandleMove(ctx, alice, "game_missing", "e2e4")
	assertMoveError(t, network, alice, "game_missing", serverpackets.ReasonGameNotFound)

	m.HandleMove(ctx, mallory, "game_live", "e2e4")
	assertMoveError(t, network, mallory, "game_live", serverpackets.ReasonNotAParticipant)

	m.HandleMove(ctx, bob, "game_live", "e7e5")
	assertMoveError(t, network, bob, "game_live", serverpackets.ReasonNotYourTurn)

	m.HandleMove(ctx, alice, "game_live", "e2e5")
	assertMoveError(t, network, alice, "game_live", serverpackets.ReasonIllegalMove)

	// Each failure answered the sender alone and left the game untouched.
	if n := len(network.packets(bob)); n != 1 {
		t.Errorf("bob received %d packets, want 1", n)
	}
	if g.HalfMoves() != 0 {
		t.Errorf("HalfMoves() = %d after rejected moves, want 0", g.HalfMoves())
	}
	if got := g.CurrentTurn(); got != "alice" {
		t.Errorf("CurrentTurn() = %q, want %q", got, "alice")
	}
}

func TestHandleMoveFansOutStatus(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})

	g := game.New("game_live", "alice", "bob")
	m.games[g.ID()] = g

	m.HandleMove(context.Background(), alice, "game_live", "e2e4")

	pa := lastPacket(t, network, alice)
	pb := lastPacket(t, network, bob)
	if pa.typ != protocol.TypeGameStatusUpdate || pb.typ != protocol.TypeGameStatusUpdate {
		t.Fatalf("packet types = %s, %s, want GAME_STATUS_UPDATE for both", pa.typ, pb.typ)
	}
	if !bytes.Equal(pa.payload, pb.payload) {
		t.Fatal("participants received different status payloads")
	}

	r := protocol.NewReader(pa.payload)
	if got := readString(t, r); got != "game_live" {
		t.Errorf("game_id = %q, want %q", got, "game_live")
	}
	fen := readString(t, r)
	if !strings.Contains(fen, " b ") {
		t.Errorf("fen = %q, want black to move", fen)
	}
	if got := readString(t, r); got != "bob" {
		t.Errorf("current_turn = %q, want %q", got, "bob")
	}
	if over := readBool(t, r); over {
		t.Error("is_over = true after one move")
	}
	if note := readString(t, r); note != "" {
		t.Errorf("note = %q, want empty", note)
	}
}

func TestHandleMoveAnnouncesCheck(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})
	ctx := context.Background()

	g := game.New("game_live", "alice", "bob")
	m.games[g.ID()] = g

	m.HandleMove(ctx, alice, "game_live", "e2e4")
	m.HandleMove(ctx, bob, "game_live", "f7f6")
	m.HandleMove(ctx, alice, "game_live", "d1h5")

	pkt := lastPacket(t, network, bob)
	if pkt.typ != protocol.TypeGameStatusUpdate {
		t.Fatalf("last packet type = %s, want GAME_STATUS_UPDATE", pkt.typ)
	}
	r := protocol.NewReader(pkt.payload)
	readString(t, r) // game_id
	readString(t, r) // fen
	readString(t, r) // current_turn
	if over := readBool(t, r); over {
		t.Error("is_over = true on a non-mating check")
	}
	if note := readString(t, r); note != serverpackets.NoteCheck {
		t.Errorf("note = %q, want %q", note, serverpackets.NoteCheck)
	}
}

func TestFoolsMateFinishesGame(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, st := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})
	ctx := context.Background()

	g := game.New("game_live", "alice", "bob")
	m.games[g.ID()] = g

	moves := []struct {
		conn uuid.UUID
		uci  string
	}{
		{alice, "f2f3"}, {bob, "e7e5"}, {alice, "g2g4"}, {bob, "d8h4"},
	}
	for _, mv := range moves {
		m.HandleMove(ctx, mv.conn, "game_live", mv.uci)
	}

	for _, conn := range []uuid.UUID{alice, bob} {
		pkts := network.packets(conn)
		if len(pkts) < 2 {
			t.Fatalf("connection received %d packets, want at least 2", len(pkts))
		}
		status := pkts[len(pkts)-2]
		end := pkts[len(pkts)-1]

		if status.typ != protocol.TypeGameStatusUpdate {
			t.Fatalf("second-to-last packet = %s, want GAME_STATUS_UPDATE", status.typ)
		}
		r := protocol.NewReader(status.payload)
		readString(t, r) // game_id
		readString(t, r) // fen
		readString(t, r) // current_turn
		if over := readBool(t, r); !over {
			t.Error("final status update has is_over = false")
		}

		if end.typ != protocol.TypeGameEnd {
			t.Fatalf("last packet = %s, want GAME_END", end.typ)
		}
		r = protocol.NewReader(end.payload)
		if got := readString(t, r); got != "game_live" {
			t.Errorf("game_id = %q, want %q", got, "game_live")
		}
		if got := readString(t, r); got != "bob" {
			t.Errorf("winner = %q, want %q", got, "bob")
		}
		if got := readString(t, r); got != "checkmate" {
			t.Errorf("reason = %q, want %q", got, "checkmate")
		}
		if got := readUint16(t, r); got != 4 {
			t.Errorf("half_move_count = %d, want 4", got)
		}
	}

	if _, ok := m.games["game_live"]; ok {
		t.Error("finished game still in the live table")
	}

	bobElo, _ := st.Elo(ctx, "bob")
	aliceElo, _ := st.Elo(ctx, "alice")
	if bobElo != 1216 || aliceElo != 1184 {
		t.Errorf("post-game ratings = alice %d, bob %d, want 1184 and 1216", aliceElo, bobElo)
	}
}

func TestHandleAcceptPromotesAfterBothSides(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1250})
	ctx := context.Background()

	m.propose(ctx, alice, bob)

	found := lastPacket(t, network, alice)
	if found.typ != protocol.TypeAutoMatchFound {
		t.Fatalf("packet type = %s, want AUTO_MATCH_FOUND", found.typ)
	}
	r := protocol.NewReader(found.payload)
	if got := readString(t, r); got != "bob" {
		t.Errorf("opponent = %q, want %q", got, "bob")
	}
	if got := readUint16(t, r); got != 1250 {
		t.Errorf("opponent elo = %d, want 1250", got)
	}
	gameID := readString(t, r)

	m.HandleAccept(alice, gameID)
	if n := len(network.packets(bob)); n != 1 {
		t.Fatalf("bob received %d packets after one acceptance, want 1", n)
	}

	m.HandleAccept(bob, gameID)
	for _, conn := range []uuid.UUID{alice, bob} {
		pkt := lastPacket(t, network, conn)
		if pkt.typ != protocol.TypeGameStart {
			t.Fatalf("last packet = %s, want GAME_START", pkt.typ)
		}
		r := protocol.NewReader(pkt.payload)
		if got := readString(t, r); got != gameID {
			t.Errorf("game_id = %q, want %q", got, gameID)
		}
		if got := readString(t, r); got != "alice" {
			t.Errorf("player1 = %q, want %q", got, "alice")
		}
		if got := readString(t, r); got != "bob" {
			t.Errorf("player2 = %q, want %q", got, "bob")
		}
		if got := readString(t, r); got != "alice" {
			t.Errorf("starting_player = %q, want %q", got, "alice")
		}
		fen := readString(t, r)
		if !strings.HasPrefix(fen, "rnbqkbnr/pppppppp/") {
			t.Errorf("fen = %q, want the standard start position", fen)
		}
	}

	if _, ok := m.games[gameID]; !ok {
		t.Error("accepted game missing from the live table")
	}
	if len(m.pending) != 0 {
		t.Errorf("%d pending pairings remain, want 0", len(m.pending))
	}
}

func TestHandleDeclineRequeuesPeer(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})

	m.propose(context.Background(), alice, bob)
	found := lastPacket(t, network, alice)
	r := protocol.NewReader(found.payload)
	readString(t, r)
	readUint16(t, r)
	gameID := readString(t, r)

	m.HandleDecline(bob, gameID)

	pkt := lastPacket(t, network, alice)
	if pkt.typ != protocol.TypeMatchDeclinedNotification {
		t.Fatalf("last packet = %s, want MATCH_DECLINED_NOTIFICATION", pkt.typ)
	}
	r = protocol.NewReader(pkt.payload)
	if got := readString(t, r); got != gameID {
		t.Errorf("game_id = %q, want %q", got, gameID)
	}

	if len(m.pending) != 0 {
		t.Errorf("%d pending pairings remain, want 0", len(m.pending))
	}

	m.qmu.Lock()
	queued := len(m.queue) == 1 && m.queue[0] == alice
	m.qmu.Unlock()
	if !queued {
		t.Error("declined peer was not re-enqueued")
	}
}

func TestHandleDisconnectForfeitsLiveGame(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, st := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})
	ctx := context.Background()

	g := game.New("game_live", "alice", "bob")
	m.games[g.ID()] = g

	network.drop(bob)
	m.HandleDisconnect(ctx, bob, "bob")

	pkt := lastPacket(t, network, alice)
	if pkt.typ != protocol.TypeGameEnd {
		t.Fatalf("last packet = %s, want GAME_END", pkt.typ)
	}
	r := protocol.NewReader(pkt.payload)
	if got := readString(t, r); got != "game_live" {
		t.Errorf("game_id = %q, want %q", got, "game_live")
	}
	if got := readString(t, r); got != "alice" {
		t.Errorf("winner = %q, want %q", got, "alice")
	}
	if got := readString(t, r); got != game.ReasonForfeit {
		t.Errorf("reason = %q, want %q", got, game.ReasonForfeit)
	}

	if _, ok := m.games["game_live"]; ok {
		t.Error("forfeited game still in the live table")
	}

	aliceElo, _ := st.Elo(ctx, "alice")
	bobElo, _ := st.Elo(ctx, "bob")
	if aliceElo != 1216 || bobElo != 1184 {
		t.Errorf("post-forfeit ratings = alice %d, bob %d, want 1216 and 1184", aliceElo, bobElo)
	}
}

func TestHandleDisconnectCancelsPending(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})
	ctx := context.Background()

	m.propose(ctx, alice, bob)

	network.drop(alice)
	m.HandleDisconnect(ctx, alice, "alice")

	pkt := lastPacket(t, network, bob)
	if pkt.typ != protocol.TypeMatchDeclinedNotification {
		t.Fatalf("last packet = %s, want MATCH_DECLINED_NOTIFICATION", pkt.typ)
	}
	if len(m.pending) != 0 {
		t.Errorf("%d pending pairings remain, want 0", len(m.pending))
	}

	m.qmu.Lock()
	queued := len(m.queue) == 1 && m.queue[0] == bob
	m.qmu.Unlock()
	if !queued {
		t.Error("peer was not re-enqueued after the disconnect")
	}
}

func TestHandleDisconnectDropsQueueEntry(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200})

	m.Enqueue(alice)
	m.HandleDisconnect(context.Background(), alice, "alice")

	m.qmu.Lock()
	n := len(m.queue)
	m.qmu.Unlock()
	if n != 0 {
		t.Errorf("queue holds %d entries after disconnect, want 0", n)
	}
}

func TestAcceptChallengeStartsGame(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})

	gameID, err := m.AcceptChallenge(alice, bob, "alice", "bob")
	if err != nil {
		t.Fatalf("AcceptChallenge failed: %v", err)
	}

	alicePkts := network.packets(alice)
	if len(alicePkts) != 2 {
		t.Fatalf("challenger received %d packets, want 2", len(alicePkts))
	}
	if alicePkts[0].typ != protocol.TypeChallengeAccepted {
		t.Fatalf("first packet = %s, want CHALLENGE_ACCEPTED", alicePkts[0].typ)
	}
	r := protocol.NewReader(alicePkts[0].payload)
	if got := readString(t, r); got != "bob" {
		t.Errorf("accepted from = %q, want %q", got, "bob")
	}
	if got := readString(t, r); got != gameID {
		t.Errorf("accepted game_id = %q, want %q", got, gameID)
	}
	if alicePkts[1].typ != protocol.TypeGameStart {
		t.Fatalf("second packet = %s, want GAME_START", alicePkts[1].typ)
	}

	bobPkts := network.packets(bob)
	if len(bobPkts) != 1 || bobPkts[0].typ != protocol.TypeGameStart {
		t.Fatalf("responder packets = %v, want a single GAME_START", bobPkts)
	}

	g, ok := m.games[gameID]
	if !ok {
		t.Fatal("challenge game missing from the live table")
	}
	if g.White() != "alice" || g.Black() != "bob" {
		t.Errorf("colors = %q vs %q, want challenger white", g.White(), g.Black())
	}
}

func TestAcceptChallengeChallengerGone(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})

	network.drop(alice)
	if _, err := m.AcceptChallenge(alice, bob, "alice", "bob"); err == nil {
		t.Fatal("AcceptChallenge succeeded with a vanished challenger")
	}

	if len(m.games) != 0 {
		t.Errorf("%d games created, want 0", len(m.games))
	}
	if n := len(network.packets(bob)); n != 0 {
		t.Errorf("responder received %d packets, want 0", n)
	}
}
