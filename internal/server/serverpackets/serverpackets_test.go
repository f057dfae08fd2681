package serverpackets

import (
	"testing"

	"github.com/tcpchess/chessd/internal/protocol"
)

func TestGameStatusUpdateRoundTrip(t *testing.T) {
	// Act
	payload, err := GameStatusUpdate("game_1", "8/8/8/8/8/8/8/K6k w - - 0 1", "bob", true, "Check!")
	if err != nil {
		t.Fatalf("GameStatusUpdate failed: %v", err)
	}

	// Assert: fields come back in declared order
	r := protocol.NewReader(payload)
	gameID, _ := r.ReadString()
	fen, _ := r.ReadString()
	turn, _ := r.ReadString()
	over, _ := r.ReadBool()
	note, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading note: %v", err)
	}

	if gameID != "game_1" || turn != "bob" || !over || note != "Check!" {
		t.Errorf("decoded = (%q, %q, %v, %q)", gameID, turn, over, note)
	}
	if fen != "8/8/8/8/8/8/8/K6k w - - 0 1" {
		t.Errorf("fen = %q", fen)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", r.Remaining())
	}
}

func TestGameEndRoundTrip(t *testing.T) {
	payload, err := GameEnd("game_1", "<draw>", "stalemate", 57)
	if err != nil {
		t.Fatalf("GameEnd failed: %v", err)
	}

	r := protocol.NewReader(payload)
	gameID, _ := r.ReadString()
	winner, _ := r.ReadString()
	reason, _ := r.ReadString()
	halfMoves, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("reading half moves: %v", err)
	}

	if gameID != "game_1" || winner != "<draw>" || reason != "stalemate" || halfMoves != 57 {
		t.Errorf("decoded = (%q, %q, %q, %d)", gameID, winner, reason, halfMoves)
	}
}

func TestGameStartFieldOrder(t *testing.T) {
	payload, err := GameStart("g", "alice", "bob", "alice", "fen-here")
	if err != nil {
		t.Fatalf("GameStart failed: %v", err)
	}

	r := protocol.NewReader(payload)
	var got [5]string
	for i := range got {
		s, err := r.ReadString()
		if err != nil {
			t.Fatalf("field %d: %v", i, err)
		}
		got[i] = s
	}

	want := [5]string{"g", "alice", "bob", "alice", "fen-here"}
	if got != want {
		t.Errorf("fields = %v, want %v", got, want)
	}
}

func TestPlayerList(t *testing.T) {
	payload, err := PlayerList([]PlayerEntry{
		{Username: "alice", Elo: 1200},
		{Username: "bob", Elo: 1480},
	})
	if err != nil {
		t.Fatalf("PlayerList failed: %v", err)
	}

	r := protocol.NewReader(payload)
	count, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("reading count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	u1, _ := r.ReadString()
	e1, _ := r.ReadUint16()
	u2, _ := r.ReadString()
	e2, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("reading entries: %v", err)
	}

	if u1 != "alice" || e1 != 1200 || u2 != "bob" || e2 != 1480 {
		t.Errorf("entries = (%q %d), (%q %d)", u1, e1, u2, e2)
	}
}

func TestPlayerListEmpty(t *testing.T) {
	payload, err := PlayerList(nil)
	if err != nil {
		t.Fatalf("PlayerList failed: %v", err)
	}

	count, err := protocol.NewReader(payload).ReadUint16()
	if err != nil {
		t.Fatalf("reading count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestAutoMatchFound(t *testing.T) {
	payload, err := AutoMatchFound("bob", 1210, "game_9")
	if err != nil {
		t.Fatalf("AutoMatchFound failed: %v", err)
	}

	r := protocol.NewReader(payload)
	opp, _ := r.ReadString()
	elo, _ := r.ReadUint16()
	gameID, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading game id: %v", err)
	}

	if opp != "bob" || elo != 1210 || gameID != "game_9" {
		t.Errorf("decoded = (%q, %d, %q)", opp, elo, gameID)
	}
}
