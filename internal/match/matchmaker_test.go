package match

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/protocol"
)

func startMatcher(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("matcher returned %v", err)
			}
		case <-time.After(time.Second):
			t.Error("matcher did not stop after cancel")
		}
	})
}

func parseFound(t *testing.T, pkt sentPacket) (opponent string, elo uint16, gameID string) {
	t.Helper()
	if pkt.typ != protocol.TypeAutoMatchFound {
		t.Fatalf("packet type = %s, want AUTO_MATCH_FOUND", pkt.typ)
	}
	r := protocol.NewReader(pkt.payload)
	opponent = readString(t, r)
	elo = readUint16(t, r)
	gameID = readString(t, r)
	return opponent, elo, gameID
}

func TestEnqueueDeduplicates(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200})

	m.Enqueue(alice)
	m.Enqueue(alice)

	m.qmu.Lock()
	n := len(m.queue)
	m.qmu.Unlock()
	if n != 1 {
		t.Errorf("queue holds %d entries, want 1", n)
	}
}

func TestMatcherPairsTwoPlayers(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1300})

	startMatcher(t, m)
	m.Enqueue(alice)
	m.Enqueue(bob)

	waitFor(t, 2*time.Second, func() bool {
		return len(network.packets(alice)) > 0 && len(network.packets(bob)) > 0
	}, "both players to be told about the pairing")

	aliceOpp, aliceOppElo, aliceGame := parseFound(t, lastPacket(t, network, alice))
	bobOpp, bobOppElo, bobGame := parseFound(t, lastPacket(t, network, bob))

	if aliceOpp != "bob" || bobOpp != "alice" {
		t.Errorf("opponents = %q and %q, want bob and alice", aliceOpp, bobOpp)
	}
	if aliceOppElo != 1300 || bobOppElo != 1200 {
		t.Errorf("opponent elos = %d and %d, want 1300 and 1200", aliceOppElo, bobOppElo)
	}
	if aliceGame != bobGame {
		t.Errorf("game ids differ: %q vs %q", aliceGame, bobGame)
	}

	m.mu.Lock()
	_, pendingExists := m.pending[aliceGame]
	m.mu.Unlock()
	if !pendingExists {
		t.Error("proposed pairing missing from the pending table")
	}
}

func TestMatcherHonorsEloThreshold(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1500, "carol": 1290})

	startMatcher(t, m)
	m.Enqueue(alice)
	m.Enqueue(bob)

	// The 300-point gap must never pair; both keep cycling through the queue.
	time.Sleep(50 * time.Millisecond)
	if n := len(network.packets(alice)) + len(network.packets(bob)); n != 0 {
		t.Fatalf("%d packets sent for an out-of-threshold pair, want 0", n)
	}

	carol := network.addConn("carol")
	m.Enqueue(carol)

	waitFor(t, 2*time.Second, func() bool {
		return len(network.packets(carol)) > 0
	}, "carol to be paired")

	carolOpp, _, _ := parseFound(t, lastPacket(t, network, carol))
	if carolOpp != "alice" {
		t.Errorf("carol's opponent = %q, want %q", carolOpp, "alice")
	}
	if n := len(network.packets(bob)); n != 0 {
		t.Errorf("bob received %d packets, want 0", n)
	}
}

func TestMatcherSkipsVanishedEntries(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200, "carol": 1200})

	m.Enqueue(alice)
	m.Enqueue(bob)
	network.drop(alice)

	startMatcher(t, m)

	carol := network.addConn("carol")
	m.Enqueue(carol)

	waitFor(t, 2*time.Second, func() bool {
		return len(network.packets(bob)) > 0
	}, "bob to be paired past the dead entry")

	bobOpp, _, _ := parseFound(t, lastPacket(t, network, bob))
	if bobOpp != "carol" {
		t.Errorf("bob's opponent = %q, want %q", bobOpp, "carol")
	}
}

func TestRunStopsWhileWaiting(t *testing.T) {
	network := newFakeNetwork()
	m, _ := newTestManager(t, network, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Let the matcher reach the condition wait, then cancel.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run still blocked after cancel")
	}
}

func TestMatcherUnwindsWhenPeerVanishesMidProposal(t *testing.T) {
	network := newFakeNetwork()
	alice := network.addConn("alice")
	bob := network.addConn("bob")
	m, _ := newTestManager(t, network, map[string]uint16{"alice": 1200, "bob": 1200})

	// bob's connection dies between the queue pop and the proposal sends.
	network.drop(bob)
	m.propose(context.Background(), alice, uuid.UUID(bob))

	if len(m.pending) != 0 {
		t.Errorf("%d pending pairings remain, want 0", len(m.pending))
	}
	m.qmu.Lock()
	requeued := len(m.queue) == 1 && m.queue[0] == alice
	m.qmu.Unlock()
	if !requeued {
		t.Error("surviving player was not re-enqueued")
	}
}
