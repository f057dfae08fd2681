package match

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/game"
	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/server/serverpackets"
)

// Enqueue puts a connection at the end of the matchmaking queue and wakes
// the matcher. A connection already waiting is not queued twice.
func (m *Manager) Enqueue(conn uuid.UUID) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if slices.Contains(m.queue, conn) {
		slog.Debug("connection already queued", "conn", conn)
		return
	}
	m.queue = append(m.queue, conn)
	m.cond.Signal()
}

// dequeue drops every queue entry for conn.
func (m *Manager) dequeue(conn uuid.UUID) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	m.queue = slices.DeleteFunc(m.queue, func(c uuid.UUID) bool { return c == conn })
}

// Run drives the matcher until ctx is cancelled: wait for two queued
// players, evaluate the pair, sleep one interval. The sleep keeps
// repeatedly rejected pairs from spinning.
func (m *Manager) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.qmu.Lock()
		m.cond.Broadcast()
		m.qmu.Unlock()
	})
	defer stop()

	slog.Info("matchmaker started", "elo_threshold", m.threshold, "interval", m.interval)
	for {
		c1, c2, ok := m.popPair(ctx)
		if !ok {
			slog.Info("matchmaker stopped")
			return nil
		}
		m.propose(ctx, c1, c2)

		select {
		case <-ctx.Done():
			slog.Info("matchmaker stopped")
			return nil
		case <-time.After(m.interval):
		}
	}
}

// popPair blocks until two connections are queued or ctx ends, then removes
// and returns the two oldest.
func (m *Manager) popPair(ctx context.Context) (uuid.UUID, uuid.UUID, bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	for len(m.queue) < 2 {
		if ctx.Err() != nil {
			return uuid.Nil, uuid.Nil, false
		}
		m.cond.Wait()
	}
	if ctx.Err() != nil {
		return uuid.Nil, uuid.Nil, false
	}
	c1, c2 := m.queue[0], m.queue[1]
	m.queue = append(m.queue[:0], m.queue[2:]...)
	return c1, c2, true
}

// propose evaluates one candidate pair. Vanished connections drop out of
// the queue; a rating gap over the threshold sends both to the back of the
// line, oldest first. Within the threshold a pending pairing is created and
// both players are told who they drew.
func (m *Manager) propose(ctx context.Context, c1, c2 uuid.UUID) {
	u1, ok1 := m.network.UsernameFor(c1)
	u2, ok2 := m.network.UsernameFor(c2)
	if !ok1 || !ok2 {
		if ok1 {
			m.Enqueue(c1)
		}
		if ok2 {
			m.Enqueue(c2)
		}
		return
	}
	// The same player queued twice keeps a single entry.
	if u1 == u2 {
		m.Enqueue(c1)
		return
	}

	e1, err := m.users.Elo(ctx, u1)
	if err != nil {
		slog.Error("reading rating", "username", u1, "error", err)
		m.Enqueue(c1)
		m.Enqueue(c2)
		return
	}
	e2, err := m.users.Elo(ctx, u2)
	if err != nil {
		slog.Error("reading rating", "username", u2, "error", err)
		m.Enqueue(c1)
		m.Enqueue(c2)
		return
	}

	if gap := ratingGap(e1, e2); gap > m.threshold {
		slog.Debug("pair outside elo threshold", "a", u1, "b", u2, "gap", gap)
		m.Enqueue(c1)
		m.Enqueue(c2)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newGameID(u1, u2)
	found1, err := serverpackets.AutoMatchFound(u2, e2, id)
	if err != nil {
		slog.Error("encoding auto match found", "game_id", id, "error", err)
		return
	}
	found2, err := serverpackets.AutoMatchFound(u1, e1, id)
	if err != nil {
		slog.Error("encoding auto match found", "game_id", id, "error", err)
		return
	}

	m.pending[id] = &pendingPairing{
		game:      game.New(id, u1, u2),
		whiteConn: c1,
		blackConn: c2,
	}

	err1 := m.network.Send(c1, protocol.TypeAutoMatchFound, found1)
	err2 := m.network.Send(c2, protocol.TypeAutoMatchFound, found2)
	if err1 == nil && err2 == nil {
		slog.Info("pairing proposed", "game_id", id, "white", u1, "black", u2)
		return
	}

	// A side vanished inside the window; unwind like a decline.
	delete(m.pending, id)
	if err1 == nil {
		m.notifyDeclined(c1, id)
		m.Enqueue(c1)
	}
	if err2 == nil {
		m.notifyDeclined(c2, id)
		m.Enqueue(c2)
	}
}

func ratingGap(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}
