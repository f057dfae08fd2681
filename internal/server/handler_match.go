package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/server/clientpackets"
	"github.com/tcpchess/chessd/internal/server/serverpackets"
)

// handleAutoMatchRequest enqueues a logged-in connection for matchmaking.
// The payload username is checked against the binding, never trusted as an
// identity; the fixed tag set has no failure reply for matchmaking, so
// bad requests are logged and dropped.
func (h *Handler) handleAutoMatchRequest(c *Conn, payload []byte) error {
	req, err := clientpackets.ParseAutoMatchRequest(payload)
	if err != nil {
		return fmt.Errorf("parsing auto match request: %w", err)
	}

	username := c.Username()
	if username == "" {
		slog.Warn("auto match request before login", "conn", c.ID(), "remote", c.Remote())
		return nil
	}
	if req.Username != username {
		slog.Warn("auto match request for another identity",
			"conn", c.ID(), "bound", username, "claimed", req.Username)
		return nil
	}

	slog.Info("queueing for matchmaking", "username", username, "conn", c.ID())
	h.manager.Enqueue(c.ID())
	return nil
}

func (h *Handler) handleAutoMatchAccepted(c *Conn, payload []byte) error {
	req, err := clientpackets.ParseAutoMatchAccepted(payload)
	if err != nil {
		return fmt.Errorf("parsing auto match accepted: %w", err)
	}

	h.manager.HandleAccept(c.ID(), req.GameID)
	return nil
}

func (h *Handler) handleAutoMatchDeclined(c *Conn, payload []byte) error {
	req, err := clientpackets.ParseAutoMatchDeclined(payload)
	if err != nil {
		return fmt.Errorf("parsing auto match declined: %w", err)
	}

	h.manager.HandleDecline(c.ID(), req.GameID)
	return nil
}

func (h *Handler) handleMove(ctx context.Context, c *Conn, payload []byte) error {
	req, err := clientpackets.ParseMove(payload)
	if err != nil {
		return fmt.Errorf("parsing move: %w", err)
	}

	h.manager.HandleMove(ctx, c.ID(), req.GameID, req.UCIMove)
	return nil
}

// handleChallengeRequest forwards a direct challenge to the named player.
// An offline or self target declines on the target's behalf.
func (h *Handler) handleChallengeRequest(ctx context.Context, c *Conn, payload []byte) error {
	req, err := clientpackets.ParseChallengeRequest(payload)
	if err != nil {
		return fmt.Errorf("parsing challenge request: %w", err)
	}

	from := c.Username()
	if from == "" {
		slog.Warn("challenge request before login", "conn", c.ID(), "remote", c.Remote())
		return nil
	}

	targetConn, ok := h.clients.ConnForUsername(req.ToUsername)
	if !ok || req.ToUsername == from {
		slog.Info("challenge target unavailable", "from", from, "to", req.ToUsername)
		p, err := serverpackets.ChallengeDeclined(req.ToUsername)
		return h.reply(c, protocol.TypeChallengeDeclined, p, err)
	}

	elo, err := h.users.Elo(ctx, from)
	if err != nil {
		slog.Error("reading challenger rating", "username", from, "error", err)
		return nil
	}

	p, err := serverpackets.ChallengeNotification(from, elo)
	if err != nil {
		slog.Error("building challenge notification", "from", from, "error", err)
		return nil
	}
	if err := h.clients.Send(targetConn, protocol.TypeChallengeNotification, p); err != nil {
		slog.Info("challenge target vanished", "from", from, "to", req.ToUsername, "error", err)
		declined, err := serverpackets.ChallengeDeclined(req.ToUsername)
		return h.reply(c, protocol.TypeChallengeDeclined, declined, err)
	}

	slog.Info("challenge delivered", "from", from, "to", req.ToUsername)
	return nil
}

// handleChallengeResponse settles a received challenge. Acceptance starts
// the game immediately, challenger as white; decline echoes back to the
// challenger. A challenger who vanished declines on their behalf.
func (h *Handler) handleChallengeResponse(c *Conn, payload []byte) error {
	req, err := clientpackets.ParseChallengeResponse(payload)
	if err != nil {
		return fmt.Errorf("parsing challenge response: %w", err)
	}

	responder := c.Username()
	if responder == "" {
		slog.Warn("challenge response before login", "conn", c.ID(), "remote", c.Remote())
		return nil
	}

	challengerConn, ok := h.clients.ConnForUsername(req.FromUsername)
	if !ok {
		if !req.Accepted {
			return nil
		}
		slog.Info("challenger gone before acceptance", "from", req.FromUsername, "responder", responder)
		p, err := serverpackets.ChallengeDeclined(req.FromUsername)
		return h.reply(c, protocol.TypeChallengeDeclined, p, err)
	}

	if !req.Accepted {
		slog.Info("challenge declined", "from", req.FromUsername, "responder", responder)
		p, err := serverpackets.ChallengeDeclined(responder)
		if err != nil {
			slog.Error("building challenge declined", "responder", responder, "error", err)
			return nil
		}
		if err := h.clients.Send(challengerConn, protocol.TypeChallengeDeclined, p); err != nil {
			slog.Debug("challenger unreachable for decline", "from", req.FromUsername, "error", err)
		}
		return nil
	}

	if _, err := h.manager.AcceptChallenge(challengerConn, c.ID(), req.FromUsername, responder); err != nil {
		slog.Warn("accepting challenge", "from", req.FromUsername, "responder", responder, "error", err)
		p, err := serverpackets.ChallengeDeclined(req.FromUsername)
		return h.reply(c, protocol.TypeChallengeDeclined, p, err)
	}
	return nil
}
