package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/store"
)

// GameManager is the slice of the matchmaking and game layer the
// dispatcher drives.
type GameManager interface {
	Enqueue(conn uuid.UUID)
	HandleAccept(conn uuid.UUID, gameID string)
	HandleDecline(conn uuid.UUID, gameID string)
	HandleMove(ctx context.Context, conn uuid.UUID, gameID, uci string)
	HandleDisconnect(ctx context.Context, conn uuid.UUID, username string)
	AcceptChallenge(challengerConn, responderConn uuid.UUID, challenger, responder string) (string, error)
}

// Handler routes decoded packets to the appropriate handler. One per
// server; handler methods run on the receiving connection's goroutine.
type Handler struct {
	clients *Clients
	users   store.Store
	manager GameManager
}

var _ PacketHandler = (*Handler)(nil)

// NewHandler creates the packet dispatcher.
func NewHandler(clients *Clients, users store.Store, manager GameManager) *Handler {
	return &Handler{
		clients: clients,
		users:   users,
		manager: manager,
	}
}

// HandlePacket dispatches one packet by tag. A non-nil error means the
// payload did not parse and the connection must go; application failures
// answer the client and return nil. Unknown tags are logged and dropped.
func (h *Handler) HandlePacket(ctx context.Context, c *Conn, pkt protocol.Packet) error {
	switch pkt.Type {
	case protocol.TypeRegister:
		return h.handleRegister(ctx, c, pkt.Payload)
	case protocol.TypeLogin:
		return h.handleLogin(ctx, c, pkt.Payload)
	case protocol.TypeAutoMatchRequest:
		return h.handleAutoMatchRequest(c, pkt.Payload)
	case protocol.TypeAutoMatchAccepted:
		return h.handleAutoMatchAccepted(c, pkt.Payload)
	case protocol.TypeAutoMatchDeclined:
		return h.handleAutoMatchDeclined(c, pkt.Payload)
	case protocol.TypeMove:
		return h.handleMove(ctx, c, pkt.Payload)
	case protocol.TypeRequestPlayerList:
		return h.handleRequestPlayerList(ctx, c)
	case protocol.TypeChallengeRequest:
		return h.handleChallengeRequest(ctx, c, pkt.Payload)
	case protocol.TypeChallengeResponse:
		return h.handleChallengeResponse(c, pkt.Payload)
	default:
		slog.Warn("unknown packet tag", "tag", pkt.Type, "conn", c.ID(), "remote", c.Remote())
		return nil
	}
}

// HandleDisconnect settles the departed connection's matchmaking and game
// state.
func (h *Handler) HandleDisconnect(ctx context.Context, id uuid.UUID, username string) {
	h.manager.HandleDisconnect(ctx, id, username)
}

// reply sends one packet back to the originating connection. Failures are
// logged, not propagated: an oversize payload drops the reply only, and
// the receive loop notices a dead socket itself.
func (h *Handler) reply(c *Conn, typ protocol.Type, payload []byte, err error) error {
	if err != nil {
		slog.Error("building reply", "conn", c.ID(), "packet", typ, "error", err)
		return nil
	}
	if err := c.send(typ, payload); err != nil {
		slog.Warn("sending reply", "conn", c.ID(), "packet", typ, "error", err)
	}
	return nil
}
