package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/tcpchess/chessd/internal/protocol"
	"github.com/tcpchess/chessd/internal/server/clientpackets"
	"github.com/tcpchess/chessd/internal/server/serverpackets"
	"github.com/tcpchess/chessd/internal/store"
)

// maxUsernameBytes bounds usernames well under the wire's 255-byte string
// limit; they embed into game IDs and the player list.
const maxUsernameBytes = 32

// validUsername reports whether a username is acceptable for
// registration: nonempty, bounded, valid UTF-8, printable.
func validUsername(username string) bool {
	if username == "" || len(username) > maxUsernameBytes || !utf8.ValidString(username) {
		return false
	}
	for _, r := range username {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// handleRegister creates a new account. Registration does not bind the
// connection; the client logs in afterwards.
func (h *Handler) handleRegister(ctx context.Context, c *Conn, payload []byte) error {
	req, err := clientpackets.ParseRegister(payload)
	if err != nil {
		return fmt.Errorf("parsing register: %w", err)
	}

	fail := func(reason string) error {
		p, err := serverpackets.RegisterFailure(reason)
		return h.reply(c, protocol.TypeRegisterFailure, p, err)
	}

	if c.Username() != "" {
		return fail(serverpackets.ReasonAlreadyLoggedIn)
	}
	if !validUsername(req.Username) {
		return fail(serverpackets.ReasonInvalidUsername)
	}

	if err := h.users.Register(ctx, req.Username); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return fail(serverpackets.ReasonUsernameTaken)
		}
		slog.Error("registering user", "username", req.Username, "error", err)
		return fail(serverpackets.ReasonInternalError)
	}

	elo, err := h.users.Elo(ctx, req.Username)
	if err != nil {
		slog.Error("reading rating after registration", "username", req.Username, "error", err)
		return fail(serverpackets.ReasonInternalError)
	}

	slog.Info("user registered", "username", req.Username, "elo", elo, "remote", c.Remote())
	p, err := serverpackets.RegisterSuccess(req.Username, elo)
	return h.reply(c, protocol.TypeRegisterSuccess, p, err)
}

// handleLogin binds an existing account to the connection. The bind is an
// atomic check-and-set on the connection table, which enforces single
// login in both directions.
func (h *Handler) handleLogin(ctx context.Context, c *Conn, payload []byte) error {
	req, err := clientpackets.ParseLogin(payload)
	if err != nil {
		return fmt.Errorf("parsing login: %w", err)
	}

	fail := func(reason string) error {
		p, err := serverpackets.LoginFailure(reason)
		return h.reply(c, protocol.TypeLoginFailure, p, err)
	}

	if c.Username() != "" {
		return fail(serverpackets.ReasonAlreadyLoggedIn)
	}

	known, err := h.users.Validate(ctx, req.Username)
	if err != nil {
		slog.Error("validating user", "username", req.Username, "error", err)
		return fail(serverpackets.ReasonInternalError)
	}
	if !known {
		return fail(serverpackets.ReasonInvalidUsername)
	}

	if !h.clients.BindUsername(c.ID(), req.Username) {
		return fail(serverpackets.ReasonUserAlreadyLoggedIn)
	}

	elo, err := h.users.Elo(ctx, req.Username)
	if err != nil {
		slog.Error("reading rating at login", "username", req.Username, "error", err)
		return fail(serverpackets.ReasonInternalError)
	}

	slog.Info("user logged in", "username", req.Username, "elo", elo, "conn", c.ID(), "remote", c.Remote())
	p, err := serverpackets.LoginSuccess(req.Username, elo)
	return h.reply(c, protocol.TypeLoginSuccess, p, err)
}

// handleRequestPlayerList answers with every logged-in user and their
// rating, requester included.
func (h *Handler) handleRequestPlayerList(ctx context.Context, c *Conn) error {
	entries := make([]serverpackets.PlayerEntry, 0, h.clients.Count())
	for _, username := range h.clients.LoggedIn() {
		elo, err := h.users.Elo(ctx, username)
		if err != nil {
			slog.Error("reading rating for player list", "username", username, "error", err)
			continue
		}
		entries = append(entries, serverpackets.PlayerEntry{Username: username, Elo: elo})
	}

	p, err := serverpackets.PlayerList(entries)
	return h.reply(c, protocol.TypePlayerList, p, err)
}
