// Package server runs the TCP front of the chess service: the accept
// loop, per-connection receive goroutines, the connection table with its
// session bindings, and the packet dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/config"
	"github.com/tcpchess/chessd/internal/protocol"
)

const readBufSize = 4096

// PacketHandler consumes decoded packets and connection teardown events.
type PacketHandler interface {
	// HandlePacket processes one packet on the receiving connection's
	// goroutine. A non-nil error is transport-class and terminates the
	// connection; application failures answer the client and return nil.
	HandlePacket(ctx context.Context, c *Conn, pkt protocol.Packet) error

	// HandleDisconnect runs once per connection after it leaves the
	// table. username is empty when the connection never logged in.
	HandleDisconnect(ctx context.Context, id uuid.UUID, username string)
}

// Server accepts chess client connections and pumps their packets into
// the handler.
type Server struct {
	cfg     config.Config
	clients *Clients
	handler PacketHandler

	listener net.Listener
	mu       sync.Mutex
}

// NewServer wires the server to an existing connection table and handler.
func NewServer(cfg config.Config, clients *Clients, handler PacketHandler) *Server {
	return &Server{
		cfg:     cfg,
		clients: clients,
		handler: handler,
	}
}

// Addr returns the listening address, nil before Run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the accept loop.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on the configured address and serves until ctx is
// cancelled. Returns after every connection goroutine has finished.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections from a ready listener. Used by tests with a
// port-0 listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("chess server started", "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	}()

	wg.Wait()

	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			sock, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("failed to accept new connection", "error", err)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleConnection(ctx, sock)
			}()
		}
	}
}

// handleConnection runs the receive loop for one connection, then tears
// it down: table removal first, then socket close, then the disconnect
// hook, so fan-out racing the teardown stops resolving the connection
// before its games are settled.
func (s *Server) handleConnection(ctx context.Context, sock net.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			sock.Close()
		case <-done:
		}
	}()

	c := newConn(sock, s.cfg.WriteTimeout)
	s.clients.Register(c)
	slog.Info("new connection", "conn", c.ID(), "remote", c.Remote())

	defer func() {
		username := c.Username()
		s.clients.Unregister(c.ID())
		c.close()
		s.handler.HandleDisconnect(ctx, c.ID(), username)
		slog.Info("connection closed", "conn", c.ID(), "remote", c.Remote(), "username", username)
	}()

	s.receiveLoop(ctx, c)
}

// receiveLoop reads socket chunks, reassembles frames, and dispatches
// them in arrival order. The read deadline bounds each blocking read so
// shutdown is noticed within one timeout.
func (s *Server) receiveLoop(ctx context.Context, c *Conn) {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	buf := make([]byte, readBufSize)
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.sock.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			slog.Warn("setting read deadline", "conn", c.ID(), "error", err)
			return
		}

		n, err := c.sock.Read(buf)
		if n > 0 {
			c.stream.Feed(buf[:n])
			for {
				pkt, ok := c.stream.Next()
				if !ok {
					break
				}
				if herr := s.handler.HandlePacket(ctx, c, pkt); herr != nil {
					slog.Warn("dropping connection", "conn", c.ID(), "packet", pkt.Type, "error", herr)
					return
				}
			}
		}
		if err != nil {
			var nerr net.Error
			switch {
			case errors.As(err, &nerr) && nerr.Timeout():
				// Idle read window expired; re-check ctx and keep reading.
			case errors.Is(err, io.EOF):
				slog.Debug("peer closed connection", "conn", c.ID(), "remote", c.Remote())
				return
			case errors.Is(err, net.ErrClosed):
				return
			default:
				slog.Warn("read failed", "conn", c.ID(), "remote", c.Remote(), "error", err)
				return
			}
		}
	}
}
