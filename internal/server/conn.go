package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Default read/write deadline constants.
// Overridden by config values when available.
const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Conn is one client connection. The receive goroutine owns the stream;
// sends from any goroutine serialize on the send mutex.
type Conn struct {
	id     uuid.UUID
	sock   net.Conn
	remote string
	stream protocol.Stream

	writeTimeout time.Duration

	// sendMu orders whole frames on the socket.
	sendMu sync.Mutex

	// mu guards the username binding.
	mu       sync.Mutex
	username string

	closeOnce sync.Once
}

func newConn(sock net.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	remote := sock.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	return &Conn{
		id:           uuid.New(),
		sock:         sock,
		remote:       remote,
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection identifier, stable for its lifetime.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Remote returns the client's remote host.
func (c *Conn) Remote() string {
	return c.remote
}

// Username returns the bound username, empty before login.
func (c *Conn) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Conn) setUsername(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
}

// send frames and writes one packet. Concurrent callers queue on the send
// mutex, so frames never interleave on the wire.
func (c *Conn) send(typ protocol.Type, payload []byte) error {
	data, err := protocol.Encode(protocol.Packet{Type: typ, Payload: payload})
	if err != nil {
		return fmt.Errorf("framing %v packet: %w", typ, err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := c.sock.Write(data); err != nil {
		return fmt.Errorf("writing %v packet: %w", typ, err)
	}
	return nil
}

// close shuts the socket down. Safe to call multiple times.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		_ = c.sock.Close()
	})
}
