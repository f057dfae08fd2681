package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Clients is the connection table and, through the username bindings it
// holds, the session registry. Thread-safe for concurrent access.
//
// It satisfies the narrow network interface the game manager depends on:
// Send, UsernameFor, ConnForUsername.
type Clients struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
}

// NewClients creates an empty connection table.
func NewClients() *Clients {
	return &Clients{
		conns: make(map[uuid.UUID]*Conn),
	}
}

// Register adds a connection to the table. Called on accept.
func (cs *Clients) Register(c *Conn) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.conns[c.id] = c
}

// Unregister removes a connection from the table. Called exactly once on
// teardown, before the disconnect hook runs, so in-flight fan-out stops
// resolving the connection.
func (cs *Clients) Unregister(id uuid.UUID) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.conns, id)
}

// Get returns the connection for the given ID, or nil.
func (cs *Clients) Get(id uuid.UUID) *Conn {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.conns[id]
}

// Count returns the number of registered connections.
func (cs *Clients) Count() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.conns)
}

// BindUsername binds a username to a connection, enforcing both directions
// of the single-login invariant in one critical section: a connection that
// already holds a binding, or a username bound elsewhere, fails the bind.
func (cs *Clients) BindUsername(id uuid.UUID, username string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	c, ok := cs.conns[id]
	if !ok || c.Username() != "" {
		return false
	}
	for _, other := range cs.conns {
		if other.Username() == username {
			return false
		}
	}
	c.setUsername(username)
	return true
}

// UsernameFor returns the username bound to the connection. ok is false
// when the connection is gone or never logged in.
func (cs *Clients) UsernameFor(id uuid.UUID) (string, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	c, ok := cs.conns[id]
	if !ok {
		return "", false
	}
	username := c.Username()
	return username, username != ""
}

// ConnForUsername returns the connection a username is bound to. Linear
// scan under the read lock; fine for the expected participant count.
func (cs *Clients) ConnForUsername(username string) (uuid.UUID, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for id, c := range cs.conns {
		if c.Username() == username {
			return id, true
		}
	}
	return uuid.Nil, false
}

// IsLoggedIn reports whether the username is bound to any connection.
func (cs *Clients) IsLoggedIn(username string) bool {
	_, ok := cs.ConnForUsername(username)
	return ok
}

// LoggedIn returns the usernames currently bound, in no particular order.
func (cs *Clients) LoggedIn() []string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	usernames := make([]string, 0, len(cs.conns))
	for _, c := range cs.conns {
		if u := c.Username(); u != "" {
			usernames = append(usernames, u)
		}
	}
	return usernames
}

// Send frames and delivers one packet to the connection. Fails when the
// connection has left the table.
func (cs *Clients) Send(id uuid.UUID, typ protocol.Type, payload []byte) error {
	c := cs.Get(id)
	if c == nil {
		return fmt.Errorf("connection %s is gone", id)
	}
	return c.send(typ, payload)
}
