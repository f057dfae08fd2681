package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/tcpchess/chessd/internal/protocol"
)

// Client is a framed chess protocol client for integration tests. It
// frames outgoing payloads, reads one packet at a time with a deadline,
// and closes the connection via t.Cleanup.
type Client struct {
	t       testing.TB
	conn    net.Conn
	timeout time.Duration
}

// Dial connects a test client to a running server.
func Dial(t testing.TB, addr string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &Client{t: t, conn: conn, timeout: 5 * time.Second}
}

// Close closes the connection immediately, simulating a disconnect.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// Send frames and writes one packet.
func (c *Client) Send(typ protocol.Type, payload []byte) {
	c.t.Helper()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("setting write deadline: %v", err)
	}
	if err := protocol.WritePacket(c.conn, protocol.Packet{Type: typ, Payload: payload}); err != nil {
		c.t.Fatalf("sending %v: %v", typ, err)
	}
}

// SendRaw writes arbitrary bytes, for exercising framing edge cases.
func (c *Client) SendRaw(data []byte) {
	c.t.Helper()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("setting write deadline: %v", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("writing raw bytes: %v", err)
	}
}

// Recv reads the next packet or fails the test after the deadline.
func (c *Client) Recv() protocol.Packet {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.t.Fatalf("setting read deadline: %v", err)
	}
	pkt, err := protocol.ReadPacket(c.conn)
	if err != nil {
		c.t.Fatalf("reading packet: %v", err)
	}
	return pkt
}

// Expect reads the next packet and fails unless it carries the given tag.
func (c *Client) Expect(typ protocol.Type) protocol.Packet {
	c.t.Helper()

	pkt := c.Recv()
	if pkt.Type != typ {
		c.t.Fatalf("received %v, want %v", pkt.Type, typ)
	}
	return pkt
}

// ExpectSilence fails if any packet arrives within the window.
func (c *Client) ExpectSilence(window time.Duration) {
	c.t.Helper()

	if err := c.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		c.t.Fatalf("setting read deadline: %v", err)
	}
	if pkt, err := protocol.ReadPacket(c.conn); err == nil {
		c.t.Fatalf("expected no packet, received %v", pkt.Type)
	}
}

func (c *Client) sendStrings(typ protocol.Type, fields ...string) {
	c.t.Helper()

	w := protocol.GetWriter()
	defer w.Put()
	for _, f := range fields {
		w.WriteString(f)
	}
	payload, err := w.Bytes()
	if err != nil {
		c.t.Fatalf("building %v payload: %v", typ, err)
	}
	c.Send(typ, payload)
}

// Register sends REGISTER for the username.
func (c *Client) Register(username string) {
	c.sendStrings(protocol.TypeRegister, username)
}

// Login sends LOGIN for the username.
func (c *Client) Login(username string) {
	c.sendStrings(protocol.TypeLogin, username)
}

// AutoMatch sends AUTO_MATCH_REQUEST claiming the username.
func (c *Client) AutoMatch(username string) {
	c.sendStrings(protocol.TypeAutoMatchRequest, username)
}

// AcceptMatch sends AUTO_MATCH_ACCEPTED for the game.
func (c *Client) AcceptMatch(gameID string) {
	c.sendStrings(protocol.TypeAutoMatchAccepted, gameID)
}

// DeclineMatch sends AUTO_MATCH_DECLINED for the game.
func (c *Client) DeclineMatch(gameID string) {
	c.sendStrings(protocol.TypeAutoMatchDeclined, gameID)
}

// Move sends MOVE with a UCI move.
func (c *Client) Move(gameID, uci string) {
	c.sendStrings(protocol.TypeMove, gameID, uci)
}

// RequestPlayerList sends REQUEST_PLAYER_LIST.
func (c *Client) RequestPlayerList() {
	c.Send(protocol.TypeRequestPlayerList, nil)
}

// Challenge sends CHALLENGE_REQUEST naming the invited player.
func (c *Client) Challenge(to string) {
	c.sendStrings(protocol.TypeChallengeRequest, to)
}

// RespondChallenge sends CHALLENGE_RESPONSE answering a challenger.
func (c *Client) RespondChallenge(from string, accepted bool) {
	c.t.Helper()

	w := protocol.GetWriter()
	defer w.Put()
	w.WriteString(from)
	w.WriteBool(accepted)
	payload, err := w.Bytes()
	if err != nil {
		c.t.Fatalf("building challenge response: %v", err)
	}
	c.Send(protocol.TypeChallengeResponse, payload)
}

// ReadString pulls one length-prefixed string off a payload reader.
func ReadString(t testing.TB, r *protocol.Reader) string {
	t.Helper()

	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("reading string field: %v", err)
	}
	return s
}

// ReadUint16 pulls one big-endian uint16 off a payload reader.
func ReadUint16(t testing.TB, r *protocol.Reader) uint16 {
	t.Helper()

	v, err := r.ReadUint16()
	if err != nil {
		t.Fatalf("reading uint16 field: %v", err)
	}
	return v
}

// ReadBool pulls one boolean byte off a payload reader.
func ReadBool(t testing.TB, r *protocol.Reader) bool {
	t.Helper()

	v, err := r.ReadBool()
	if err != nil {
		t.Fatalf("reading bool field: %v", err)
	}
	return v
}
