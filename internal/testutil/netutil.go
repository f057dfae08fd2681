// Package testutil holds shared helpers for socket-level tests: random
// port listeners, readiness polling, and a framed chess test client.
package testutil

import (
	"net"
	"testing"
)

// ListenTCP opens a listener on a random free port and closes it when
// the test finishes. Returns the listener and its address string.
func ListenTCP(t testing.TB) (net.Listener, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening on a random port: %v", err)
	}
	t.Cleanup(func() {
		_ = ln.Close()
	})

	return ln, ln.Addr().String()
}

// PipeConn creates a connected net.Conn pair via net.Pipe, closed
// automatically when the test finishes.
func PipeConn(t testing.TB) (client, server net.Conn) {
	t.Helper()

	server, client = net.Pipe()

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	return client, server
}
