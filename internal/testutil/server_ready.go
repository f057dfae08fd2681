package testutil

import (
	"fmt"
	"net"
	"time"
)

// WaitForTCPReady polls until a TCP server accepts connections, instead
// of sleeping a guessed amount in integration tests.
//
// Example:
//
//	go srv.Serve(ctx, listener)
//	if err := testutil.WaitForTCPReady(addr, 5*time.Second); err != nil {
//	    t.Fatalf("server failed to start: %v", err)
//	}
func WaitForTCPReady(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("server at %s not ready after %v", addr, timeout)
}
