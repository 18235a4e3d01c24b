package spawn

import (
	"fmt"
	"net"
	"time"
)

// pollSocketImpl dials sockPath with exponential back-off (starting at
// 20ms, capped at 200ms) until it accepts a connection or deadline
// elapses.
func pollSocketImpl(sockPath string, deadline time.Duration) error {
	backoff := 20 * time.Millisecond
	const maxBackoff = 200 * time.Millisecond
	giveUp := time.Now().Add(deadline)

	var lastErr error
	for time.Now().Before(giveUp) {
		conn, err := net.DialTimeout("unix", sockPath, backoff)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return fmt.Errorf("spawn: socket %s not ready after %s: %w", sockPath, deadline, lastErr)
}
