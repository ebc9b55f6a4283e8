package zotero

import (
	"net/http"
	"strconv"
	"time"
)

// setBackoff records now+d as the instant before which no request may be
// dispatched.
func (c *Client) setBackoff(d time.Duration) {
	c.mu.Lock()
	c.backoffUntil = c.now().Add(d)
	c.mu.Unlock()
	c.logger.Warn("server requested backoff", "duration", d)
}

// checkBackoff blocks until any active backoff has expired. The expiry is a
// polled instant rather than a timer so tests can inject a clock.
func (c *Client) checkBackoff() {
	c.mu.Lock()
	remaining := c.backoffUntil.Sub(c.now())
	c.mu.Unlock()
	if remaining > 0 {
		c.sleep(remaining)
	}
}

// backoffDuration extracts a rate-limit wait hint from response headers.
// The API communicates it via either Backoff or Retry-After, in seconds.
func backoffDuration(h http.Header) time.Duration {
	raw := h.Get("Backoff")
	if raw == "" {
		raw = h.Get("Retry-After")
	}
	if raw == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// recordBackoff inspects any response, success or failure, for a rate-limit
// hint and arms the tracker when one is present.
func (c *Client) recordBackoff(h http.Header) {
	if d := backoffDuration(h); d > 0 {
		c.setBackoff(d)
	}
}
