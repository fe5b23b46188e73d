// Package ratelimit provides request throttling domain types.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Config defines the throttle parameters for one caller.
type Config struct {
	// Rate is the number of allowed requests per Period.
	Rate int

	// Burst is how many requests may arrive at once. Values below Rate
	// are raised to Rate.
	Burst int

	// Period is the time window for the rate.
	Period time.Duration
}

// Result is the outcome of one throttle check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long until the next request would be allowed.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration

	// ResetAfter is how long until the window fully resets.
	ResetAfter time.Duration
}

// Limiter throttles requests per key. Implementations use GCRA so the
// allowance is spread evenly over the period instead of resetting at
// window boundaries.
type Limiter interface {
	Allow(ctx context.Context, key string, cfg Config) (Result, error)
}

// CallerKey derives the throttle key for one request: the user id when
// the caller identified itself, otherwise the remote host.
func CallerKey(userID, remoteAddr string) string {
	if userID != "" {
		return fmt.Sprintf("user:%s", userID)
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return fmt.Sprintf("ip:%s", host)
}
