/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
)

// Config bounds the retry loop.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1 (no retries).
	MaxAttempts int
	// BaseBackoff is the initial backoff duration.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// MaxJitter is the maximum random jitter added to each backoff.
	MaxJitter time.Duration
}

// DefaultConfig returns bounds suited to credential exchange and other
// short hosting-API calls.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Do executes fn until it succeeds, the error is not retryable, or the
// attempt budget is exhausted. Only errors classified by isRetryable are
// retried; everything else returns immediately.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	attempts := max(cfg.MaxAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !isRetryable(lastErr) {
			return result, lastErr
		}

		if attempt == attempts {
			break
		}

		backoff := min(cfg.BaseBackoff<<(attempt-1), cfg.MaxBackoff)
		if cfg.MaxJitter > 0 {
			if n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter))); err == nil {
				backoff += time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt).
			With("max_attempts", attempts).
			With("backoff", backoff).
			With("error", lastErr.Error()).
			Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return result, fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

// Transient reports whether err looks like a temporary network or server
// condition worth retrying: timeouts, connection resets, HTTP 5xx, and
// secondary rate limits.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var rateErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= http.StatusInternalServerError
	}

	return false
}
