/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/actionagent/retry"
	"github.com/google/go-github/v75/github"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func alwaysRetryable(err error) bool { return err != nil }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	got, err := retry.Do(context.Background(), testConfig(), "op", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("got %d attempts, want 1", n)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	got, err := retry.Do(context.Background(), testConfig(), "op", alwaysRetryable, func() (int, error) {
		if attempts.Add(1) < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("got %d attempts, want 3", n)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	t.Parallel()
	fatal := errors.New("bad credentials")
	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "op", func(error) bool { return false }, func() (string, error) {
		attempts.Add(1)
		return "", fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("got error %v, want %v", err, fatal)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("got %d attempts, want 1", n)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "token_exchange", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "", errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("got %d attempts, want 3", n)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retry.Do(ctx, testConfig(), "op", alwaysRetryable, func() (string, error) {
		return "", errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want context.Canceled", err)
	}
}

func TestTransient(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("nope"), want: false},
		{name: "server error", err: &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusBadGateway}}, want: true},
		{name: "client error", err: &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusForbidden}}, want: false},
		{name: "abuse rate limit", err: &github.AbuseRateLimitError{}, want: true},
		{name: "wrapped server error", err: fmt.Errorf("calling API: %w", &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}), want: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.Transient(tc.err); got != tc.want {
				t.Errorf("Transient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
