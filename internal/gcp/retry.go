package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy is an exponential backoff: Initial, doubled per attempt up to Max.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultRetry is used by every Google API adapter in this package.
var DefaultRetry = RetryPolicy{Attempts: 5, Initial: 2 * time.Second, Max: 60 * time.Second}

// IsTransient reports whether err is worth retrying: HTTP 429/500/502/503/504,
// gRPC Unavailable, ResourceExhausted or DeadlineExceeded, and network
// timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
			return true
		}
		return false
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := p.Initial
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}

		slog.Warn(
			"Transient failure, will retry.",
			"operation", op,
			"attempt", attempt,
			"maxAttempts", p.Attempts,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, p.Max)
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "operation", op, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Operation failed after all retries.", "operation", op, "error", lastErr)
	return fmt.Errorf("%s failed after %d attempts: %w", op, p.Attempts, lastErr)
}
