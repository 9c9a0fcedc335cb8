package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NT710/willmyflightbelate/internal/types"
)

// Policy describes how an upstream call is retried. Backoff grows linearly:
// the n-th wait is n × Backoff (1s, 2s, 3s with the defaults).
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultPolicy matches the weather-upstream contract: three attempts with
// 1s/2s/3s waits between them.
var DefaultPolicy = Policy{Attempts: 3, Backoff: time.Second}

// Do invokes fn until it succeeds, the attempts are exhausted, or ctx is
// done. Not-found and auth failures are never retried: a miss is
// authoritative and bad credentials don't heal on their own.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, types.ErrFlightNotFound) || errors.Is(lastErr, types.ErrAuthFailed) {
			return lastErr
		}
		if attempt == policy.Attempts {
			break
		}

		wait := time.Duration(attempt) * policy.Backoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", policy.Attempts, lastErr)
}
