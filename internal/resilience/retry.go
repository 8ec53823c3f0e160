package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

var errCircuitOpen = errors.New("circuit breaker is open")

// ErrCircuitOpen is returned by CircuitBreaker.Execute when the breaker is open.
var ErrCircuitOpen = errCircuitOpen

// RetryConfig tunes Retry's exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3.
	MaxAttempts int

	// BaseWait is the delay before the first retry; each subsequent retry
	// doubles it. Callers should set this from config
	// (resilience.retry.wait, default 1s); 300ms below is only a failsafe
	// for a zero-value RetryConfig.
	BaseWait time.Duration
}

// Retry calls fn up to cfg.MaxAttempts times with exponential backoff,
// retrying only when the error classifies as domain.KindTransient (§7).
// A permanent or unclassified error returns immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseWait <= 0 {
		cfg.BaseWait = 300 * time.Millisecond
	}

	var lastErr error
	wait := cfg.BaseWait
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
