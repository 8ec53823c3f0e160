package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/owlfest/aggregator/internal/domain"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return domain.Classify(domain.KindTransient, errors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond}, func() error {
		attempts++
		return domain.Classify(domain.KindPermanent, errors.New("bad request"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on permanent errors)", attempts)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond}, func() error {
		attempts++
		return domain.Classify(domain.KindTransient, errors.New("still failing"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Retry(ctx, RetryConfig{MaxAttempts: 3, BaseWait: time.Millisecond}, func() error {
		attempts++
		return domain.Classify(domain.KindTransient, errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (cancelled before first retry sleep)", attempts)
	}
}
