package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/owlfest/aggregator/internal/config"
)

func TestRun_ReturnsWhenContextCancelled(t *testing.T) {
	a, err := New(context.Background(), &config.Config{}, Deps{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := a.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestShutdown_RunsClosersInOrderAndOnlyOnce(t *testing.T) {
	a, err := New(context.Background(), &config.Config{}, Deps{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var order []int
	a.AddCloser(func() error { order = append(order, 1); return nil })
	a.AddCloser(func() error { order = append(order, 2); return nil })
	a.AddCloser(func() error { order = append(order, 3); return nil })

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("closers ran in order %v, want [1 2 3]", order)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("closers ran again on a second Shutdown call: %v", order)
	}
}

func TestShutdown_StopsEarlyWhenContextDone(t *testing.T) {
	a, err := New(context.Background(), &config.Config{}, Deps{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ran := false
	a.AddCloser(func() error { ran = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Shutdown() error = %v, want context.Canceled", err)
	}
	if ran {
		t.Fatal("closer should not run once the shutdown context is already done")
	}
}

func TestNextRefreshDelay_LaterToday(t *testing.T) {
	cfg := &config.Config{Places: config.PlacesConfig{RefreshCronUTC: "15:00"}}
	fixed := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	a, err := New(context.Background(), cfg, Deps{}, nil, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := 5 * time.Hour
	if got := a.nextRefreshDelay(); got != want {
		t.Fatalf("nextRefreshDelay() = %v, want %v", got, want)
	}
}

func TestNextRefreshDelay_AlreadyPassedTodayRollsToTomorrow(t *testing.T) {
	cfg := &config.Config{Places: config.PlacesConfig{RefreshCronUTC: "03:00"}}
	fixed := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	a, err := New(context.Background(), cfg, Deps{}, nil, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := 17 * time.Hour
	if got := a.nextRefreshDelay(); got != want {
		t.Fatalf("nextRefreshDelay() = %v, want %v", got, want)
	}
}

func TestNextRefreshDelay_UnparseableScheduleFallsBackTo24h(t *testing.T) {
	cfg := &config.Config{Places: config.PlacesConfig{RefreshCronUTC: "not-a-time"}}

	a, err := New(context.Background(), cfg, Deps{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := a.nextRefreshDelay(); got != 24*time.Hour {
		t.Fatalf("nextRefreshDelay() = %v, want 24h fallback", got)
	}
}
