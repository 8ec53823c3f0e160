package resilience

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("probe failure")

func TestCircuitBreaker_ClosedAllowsCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test"})
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestCircuitBreaker_TripsAtFailureRate(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		Window:      10,
		MinCalls:    10,
		FailureRate: 0.5,
		OpenWait:    time.Hour,
	})

	// 10 calls, 5 failures (exactly at the 50% threshold) should trip.
	for i := 0; i < 10; i++ {
		fail := i%2 == 0
		_ = cb.Execute(func() error {
			if fail {
				return errProbe
			}
			return nil
		})
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_BelowMinCallsNeverTrips(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:     "test",
		Window:   100,
		MinCalls: 10,
	})

	for i := 0; i < 9; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed (below MinCalls)", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecoversToClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		Window:      10,
		MinCalls:    10,
		FailureRate: 0.5,
		OpenWait:    10 * time.Millisecond,
		HalfOpenMax: 2,
	})

	for i := 0; i < 10; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}
	if cb.State() != StateOpen {
		t.Fatal("expected breaker to be open")
	}

	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: unexpected error %v", i, err)
		}
	}

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		Window:      10,
		MinCalls:    10,
		FailureRate: 0.5,
		OpenWait:    10 * time.Millisecond,
		HalfOpenMax: 3,
	})

	for i := 0; i < 10; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}
	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(func() error { return errProbe })

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after half-open probe failure", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Window: 10, MinCalls: 10, FailureRate: 0.5})
	for i := 0; i < 10; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}
	if cb.State() != StateOpen {
		t.Fatal("expected open before reset")
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatal("expected closed after reset")
	}
}
