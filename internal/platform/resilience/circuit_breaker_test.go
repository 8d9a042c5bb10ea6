package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	var transitions []string
	b := NewCircuitBreaker("portal-api", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      5 * time.Second,
		HalfOpenMaxReq:   1,
	}, func(name string, from, to CircuitState) {
		transitions = append(transitions, name+":"+string(from)+"->"+string(to))
	})

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.Record(true)
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.Record(true)
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected second half-open probe to be rejected, got %v", err)
	}

	b.Record(false)
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open probe, got %s", state)
	}

	want := []string{
		"portal-api:closed->open",
		"portal-api:open->half_open",
		"portal-api:half_open->closed",
	}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := NewCircuitBreaker("portal-api", CircuitBreakerConfig{FailureThreshold: 2}, nil)

	b.Record(true)
	b.Record(false)
	b.Record(true)

	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("non-consecutive failures must not open the breaker, got %s", state)
	}
}

func TestNormalizeCircuitBreakerConfig(t *testing.T) {
	cfg := NormalizeCircuitBreakerConfig(CircuitBreakerConfig{Enabled: false})
	if cfg.Enabled {
		t.Fatalf("normalize must not flip Enabled")
	}
	if cfg.FailureThreshold != 5 || cfg.OpenTimeout != 15*time.Second || cfg.HalfOpenMaxReq != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
