package circuit

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker("advisory", Config{FailureThreshold: 2, InitialBackoff: time.Millisecond})
	if !b.Allow() {
		t.Fatalf("expected closed breaker to allow")
	}
	b.RecordFailure(errors.New("boom"))
	if b.State() != StateClosed {
		t.Fatalf("expected still closed after one failure")
	}
	b.RecordFailure(errors.New("boom again"))
	if b.State() != StateOpen {
		t.Fatalf("expected open after threshold failures, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected open breaker to block immediately after tripping")
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := NewBreaker("advisory", Config{FailureThreshold: 1, SuccessThreshold: 1, InitialBackoff: time.Millisecond})
	b.RecordFailure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open")
	}
	time.Sleep(2 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected half-open probe to be allowed after backoff elapses")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after success threshold met, got %s", b.State())
	}
}

func TestCategorizeError(t *testing.T) {
	if CategorizeError(errors.New("429 too many requests")) != ErrorCategoryRateLimit {
		t.Fatalf("expected rate limit category")
	}
	if CategorizeError(errors.New("401 unauthorized")) != ErrorCategoryFatal {
		t.Fatalf("expected fatal category")
	}
	if CategorizeError(errors.New("connection reset")) != ErrorCategoryTransient {
		t.Fatalf("expected transient category")
	}
}
