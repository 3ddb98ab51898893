package errs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return Transient("llm call", errors.New("503"))
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return Transient("embed", errors.New("timeout"))
	})

	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !IsTransient(err) {
		t.Errorf("exhausted error should remain classified transient: %v", err)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(3), func() error {
		calls++
		return Invariant("embedding has %d dims, want %d", 384, 768)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on invariant violation)", calls)
	}
	if !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("error kind lost: %v", err)
	}
}

func TestRetryObservesContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(3), func() error {
		return Transient("storage", errors.New("unreachable"))
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryWithResult(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(2), func() (string, error) {
		calls++
		if calls == 1 {
			return "", Transient("llm", errors.New("500"))
		}
		return "summary", nil
	})

	if err != nil {
		t.Fatalf("RetryWithResult: %v", err)
	}
	if got != "summary" {
		t.Errorf("result = %q", got)
	}
}

func TestErrorClassification(t *testing.T) {
	if !IsTransient(Transient("x", errors.New("y"))) {
		t.Errorf("Transient not classified as transient")
	}
	if IsTransient(Invariant("bad")) {
		t.Errorf("Invariant classified as transient")
	}
	if IsTransient(errors.New("plain")) {
		t.Errorf("plain error classified as transient")
	}
}
