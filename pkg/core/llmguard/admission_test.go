package llmguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdmissionLimitsConcurrency(t *testing.T) {
	a := NewAdmission(1)

	release, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error acquiring first slot: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a second Acquire to block until ctx deadline, got %v", err)
	}

	release()
	release2, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("expected Acquire to succeed once the slot is released, got %v", err)
	}
	release2()
}

func TestNewAdmissionNonPositiveCapacityFallsBackToOne(t *testing.T) {
	a := NewAdmission(0)
	if cap(a.slots) != 1 {
		t.Errorf("expected capacity 0 to fall back to 1, got %d", cap(a.slots))
	}
}

func TestWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call on immediate success, got %d", calls)
	}
}

func TestWithRetryNonRetryableErrorAbortsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("invalid input")
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: sentinel, Retryable: false}
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond})

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected the sentinel error to surface, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a non-retryable error to abort after 1 call, got %d", calls)
	}
}

func TestWithRetryRetriesThenSucceeds(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Err: errors.New("429 rate limited"), Retryable: true}
		}
		return nil
	}, RetryOptions{MaxAttempts: 5, InitialDelay: time.Millisecond, Multiplier: 2.0})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (2 retries), got %d", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("529 overloaded")
	err := WithRetry(context.Background(), func() error {
		calls++
		return &RetryableError{Err: sentinel, Retryable: true}
	}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0})

	if err == nil {
		t.Fatalf("expected an error after exhausting all attempts")
	}
	if calls != 3 {
		t.Errorf("expected exactly MaxAttempts=3 calls, got %d", calls)
	}
}

func TestWithRetryRespectsContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		return &RetryableError{Err: errors.New("timeout"), Retryable: true}
	}, RetryOptions{MaxAttempts: 10, InitialDelay: 100 * time.Millisecond, Multiplier: 2.0})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected the backoff sleep to be interrupted after the first attempt, got %d calls", calls)
	}
}

func TestFamilyOrAccountRetryOptions(t *testing.T) {
	opts := FamilyOrAccountRetryOptions()
	if opts.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", opts.MaxAttempts)
	}
	if opts.InitialDelay != 10*time.Second {
		t.Errorf("InitialDelay = %v, want 10s", opts.InitialDelay)
	}
}

func TestEmbedderRetryOptionsIsShorterThanFamilyOrAccount(t *testing.T) {
	embed := EmbedderRetryOptions()
	strong := FamilyOrAccountRetryOptions()
	if embed.InitialDelay >= strong.InitialDelay {
		t.Errorf("expected the embedder backoff to start shorter than the strong-model backoff")
	}
}
