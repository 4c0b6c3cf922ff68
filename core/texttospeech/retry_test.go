package texttospeech

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := RetryPolicy{Retries: 3, InitialBackoff: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success on the third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicyGivesUpAfterRetries(t *testing.T) {
	calls := 0
	err := RetryPolicy{Retries: 2, InitialBackoff: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("timeout")
	})

	if err == nil {
		t.Fatalf("expected the last error")
	}
	if calls != 3 {
		t.Fatalf("expected 1 attempt and 2 retries, got %d calls", calls)
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryPolicy{Retries: 3, InitialBackoff: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		return &PermanentError{Err: errors.New("bad request")}
	})

	var permanent *PermanentError
	if !errors.As(err, &permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries, got %d calls", calls)
	}
}

func TestRetryPolicyStopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryPolicy{Retries: 5, InitialBackoff: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("unavailable")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d calls", calls)
	}
}
