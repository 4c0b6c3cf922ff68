// Package texttospeech holds what synthesizers share: the failure values and
// the retry loop around backend calls.
package texttospeech

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrEmptyAudio = errors.New("synthesizer returned no audio")
	ErrEmptyText  = errors.New("nothing to synthesize")
)

// PermanentError marks a failure that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// RetryPolicy retries a call with exponential backoff: Retries extra
// attempts, the first one after InitialBackoff.
type RetryPolicy struct {
	Retries        int
	InitialBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 3, InitialBackoff: time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = p.InitialBackoff
	exponential.Multiplier = 2
	exponential.RandomizationFactor = 0
	exponential.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(max(p.Retries, 0))), ctx)
}

// Do calls fn until it succeeds, fails permanently or the retries run out,
// returning the last error. Once ctx is done it returns ctx's error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		err := fn(ctx)
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
}
