package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (connection resets, timeouts) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Kind classifies the outcome of one attempt.
type Kind int

const (
	// KindSuccess ends the loop and returns the value.
	KindSuccess Kind = iota
	// KindRetryable waits for the backoff and tries again.
	KindRetryable
	// KindFatal ends the loop and returns the error.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Result is the explicit outcome of a single attempt passed to [Do].
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Success wraps a value as a successful attempt.
func Success[T any](v T) Result[T] { return Result[T]{Kind: KindSuccess, Value: v} }

// Retryable marks err as transient.
func Retryable[T any](err error) Result[T] { return Result[T]{Kind: KindRetryable, Err: err} }

// Fatal marks err as permanent.
func Fatal[T any](err error) Result[T] { return Result[T]{Kind: KindFatal, Err: err} }

// ExhaustedError is returned by [Do] when every attempt was retryable.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return "retries exhausted: " + e.Last.Error()
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls fn until it reports success or a fatal error, or attempts run
// out. Unlike [Retry] the backoff between attempts is fixed. The attempt
// number (starting at 1) is passed to fn so callers can pick a fresh
// client per attempt.
func Do[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(attempt int) Result[T]) (T, error) {
	attempts = max(attempts, 1)
	var zero T
	var last error

	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		r := fn(i)
		switch r.Kind {
		case KindSuccess:
			return r.Value, nil
		case KindFatal:
			return zero, r.Err
		}
		last = r.Err

		if i < attempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if last == nil {
		last = errors.New("no attempt succeeded")
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}
