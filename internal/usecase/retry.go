package usecase

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"time"
)

// RetriableError marks a failure worth another attempt within the same cycle.
type RetriableError struct {
	Op  string
	Err error
}

func (e *RetriableError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *RetriableError) Unwrap() error { return e.Err }

// Retriable wraps err so IsRetriable reports true. A nil err stays nil.
func Retriable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetriableError{Op: op, Err: err}
}

type temporary interface{ Temporary() bool }

// IsRetriable classifies network failures, timeouts, 5xx/429 responses and
// explicitly wrapped errors as retriable. Context cancellation never is.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var re *RetriableError
	if errors.As(err, &re) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}

// RetryPolicy bounds the attempts made for one instrument cycle.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Do runs fn until it succeeds, returns a non-retriable error, attempts run
// out or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil || !IsRetriable(err) || attempt == attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoffWithJitter(p.MinBackoff, p.MaxBackoff, attempt)):
		}
	}
	return err
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt-1)
	if d <= 0 || d > max {
		d = max
	}
	// full jitter in [d/2, d]
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
