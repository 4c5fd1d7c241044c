package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	xhttp "NiftyPulse/pkg/http"
)

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped retriable", fmt.Errorf("cycle: %w", Retriable("decode", errors.New("bad json"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"5xx", fmt.Errorf("get: %w", &xhttp.StatusError{Code: 503}), true},
		{"429", &xhttp.StatusError{Code: 429}, true},
		{"4xx", &xhttp.StatusError{Code: 401}, false},
		{"plain", errors.New("unknown ticker"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetriable(tt.err))
		})
	}
}

func TestRetryPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 5, MinBackoff: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("permanent")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyBounded(t *testing.T) {
	calls := 0
	p := RetryPolicy{MaxAttempts: 3, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Retriable("op", errors.New("flaky"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		if d < 5*time.Millisecond || d > 80*time.Millisecond {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}
