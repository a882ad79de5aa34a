package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{name: "nil", err: nil, retriable: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, retriable: true},
		{name: "rate limit status", err: errors.New("request failed: 429 Too Many Requests"), retriable: true},
		{name: "rate limit text", err: errors.New("rate limit exceeded"), retriable: true},
		{name: "internal server error", err: errors.New("500 internal server error"), retriable: true},
		{name: "bad gateway", err: errors.New("bad gateway"), retriable: true},
		{name: "service unavailable", err: errors.New("503 service unavailable"), retriable: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), retriable: true},
		{name: "timeout", err: errors.New("request timeout"), retriable: true},
		{name: "unauthorized", err: errors.New("401 unauthorized"), retriable: false},
		{name: "bad request", err: errors.New("400 bad request: invalid model"), retriable: false},
		{name: "unknown", err: errors.New("something odd happened"), retriable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, isRetriableError(tt.err))
		})
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, 50*time.Millisecond)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())

	// After the open timeout a probe is allowed: half-open.
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Two successes close the circuit.
	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 1, time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	_, failures, _ := cb.Metrics()
	assert.Equal(t, 0, failures)
}

func TestRetryWithBackoffStopsOnNonRetriable(t *testing.T) {
	c := &Client{retry: RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}}

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return errors.New("401 unauthorized")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "non-retriable error must not be retried")
}

func TestRetryWithBackoffRetriesTransient(t *testing.T) {
	c := &Client{retry: RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}}

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffExhaustsAttempts(t *testing.T) {
	c := &Client{retry: RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}}

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("attempt %d: connection refused", calls)
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls, "MaxRetries=2 means 3 attempts total")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryWithBackoffFailsFastWhenCircuitOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Minute)
	cb.RecordFailure()

	c := &Client{
		retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
			Timeout:           time.Second,
		},
		circuitBreaker: cb,
	}

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}
