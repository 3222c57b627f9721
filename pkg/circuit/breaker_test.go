package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBackend = errors.New("backend down")

func newTestBreaker(timeout time.Duration) *Breaker {
	return NewBreaker(Config{
		Name:        "test",
		MaxFailures: 3,
		Timeout:     timeout,
		HalfOpenMax: 2,
	})
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	b := newTestBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		err := b.Execute(context.Background(), func() error { return errBackend })
		assert.ErrorIs(t, err, errBackend)
	}

	assert.Equal(t, StateOpen, b.CurrentState())

	err := b.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func() error { return errBackend })
	}
	assert.Equal(t, StateOpen, b.CurrentState())

	time.Sleep(20 * time.Millisecond)

	// HalfOpenMax successful probes close the circuit again.
	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func() error { return nil })
		assert.NoError(t, err)
	}
	assert.Equal(t, StateClosed, b.CurrentState())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), func() error { return errBackend })
	}

	time.Sleep(20 * time.Millisecond)

	err := b.Execute(context.Background(), func() error { return errBackend })
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, StateOpen, b.CurrentState())
}

func TestBreakerResetsFailureCountOnSuccess(t *testing.T) {
	b := newTestBreaker(time.Minute)

	_ = b.Execute(context.Background(), func() error { return errBackend })
	_ = b.Execute(context.Background(), func() error { return errBackend })
	_ = b.Execute(context.Background(), func() error { return nil })
	_ = b.Execute(context.Background(), func() error { return errBackend })

	assert.Equal(t, StateClosed, b.CurrentState())
}
