package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bodylog-backend/internal/retry"
)

var fast = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

func TestWithBackoff(t *testing.T) {
	callCount := 0
	err := retry.WithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3, fast)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestWithBackoff_Exhausted(t *testing.T) {
	err := retry.WithBackoff(context.Background(), func() error {
		return assert.AnError
	}, 3, fast)

	assert.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestWithBackoff_PermanentStopsEarly(t *testing.T) {
	sentinel := errors.New("unauthorized")
	callCount := 0
	err := retry.WithBackoff(context.Background(), func() error {
		callCount++
		return retry.Permanent(sentinel)
	}, 3, fast)

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, callCount)
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	callCount := 0
	err := retry.WithBackoff(ctx, func() error {
		callCount++
		return assert.AnError
	}, 3, []time.Duration{time.Hour})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}
