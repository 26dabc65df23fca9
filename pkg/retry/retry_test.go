package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		MaxElapsedTime:  time.Second,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_TransientErrorEventuallySucceeds(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient failure")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return fmt.Errorf("always failing")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "always failing")
}

func TestRetry_FatalErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(), func() error {
		attempts++
		return NewFatalError(fmt.Errorf("schema mismatch"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Retry(ctx, testPolicy(), func() error {
		attempts++
		cancel()
		return fmt.Errorf("failing while context dies")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var reported []int
	err := RetryWithCallback(context.Background(), testPolicy(), func() error {
		return fmt.Errorf("always failing")
	}, func(attempt int, err error, nextDelay time.Duration) {
		reported = append(reported, attempt)
		assert.Positive(t, nextDelay)
	})
	require.Error(t, err)
	// The final attempt has no retry after it, so no callback fires for it.
	assert.Equal(t, []int{1, 2}, reported)
}

func TestCalculateBackoffDuration_Caps(t *testing.T) {
	d := CalculateBackoffDuration(10, time.Second, 2.0, 5*time.Second)
	assert.Equal(t, 5*time.Second, d)
}

func TestNewRetryableError_NilPassthrough(t *testing.T) {
	assert.Nil(t, NewRetryableError(nil))
	assert.Nil(t, NewFatalError(nil))
}

func TestErrorWrappersPreserveMessage(t *testing.T) {
	base := fmt.Errorf("underlying")
	assert.Equal(t, "underlying", NewRetryableError(base).Error())
	assert.Equal(t, "underlying", NewFatalError(base).Error())
	assert.True(t, NewRetryableError(base).IsRetryable())
	assert.True(t, NewFatalError(base).IsFatal())
}
