package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(recorded *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	}
}

func TestQuotaErrorRetriesToCeiling(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("RESOURCE_EXHAUSTED: quota exceeded")
	}, Options{MaxAttempts: 5, BaseDelay: time.Second, JitterCap: time.Nanosecond, sleep: noSleep(&delays)})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	require.Len(t, delays, 4)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "backoff must strictly increase")
	}
	// base * 2^n, modulo jitter
	assert.GreaterOrEqual(t, delays[0], time.Second)
	assert.GreaterOrEqual(t, delays[3], 8*time.Second)
}

func TestHTTP429MessageIsRetried(t *testing.T) {
	var delays []time.Duration
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("got status 429 from upstream")
		}
		return nil
	}, Options{MaxAttempts: 5, BaseDelay: time.Millisecond, sleep: noSleep(&delays)})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestInvalidCredentialNeverRetried(t *testing.T) {
	var delays []time.Duration
	invalidations := 0
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("Requested Entity Was Not Found")
	}, Options{
		MaxAttempts:         5,
		BaseDelay:           time.Second,
		OnInvalidCredential: func() { invalidations++ },
		sleep:               noSleep(&delays),
	})

	require.ErrorIs(t, err, ErrInvalidCredential)
	assert.Equal(t, 1, calls, "must not retry regardless of remaining budget")
	assert.Equal(t, 1, invalidations, "callback fires exactly once")
	assert.Empty(t, delays)
}

func TestNonQuotaErrorFailsImmediately(t *testing.T) {
	boom := errors.New("generated script is empty")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, Options{MaxAttempts: 5, BaseDelay: time.Second, sleep: noSleep(&[]time.Duration{})})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoValueReturnsResult(t *testing.T) {
	attempts := 0
	v, err := DoValue(context.Background(), func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("quota exhausted")
		}
		return "narration", nil
	}, Options{MaxAttempts: 3, BaseDelay: time.Millisecond, sleep: noSleep(&[]time.Duration{})})

	require.NoError(t, err)
	assert.Equal(t, "narration", v)
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error {
		return errors.New("quota")
	}, Options{MaxAttempts: 3, BaseDelay: time.Minute})

	require.ErrorIs(t, err, context.Canceled)
}
