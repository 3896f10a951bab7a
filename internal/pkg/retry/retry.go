// Package retry implements the shared backoff policy applied to every
// network-bound generation call in the pipeline.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrInvalidCredential is returned when the provider reports that the
// configured API key no longer maps to a usable entity. It is terminal and
// never retried.
var ErrInvalidCredential = errors.New("invalid API key, please select a new one")

// quotaSignatures mark errors as rate-limit/quota exhaustion, the only class
// of failure worth backing off and retrying.
var quotaSignatures = []string{"429", "resource_exhausted", "quota"}

const invalidCredentialSignature = "requested entity was not found"

// Options controls one wrapped call site.
type Options struct {
	// MaxAttempts is the total attempt ceiling, including the first call.
	MaxAttempts int
	// BaseDelay is doubled on each successive quota failure.
	BaseDelay time.Duration
	// JitterCap bounds the random addition to each backoff sleep.
	// Zero means the default of 500ms.
	JitterCap time.Duration
	// OnInvalidCredential fires once when the provider reports the
	// credential as unusable, before Do returns ErrInvalidCredential.
	OnInvalidCredential func()

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) normalize() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.JitterCap <= 0 {
		o.JitterCap = 500 * time.Millisecond
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
}

// Do invokes op, retrying quota failures with exponential backoff plus
// jitter up to the attempt ceiling. Invalid-credential failures short-circuit
// through OnInvalidCredential; every other failure surfaces immediately.
func Do(ctx context.Context, op func(context.Context) error, opts Options) error {
	opts.normalize()

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		text := strings.ToLower(err.Error())
		if strings.Contains(text, invalidCredentialSignature) {
			if opts.OnInvalidCredential != nil {
				opts.OnInvalidCredential()
			}
			return ErrInvalidCredential
		}

		if !isQuotaError(text) || attempt >= opts.MaxAttempts-1 {
			return err
		}

		delay := opts.BaseDelay<<attempt + randJitter(opts.JitterCap)
		if sleepErr := opts.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
	return lastErr
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) (T, error) {
	var out T
	err := Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, opts)
	return out, err
}

func isQuotaError(lowered string) bool {
	for _, sig := range quotaSignatures {
		if strings.Contains(lowered, sig) {
			return true
		}
	}
	return false
}

func randJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
