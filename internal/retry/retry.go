package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"docqa/internal/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 40 * time.Second
)

// ErrExhausted marks a failure that survived every attempt of a policy.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds the attempts of one upstream call.
// Waits grow exponentially from BaseDelay, are capped at MaxDelay and are drawn
// uniformly from [0, wait].
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 3 attempts with a 1s base and a 40s per-wait cap.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p Policy) backoff() goretry.Backoff {
	exponential := goretry.NewExponential(p.BaseDelay)
	exponential = goretry.WithCappedDuration(p.MaxDelay, exponential)
	jittered := fullJitter(exponential)
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), jittered) // #nosec G115 -- MaxAttempts >= 1
}

func fullJitter(next goretry.Backoff) goretry.Backoff {
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if d <= 0 {
			return 0, false
		}
		return rand.N(d + 1), false
	})
}

// Do calls fn until it succeeds, the policy runs out of attempts, or ctx is done.
// The last failure is returned wrapped with ErrExhausted.
func Do[T any](ctx context.Context, policy Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p := policy.normalized()
	log := logger.FromContext(ctx)
	var (
		result  T
		attempt int
		lastErr error
	)
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		out, err := fn(ctx)
		if err == nil {
			result = out
			return nil
		}
		lastErr = err
		if attempt < p.MaxAttempts {
			log.Warn("Upstream call failed, retrying", "op", op, "attempt", attempt, "max_attempts", p.MaxAttempts, "error", err)
		}
		return goretry.RetryableError(err)
	})
	if err == nil {
		return result, nil
	}
	var zero T
	if lastErr == nil || ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	log.Error("Upstream call failed", "op", op, "attempts", attempt, "error", lastErr)
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, attempt, lastErr)
}
