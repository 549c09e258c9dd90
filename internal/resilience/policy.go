package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"voicelog/internal/domain"
)

// RetryHook observes retry attempts.
type RetryHook interface {
	OnRetryAttempt(ctx context.Context, service string, attempt uint, err error, nextDelay time.Duration)
	OnRetryFailure(ctx context.Context, service string, err error, attempts uint, totalDuration time.Duration)
}

// Policy is the retry policy shared by every external service call.
type Policy struct {
	Service      string
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Retryable decides whether a failed attempt may be retried. Defaults to IsTransient.
	Retryable func(error) bool
	Hooks     []RetryHook
}

// DefaultPolicy returns three attempts with exponential delay and a 60s per-call timeout.
func DefaultPolicy(service string) Policy {
	return Policy{
		Service:      service,
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		Timeout:      60 * time.Second,
	}
}

// IsTransient reports whether err belongs to the transient error class.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy(p.Service)
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	if p.Service == "" {
		p.Service = "service"
	}
	return p
}

// Do runs op under the policy. Exhausted transient failures are reported as *domain.ExhaustedError;
// non-retryable failures are returned unchanged after the first attempt.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	p := policy.withDefaults()
	started := time.Now()

	var (
		attempts uint
		last     error
	)

	operation := func() (T, error) {
		attempts++
		result, err := runAttempt(ctx, p, op)
		if err == nil {
			return result, nil
		}
		last = err
		if ctx.Err() != nil || !p.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		var svcErr *domain.ServiceError
		if errors.As(err, &svcErr) && svcErr.RetryAfter > 0 {
			return result, backoff.RetryAfter(int(math.Ceil(svcErr.RetryAfter.Seconds())))
		}
		return result, err
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     p.InitialDelay,
			RandomizationFactor: 0.2,
			Multiplier:          p.Multiplier,
			MaxInterval:         p.MaxDelay,
		}),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			for _, hook := range p.Hooks {
				hook.OnRetryAttempt(ctx, p.Service, attempts, last, next)
			}
		}),
	)
	if err == nil {
		return result, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil && last == nil {
		return zero, ctxErr
	}
	if last == nil {
		last = err
	}
	for _, hook := range p.Hooks {
		hook.OnRetryFailure(ctx, p.Service, last, attempts, time.Since(started))
	}
	if ctx.Err() != nil {
		return zero, fmt.Errorf("%s: %w", p.Service, ctx.Err())
	}
	if !p.Retryable(last) {
		return zero, last
	}
	return zero, &domain.ExhaustedError{Service: p.Service, Attempts: int(attempts), Last: last}
}

// runAttempt executes one call under the per-attempt timeout. A deadline hit by the attempt
// itself, not the caller, is reported as a transient network failure.
func runAttempt[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.Timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	result, err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		var svcErr *domain.ServiceError
		if !errors.As(err, &svcErr) {
			err = &domain.ServiceError{
				Service: p.Service,
				Code:    domain.CodeNetworkError,
				Err:     fmt.Errorf("timed out after %s: %w", p.Timeout, err),
			}
		}
	}
	return result, err
}
