package usecase

import (
	"context"
	"time"

	"ShortsPublisher/internal/config"
	"ShortsPublisher/internal/domain"
)

// RetryPolicy retries a stage function with exponential backoff. Only errors
// classified as retryable consume additional attempts; everything else
// returns immediately.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy from a stage's configured budget.
func NewRetryPolicy(cfg config.RetryPolicyConfig) RetryPolicy {
	policy := RetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay(),
		maxDelay:    cfg.MaxDelay(),
	}
	if policy.maxAttempts <= 0 {
		policy.maxAttempts = 1
	}
	if policy.baseDelay <= 0 {
		policy.baseDelay = time.Second
	}
	if policy.maxDelay < policy.baseDelay {
		policy.maxDelay = policy.baseDelay
	}
	return policy
}

// Do runs fn up to the attempt budget. The attempt number passed to fn
// starts at 1.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	delay := p.baseDelay

	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !domain.KindOf(err).Retryable() {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}
	return err
}
