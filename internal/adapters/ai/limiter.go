package ai

import (
	"context"

	"golang.org/x/time/rate"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

// Limiter throttles outgoing requests for one provider.
type Limiter struct {
	provider resolution.ProviderName
	limiter  *rate.Limiter
}

// NewLimiter creates a per-provider limiter from a requests-per-minute budget.
func NewLimiter(provider resolution.ProviderName, reqPerMinute float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
	}
}

// Wait blocks until a slot is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(errors.ErrRateLimitExceeded, "%s: %v", l.provider, err)
	}
	return nil
}
