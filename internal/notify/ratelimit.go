package notify

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter wraps a token bucket so webhook calls never exceed what the
// remote service allows.
type limiter struct {
	l *rate.Limiter
}

func newLimiter(requestsPerSecond float64, burst int) *limiter {
	return &limiter{l: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

func (l *limiter) allow(ctx context.Context) error {
	return l.l.Wait(ctx)
}
