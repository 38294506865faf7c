package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// MailLimiter is a token bucket shared by every outbound transmission,
// whichever path (consumer or manual send) produced it.
// Burst equals the rate so idle periods cannot save up extra capacity.
type MailLimiter struct {
	limiter *rate.Limiter
}

// New creates a MailLimiter allowing ratePerSec transmissions per second.
func New(ratePerSec int) *MailLimiter {
	return &MailLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Wait blocks until a token is available.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (l *MailLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
