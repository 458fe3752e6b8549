package address

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a process-wide token bucket guarding outbound existence
// checks. It never blocks: a denied caller degrades instead of waiting.
type RateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

type LimiterOption func(*RateLimiter)

// WithLimiterClock overrides the time source used to refill tokens.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *RateLimiter) {
		l.now = now
	}
}

// NewRateLimiter builds a limiter refilling ratePerSecond tokens per second up
// to burst.
func NewRateLimiter(ratePerSecond float64, burst int, opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryAcquire takes one token if available.
func (l *RateLimiter) TryAcquire() bool {
	return l.limiter.AllowN(l.now(), 1)
}
