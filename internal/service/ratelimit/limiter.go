package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled is returned by Wait when the next token arrives after the
// context deadline.
var ErrThrottled = errors.New("rate limit exceeded")

// Limiter keeps one token bucket per key, typically one key per exchange host.
type Limiter struct {
	limit rate.Limit
	burst int

	mu  sync.Mutex
	m   map[string]*rate.Limiter
	now func() time.Time
}

// New builds a limiter allowing bursts of burst calls and perSec calls per
// second on average. A non-positive rate disables limiting.
func New(burst int, perSec float64) *Limiter {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		limit: limit,
		burst: max(burst, 1),
		m:     make(map[string]*rate.Limiter),
		now:   time.Now,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.m[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = lim
	}
	return lim
}

// Allow reports whether a token for key is available now and consumes it.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.get(key).AllowN(l.now(), 1)
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	if err := l.get(key).Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", ErrThrottled, key, err)
	}
	return nil
}
