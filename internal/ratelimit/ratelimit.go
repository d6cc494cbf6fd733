// Package ratelimit paces outgoing requests per target host using a
// token-bucket limiter, so a scan with a configured requests-per-second
// ceiling does not hammer a single host from many worker goroutines.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter hands out one rate.Limiter per host, lazily created.
type HostLimiter struct {
	mu       sync.Mutex
	rps      float64
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter pacing every distinct host at rps
// requests per second. rps <= 0 means unlimited: Wait becomes a no-op.
func NewHostLimiter(rps float64) *HostLimiter {
	return &HostLimiter{
		rps:      rps,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a token is available for host, or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || h.rps <= 0 {
		return nil
	}
	return h.limiterFor(host).Wait(ctx)
}

func (h *HostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.rps), 1)
		h.limiters[host] = l
	}
	return l
}
