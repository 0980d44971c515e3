package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/sandboxbot/internal/logger"
)

// HostLimiter keeps one token bucket per host so concurrent searches do not
// hammer the same surface.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewHostLimiter allows rps requests per second per host. rps <= 0 disables limiting.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      limit,
		burst:    burst,
	}
}

// Wait blocks until host may be contacted or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil {
		return nil
	}
	return l.get(host).Wait(ctx)
}

func (l *HostLimiter) get(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	return lim
}

// DailyBudget counts paid API calls per service and resets every 24h.
type DailyBudget struct {
	mu        sync.Mutex
	used      map[string]int
	total     int
	maxTotal  int
	resetTime time.Time
	now       func() time.Time
}

// NewDailyBudget creates a budget of maxTotal calls per day (0 = unlimited).
func NewDailyBudget(maxTotal int) *DailyBudget {
	return newDailyBudget(maxTotal, time.Now)
}

func newDailyBudget(maxTotal int, now func() time.Time) *DailyBudget {
	return &DailyBudget{
		used:      make(map[string]int),
		maxTotal:  maxTotal,
		resetTime: now().Add(24 * time.Hour),
		now:       now,
	}
}

// Use reserves one call for service.
func (b *DailyBudget) Use(service string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.maxTotal > 0 && b.total >= b.maxTotal {
		logger.Warn("AI budget exhausted", "service", service, "used", b.total, "limit", b.maxTotal)
		return fmt.Errorf("daily AI budget exceeded (%d/%d)", b.total, b.maxTotal)
	}

	b.used[service]++
	b.total++
	logger.Debug("AI usage", "service", service, "service_used", b.used[service], "total", b.total, "limit", b.maxTotal)
	return nil
}

// GetStats returns current usage counters.
func (b *DailyBudget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := map[string]interface{}{
		"total_used":  b.total,
		"total_limit": b.maxTotal,
		"reset_time":  b.resetTime,
	}
	for svc, n := range b.used {
		stats[svc+"_used"] = n
	}
	return stats
}

// checkReset resets counters if reset time has passed
func (b *DailyBudget) checkReset() {
	if b.now().After(b.resetTime) {
		logger.Info("Resetting AI budget counters", "total_used", b.total)
		b.used = make(map[string]int)
		b.total = 0
		b.resetTime = b.now().Add(24 * time.Hour)
	}
}
