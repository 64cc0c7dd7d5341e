package httpapi

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantLimiter hands out one token bucket per tenant so a busy store cannot
// starve the others. Idle buckets are dropped on access rather than by a
// background goroutine.
type TenantLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	entryTTL  time.Duration
	lastSweep time.Time
	limiters  map[string]*limiterEntry
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantLimiter returns nil when perSecond is not positive, which
// disables limiting.
func NewTenantLimiter(perSecond float64, burst int) *TenantLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		entryTTL: 10 * time.Minute,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *TenantLimiter) Allow(tenantID string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.entryTTL {
		for key, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > l.entryTTL {
				delete(l.limiters, key)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[tenantID]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenantID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *TenantLimiter) burstHeader() string {
	return strconv.Itoa(l.burst)
}
