package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter hands out one token-bucket limiter per review target so a burst of
// comments against one PR cannot starve API calls against another. Entries
// idle past the ttl are pruned lazily.
type Limiter struct {
	mu         sync.Mutex
	limiters   map[string]*limiterEntry
	rps        rate.Limit
	burst      int
	ttl        time.Duration
	lastPruned time.Time
}

// New builds a keyed limiter allowing rps sustained requests with the given
// burst per key.
func New(rps int, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      30 * time.Minute,
	}
}

// Get returns the limiter for a target key such as "owner/repo#42",
// creating it on first use.
func (l *Limiter) Get(target string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.pruneLocked(now)

	if entry, ok := l.limiters[target]; ok {
		entry.lastUsed = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.rps, l.burst)
	l.limiters[target] = &limiterEntry{
		limiter:  limiter,
		lastUsed: now,
	}
	return limiter
}

func (l *Limiter) pruneLocked(now time.Time) {
	if !l.lastPruned.IsZero() && now.Sub(l.lastPruned) < time.Minute {
		return
	}

	for target, entry := range l.limiters {
		if now.Sub(entry.lastUsed) > l.ttl {
			delete(l.limiters, target)
		}
	}
	l.lastPruned = now
}
