package wsinterface

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// originLimiter applies a token bucket per page origin and evicts origins
// that have been idle for a while. A nil limiter allows everything.
type originLimiter struct {
	limit rate.Limit
	burst int

	lock     sync.Mutex
	byOrigin map[string]*limiterEntry
	hits     uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newOriginLimiter(rps float64, burst int) *originLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &originLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		byOrigin: make(map[string]*limiterEntry),
	}
}

func (l *originLimiter) allow(origin string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	e, ok := l.byOrigin[origin]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byOrigin[origin] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byOrigin {
			if v.lastSeen.Before(cutoff) {
				delete(l.byOrigin, k)
			}
		}
	}
	return allowed
}
