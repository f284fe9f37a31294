package web

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterSet hands out one token bucket per user. Idle buckets expire so the
// set does not grow with every user that ever fused something.
type limiterSet struct {
	mu       sync.Mutex
	limiters *cache.Cache
	every    rate.Limit
	burst    int
}

func newLimiterSet(interval time.Duration, burst int) *limiterSet {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	idle := interval * time.Duration(burst) * 2
	if idle < time.Minute {
		idle = time.Minute
	}
	return &limiterSet{
		limiters: cache.New(idle, 5*time.Minute),
		every:    rate.Every(interval),
		burst:    burst,
	}
}

func (l *limiterSet) Allow(userID int64) bool {
	key := strconv.FormatInt(userID, 10)

	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.every, l.burst)
	}
	l.limiters.SetDefault(key, lim)
	l.mu.Unlock()

	return lim.Allow()
}
