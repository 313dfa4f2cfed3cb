package utils

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket limiter used per websocket connection to cap
// inbound frame rate.
type RateLimiter struct {
	rate       int
	period     time.Duration
	tokens     int
	maxTokens  int
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		period:     period,
		tokens:     rate,
		maxTokens:  rate,
		lastRefill: time.Now(),
	}
}

// Allow reports whether another request fits under the limit, consuming a
// token when it does.
func (rl *RateLimiter) Allow() bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	refill := int(elapsed.Nanoseconds() * int64(rl.rate) / rl.period.Nanoseconds())
	if refill > 0 {
		rl.tokens += refill
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens currently available.
func (rl *RateLimiter) Remaining() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return rl.tokens
}
