package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts extraction requests per client in fixed minute and hour
// windows. A limit of zero disables that window.
type RateLimiter struct {
	mu sync.Mutex

	perMinute int
	perHour   int

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
}

// NewRateLimiter creates a limiter with the given limits.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		clients:   make(map[string]*clientUsage),
		now:       time.Now,
	}
}

// Allow records a request from client, or returns a *RateLimitError without
// recording it when a window is full.
func (rl *RateLimiter) Allow(client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now}
		rl.clients[client] = u
	}
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}

	if rl.perMinute > 0 && u.minuteCount >= rl.perMinute {
		return &RateLimitError{Window: "minute", Limit: rl.perMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.perHour > 0 && u.hourCount >= rl.perHour {
		return &RateLimitError{Window: "hour", Limit: rl.perHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}

	u.minuteCount++
	u.hourCount++
	return nil
}

// Usage returns the requests counted for client in the current minute and hour.
func (rl *RateLimiter) Usage(client string) (minute, hour int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return u.minuteCount, u.hourCount
	}
	return 0, 0
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}
