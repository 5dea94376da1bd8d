package source

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter spaces out requests to the same host
type RateLimiter struct {
	mu           sync.Mutex
	lastRequest  map[string]time.Time // hostname -> last request attempt time
	defaultDelay time.Duration
	log          *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		lastRequest:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// ApplyDelay sleeps until minDelay (+/-10% jitter) has passed since the last
// request to host. Returns early when ctx is done.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, host string, minDelay time.Duration) {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return
	}

	rl.mu.Lock()
	last, exists := rl.lastRequest[host]
	rl.mu.Unlock()
	if !exists {
		return
	}

	elapsed := time.Since(last)
	if elapsed >= minDelay {
		return
	}
	sleep := withJitter(minDelay - elapsed)
	if sleep <= 0 {
		return
	}

	rl.log.WithFields(logrus.Fields{
		"host": host, "sleep": sleep, "required_delay": minDelay, "elapsed": elapsed,
	}).Debug("Rate limit applying sleep")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// UpdateLastRequestTime records now as the last request time for host.
// Call after the request attempt.
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.mu.Lock()
	rl.lastRequest[host] = time.Now()
	rl.mu.Unlock()
}
