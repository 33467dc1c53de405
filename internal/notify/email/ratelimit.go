package email

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited indicates the recipient exhausted the sending window.
var ErrRateLimited = errors.New("email rate limit exceeded for recipient")

const (
	defaultRateLimit  = 100
	defaultRateWindow = time.Hour
)

// RateLimiter caps emails per recipient inside a sliding window. The zero
// value is not usable; construct with NewRateLimiter.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  func() time.Time
	sent   map[string][]time.Time
}

// NewRateLimiter constructs a per-recipient limiter. Non-positive limit or
// window fall back to 100 emails per hour.
func NewRateLimiter(limit int, window time.Duration, clock func() time.Time) *RateLimiter {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		sent:   make(map[string][]time.Time),
	}
}

// Allow records one send for the recipient, or reports ErrRateLimited when
// the window is full.
func (r *RateLimiter) Allow(recipient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	cutoff := now.Add(-r.window)
	recent := r.sent[recipient][:0]
	for _, at := range r.sent[recipient] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) >= r.limit {
		r.sent[recipient] = recent
		return ErrRateLimited
	}
	r.sent[recipient] = append(recent, now)
	return nil
}
