package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleClientTTL is how long an unused client limiter is kept.
const idleClientTTL = 10 * time.Minute

// ClientRateLimiter manages one token bucket per client.
type ClientRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rps        rate.Limit
	burst      int
	lastSweep  time.Time
}

// NewClientRateLimiter returns nil when rps is not positive, which disables
// limiting.
func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rps:        rate.Limit(rps),
		burst:      burst,
		lastSweep:  time.Now(),
	}
}

// Allow reports whether client may make a request now.
func (r *ClientRateLimiter) Allow(client string) bool {
	r.mu.Lock()
	now := time.Now()
	limiter, exists := r.limiters[client]
	if !exists {
		limiter = rate.NewLimiter(r.rps, r.burst)
		r.limiters[client] = limiter
	}
	r.lastAccess[client] = now
	if now.Sub(r.lastSweep) > idleClientTTL {
		r.sweep(now)
	}
	r.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Clients returns how many clients are being tracked.
func (r *ClientRateLimiter) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// sweep must be called with mu held.
func (r *ClientRateLimiter) sweep(now time.Time) {
	for client, last := range r.lastAccess {
		if now.Sub(last) > idleClientTTL {
			delete(r.lastAccess, client)
			delete(r.limiters, client)
		}
	}
	r.lastSweep = now
}
