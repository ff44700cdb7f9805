// Package middleware provides HTTP middleware components for the Reserva API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type (
	// RateLimiter decides whether a request from the given client should be
	// allowed. Implementations may use in-memory token buckets (single-node
	// deployment) or a distributed store.
	//
	// clientID is the authenticated user id when available, otherwise the
	// caller's remote address.
	RateLimiter interface {
		Allow(clientID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with golang.org/x/time/rate
	// token buckets: one global bucket plus one bucket per client. Idle
	// client buckets are evicted by a background cleanup goroutine.
	InMemoryRateLimiter struct {
		global    *rate.Limiter
		perClient map[string]*clientLimiter
		mu        sync.Mutex
		done      chan struct{}

		clientRPS       int
		clientBurst     int
		maxClients      int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
	}

	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
	}
)

// NewInMemoryRateLimiter creates an in-memory rate limiter from config.
// Close must be called to stop the cleanup goroutine.
func NewInMemoryRateLimiter(config *RateLimitConfig) *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), config.GlobalRPS*burstMultiplier),
		perClient:       make(map[string]*clientLimiter),
		done:            make(chan struct{}),
		clientRPS:       config.ClientRPS,
		clientBurst:     config.ClientRPS * burstMultiplier,
		maxClients:      config.MaxClients,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks the global bucket first, then the per-client bucket.
func (rl *InMemoryRateLimiter) Allow(clientID string) bool {
	if !rl.global.Allow() {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.perClient[clientID]
	if !ok {
		// Refuse new clients instead of growing without bound.
		if len(rl.perClient) >= rl.maxClients {
			return false
		}

		client = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.clientRPS), rl.clientBurst)}
		rl.perClient[clientID] = client
	}

	client.lastAccess = time.Now()

	return client.limiter.Allow()
}

// Close stops the background cleanup goroutine.
func (rl *InMemoryRateLimiter) Close() error {
	close(rl.done)

	return nil
}

func (rl *InMemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *InMemoryRateLimiter) evictIdle() {
	cutoff := time.Now().Add(-rl.idleTimeout)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, client := range rl.perClient {
		if client.lastAccess.Before(cutoff) {
			delete(rl.perClient, id)
		}
	}
}

// RateLimit creates a middleware that applies the limiter to every request.
// Authenticated requests are keyed by user id, anonymous ones by remote host.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r)

			if !limiter.Allow(clientID) {
				logger.Warn("Request rate limited",
					slog.String("client_id", clientID),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", GetCorrelationID(r.Context())),
				)

				envelope := map[string]any{
					"error": map[string]any{
						"code":   "RATE_LIMITED",
						"reason": "too many requests",
					},
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				if err := json.NewEncoder(w).Encode(envelope); err != nil {
					logger.Error("Failed to encode rate limit response", slog.String("error", err.Error()))
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if actor := GetActor(r.Context()); actor != nil {
		return actor.UserID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
