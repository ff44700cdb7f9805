// Package middleware provides HTTP middleware components for the Reserva API.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/reserva-io/reserva/internal/auth"
)

const bearerPrefix = "Bearer "

// actorKey is the context key for the authenticated actor.
type actorKey struct{}

// publicEndpoints holds URL paths that bypass bearer authentication.
// Registered once during route setup, read on every request.
var (
	publicEndpoints   = make(map[string]struct{})
	publicEndpointsMu sync.RWMutex
)

// RegisterPublicEndpoint marks a URL path as reachable without a bearer
// token. Only use this for health probes and the unauthenticated identity
// endpoints (register, login, bootstrap).
func RegisterPublicEndpoint(path string) {
	publicEndpointsMu.Lock()
	defer publicEndpointsMu.Unlock()

	publicEndpoints[path] = struct{}{}
}

func isPublicEndpoint(path string) bool {
	publicEndpointsMu.RLock()
	defer publicEndpointsMu.RUnlock()

	_, ok := publicEndpoints[path]

	return ok
}

// BearerAuth creates a middleware that authenticates requests with a JWT
// bearer token. Public endpoints pass through untouched; everything else
// must carry a valid token, whose actor is stored on the request context.
func BearerAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)

				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeUnauthorized(w, logger, GetCorrelationID(r.Context()), "missing bearer token")

				return
			}

			actor, err := verifier.Verify(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				logger.Warn("Bearer token rejected",
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", GetCorrelationID(r.Context())),
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, logger, GetCorrelationID(r.Context()), "invalid bearer token")

				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor extracts the authenticated actor from the request context, or nil
// when the request was unauthenticated (public endpoint).
func GetActor(ctx context.Context) *auth.Actor {
	if actor, ok := ctx.Value(actorKey{}).(*auth.Actor); ok {
		return actor
	}

	return nil
}

func writeUnauthorized(w http.ResponseWriter, logger *slog.Logger, correlationID, reason string) {
	envelope := map[string]any{
		"error": map[string]any{
			"code":   "UNAUTHORIZED",
			"reason": reason,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logger.Error("Failed to encode unauthorized response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}
