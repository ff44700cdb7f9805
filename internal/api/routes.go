// Package api provides the HTTP command transport for the Reserva service.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/reserva-io/reserva/internal/api/middleware"
	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/idempotency"
)

const expectedURLParts = 2

// Route represents an HTTP route configuration with a path and handler.
type Route struct {
	Path    string
	Handler http.HandlerFunc
}

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Routes reachable without a bearer token: health probe and the
	// identity endpoints that create or prove an identity.
	s.registerPublicRoutes(
		mux,
		Route{"GET /healthz", s.handleHealthz},
		Route{"POST /api/users/bootstrap-admin", s.handleBootstrapAdmin},
		Route{"POST /api/users/register", s.handleRegisterUser},
		Route{"POST /api/users/login", s.handleLoginUser},
		Route{"/", s.handleNotFound}, // Catch-all handler for 404 responses
	)

	// Authenticated command endpoints
	mux.HandleFunc("POST /api/resources", s.handleCreateResource)
	mux.HandleFunc("PUT /api/resources/{id}", s.handleUpdateResource)
	mux.HandleFunc("POST /api/resources/{id}/reservations", s.handleCreateReservation)
	mux.HandleFunc("POST /api/resources/{id}/reservations/{reservationId}/cancel", s.handleCancelReservation)
}

// registerPublicRoutes registers HTTP routes that bypass bearer authentication.
// Never register resource or reservation endpoints here.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	validHTTPMethods := map[string]bool{
		"GET":    true,
		"POST":   true,
		"PUT":    true,
		"PATCH":  true,
		"DELETE": true,
	}

	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		// Strip the method prefix: mux patterns are "POST /path" but
		// r.URL.Path at request time is just "/path".
		path := route.Path

		parts := strings.Fields(path)
		if len(parts) == expectedURLParts && validHTTPMethods[parts[0]] {
			path = strings.TrimSpace(parts[1])
		}

		if path == "" {
			s.logger.Warn("Malformed route path detected, ignoring route", slog.String("path", route.Path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

// handleHealthz returns basic liveness information.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	s.writeJSON(w, r, http.StatusOK, HealthStatus{
		Status:      "healthy",
		ServiceName: "reserva",
		Uptime:      uptime,
	})
}

// handleNotFound returns the error envelope for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, s.logger, ErrorBody{
		Code:   domain.CodeResourceNotFound,
		Reason: "the requested endpoint does not exist",
	})
}

// writeJSON writes a JSON response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteError(w, r, s.logger, ErrorBody{Code: CodeInternalError, Reason: "failed to encode response"})

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// decodeCommand reads the command envelope, checks the discriminator against
// the route's expected type, and decodes the payload. It writes the error
// response itself and reports success to the caller.
func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request, wantType string, payload any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var envelope CommandEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   domain.CodeInvalidRequest,
			Reason: "request body is not a valid command envelope",
		})

		return false
	}

	if envelope.Command.Type != wantType {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   domain.CodeInvalidRequest,
			Reason: "unexpected command type for this endpoint",
			Meta:   map[string]any{"expected": wantType, "got": envelope.Command.Type},
		})

		return false
	}

	if err := json.Unmarshal(envelope.Command.Payload, payload); err != nil {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   domain.CodeInvalidRequest,
			Reason: "command payload does not match the command type",
		})

		return false
	}

	return true
}

// runGated executes a mutating command under the idempotency gate and writes
// the (possibly replayed) response.
func (s *Server) runGated(
	w http.ResponseWriter,
	r *http.Request,
	content idempotency.Content,
	run func(ctx context.Context) (idempotency.Response, error),
) {
	key := r.Header.Get("Idempotency-Key")

	response, err := s.deps.Gate.Execute(r.Context(), key, content, run)
	if err != nil {
		WriteFailure(w, r, s.logger, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	if _, err := w.Write(response.Body); err != nil {
		s.logger.Error("Failed to write command response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
