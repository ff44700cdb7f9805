// Package api provides the HTTP command transport for the Reserva service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reserva-io/reserva/internal/api/middleware"
	"github.com/reserva-io/reserva/internal/auth"
	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/idempotency"
	"github.com/reserva-io/reserva/internal/runner"
)

// requireActor resolves the authenticated actor or writes an UNAUTHORIZED
// response. The auth middleware normally guarantees an actor on these
// routes; this also covers configurations with authentication disabled.
func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) *auth.Actor {
	actor := middleware.GetActor(r.Context())
	if actor == nil {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   CodeUnauthorized,
			Reason: "authentication required",
		})

		return nil
	}

	return actor
}

// handleCreateResource creates a reservable resource. Admin only (enforced
// by the decider); resource names are unique across the read side.
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(w, r)
	if actor == nil {
		return
	}

	var payload CreateResourcePayload
	if !s.decodeCommand(w, r, commandCreateResource, &payload) {
		return
	}

	if strings.TrimSpace(payload.Name) == "" {
		WriteError(w, r, s.logger, ErrorBody{Code: domain.CodeInvalidRequest, Reason: "resource name must not be empty"})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload, Actor: actor.UserID}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		if err := s.checkResourceNameFree(ctx, payload.Name, ""); err != nil {
			return idempotency.Response{}, err
		}

		resourceID := uuid.NewString()

		result, err := runner.Execute(ctx, s.deps.Runner, runner.ResourceAggregate, runner.Command[*domain.ResourceState]{
			StreamID:    resourceID,
			Name:        commandCreateResource,
			ActorUserID: actor.UserID,
			Decide: func(state *domain.ResourceState) (domain.Event, *domain.Error) {
				return domain.DecideResource(state, domain.CreateResource{
					ResourceID: resourceID,
					Name:       payload.Name,
					Details:    payload.Details,
					ActorRole:  actor.Role,
				})
			},
		})
		if err != nil {
			return idempotency.Response{}, err
		}

		return resourceResponse(http.StatusCreated, result)
	})
}

// handleUpdateResource replaces a resource's name and details. Admin only.
func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(w, r)
	if actor == nil {
		return
	}

	resourceID := r.PathValue("id")

	var payload UpdateResourcePayload
	if !s.decodeCommand(w, r, commandUpdateResource, &payload) {
		return
	}

	if strings.TrimSpace(payload.Name) == "" {
		WriteError(w, r, s.logger, ErrorBody{Code: domain.CodeInvalidRequest, Reason: "resource name must not be empty"})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload, Actor: actor.UserID}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		if err := s.checkResourceNameFree(ctx, payload.Name, resourceID); err != nil {
			return idempotency.Response{}, err
		}

		result, err := runner.Execute(ctx, s.deps.Runner, runner.ResourceAggregate, runner.Command[*domain.ResourceState]{
			StreamID:    resourceID,
			Name:        commandUpdateResource,
			ActorUserID: actor.UserID,
			Decide: func(state *domain.ResourceState) (domain.Event, *domain.Error) {
				return domain.DecideResource(state, domain.UpdateResourceMetadata{
					Name:      payload.Name,
					Details:   payload.Details,
					ActorRole: actor.Role,
				})
			},
		})
		if err != nil {
			return idempotency.Response{}, err
		}

		return resourceResponse(http.StatusOK, result)
	})
}

// handleCreateReservation reserves an interval on the resource in the URL
// for the authenticated actor.
func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(w, r)
	if actor == nil {
		return
	}

	resourceID := r.PathValue("id")

	var payload CreateReservationPayload
	if !s.decodeCommand(w, r, commandCreateReservation, &payload) {
		return
	}

	if payload.FromUTC.IsZero() || payload.ToUTC.IsZero() {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   domain.CodeInvalidRequest,
			Reason: "fromUtc and toUtc must be RFC 3339 timestamps",
		})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload, Actor: actor.UserID}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		reservationID := uuid.NewString()

		result, err := runner.Execute(ctx, s.deps.Runner, runner.ResourceAggregate, runner.Command[*domain.ResourceState]{
			StreamID:    resourceID,
			Name:        commandCreateReservation,
			ActorUserID: actor.UserID,
			Decide: func(state *domain.ResourceState) (domain.Event, *domain.Error) {
				return domain.DecideResource(state, domain.CreateReservationInResource{
					ReservationID: reservationID,
					UserID:        actor.UserID,
					FromUTC:       payload.FromUTC.UTC(),
					ToUTC:         payload.ToUTC.UTC(),
					Now:           time.Now().UTC(),
				})
			},
		})
		if err != nil {
			return idempotency.Response{}, err
		}

		reservation := findReservation(result.State, reservationID)
		if reservation == nil {
			return idempotency.Response{}, fmt.Errorf("reservation %s missing from folded state", reservationID)
		}

		body, err := json.Marshal(ReservationResponse{
			ReservationID: reservation.ReservationID,
			ResourceID:    result.State.ResourceID,
			UserID:        reservation.UserID,
			FromUTC:       reservation.FromUTC,
			ToUTC:         reservation.ToUTC,
			Status:        reservation.Status,
			CreatedAtUTC:  reservation.CreatedAtUTC,
		})
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to encode reservation response: %w", err)
		}

		return idempotency.Response{StatusCode: http.StatusCreated, Body: body}, nil
	})
}

// handleCancelReservation cancels a reservation. The decider allows the
// reservation owner and admins.
func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	actor := s.requireActor(w, r)
	if actor == nil {
		return
	}

	resourceID := r.PathValue("id")
	reservationID := r.PathValue("reservationId")

	content := idempotency.Content{Path: r.URL.Path, Actor: actor.UserID}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		result, err := runner.Execute(ctx, s.deps.Runner, runner.ResourceAggregate, runner.Command[*domain.ResourceState]{
			StreamID:    resourceID,
			Name:        commandCancelReservation,
			ActorUserID: actor.UserID,
			Decide: func(state *domain.ResourceState) (domain.Event, *domain.Error) {
				return domain.DecideResource(state, domain.CancelReservationInResource{
					ReservationID: reservationID,
					ActorUserID:   actor.UserID,
					ActorRole:     actor.Role,
					Now:           time.Now().UTC(),
				})
			},
		})
		if err != nil {
			return idempotency.Response{}, err
		}

		reservation := findReservation(result.State, reservationID)
		if reservation == nil || reservation.CancelledAtUTC == nil {
			return idempotency.Response{}, fmt.Errorf("reservation %s missing from folded state", reservationID)
		}

		body, err := json.Marshal(CancelResponse{
			ReservationID:  reservation.ReservationID,
			ResourceID:     result.State.ResourceID,
			Status:         reservation.Status,
			CancelledBy:    actor.UserID,
			CancelledAtUTC: *reservation.CancelledAtUTC,
		})
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to encode cancel response: %w", err)
		}

		return idempotency.Response{StatusCode: http.StatusOK, Body: body}, nil
	})
}

// checkResourceNameFree rejects a name already held by a different resource.
// Read-side check: it closes the common race cheaply, while the aggregate
// stream stays the real guard for its own invariants.
func (s *Server) checkResourceNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.deps.Reads.FindResourceByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check resource name uniqueness: %w", err)
	}

	if existing != nil && existing.ResourceID != selfID {
		return domain.NewError(CodeResourceNameTaken, "resource name is already in use").
			WithMeta(map[string]any{"resourceId": existing.ResourceID})
	}

	return nil
}

func resourceResponse(status int, result *runner.Result[*domain.ResourceState]) (idempotency.Response, error) {
	body, err := json.Marshal(ResourceResponse{
		ResourceID: result.State.ResourceID,
		Name:       result.State.Name,
		Details:    result.State.Details,
		Status:     result.State.Status,
		Version:    result.Event.Version,
	})
	if err != nil {
		return idempotency.Response{}, fmt.Errorf("failed to encode resource response: %w", err)
	}

	return idempotency.Response{StatusCode: status, Body: body}, nil
}

func findReservation(state *domain.ResourceState, reservationID string) *domain.Reservation {
	for i := range state.Reservations {
		if state.Reservations[i].ReservationID == reservationID {
			return &state.Reservations[i]
		}
	}

	return nil
}
