package domain

import "time"

// Reservation is one reservation inside a resource aggregate. Reservations
// exist only inside their owning resource stream.
type Reservation struct {
	ReservationID  string     `json:"reservationId"`
	UserID         string     `json:"userId"`
	FromUTC        time.Time  `json:"fromUtc"`
	ToUTC          time.Time  `json:"toUtc"`
	Status         string     `json:"status"`
	CreatedAtUTC   time.Time  `json:"createdAtUtc"`
	CancelledAtUTC *time.Time `json:"cancelledAtUtc"`
}

// ResourceState is the folded state of a resource stream. A nil
// *ResourceState means the stream has no events yet.
type ResourceState struct {
	ResourceID   string        `json:"resourceId"`
	Name         string        `json:"name"`
	Details      string        `json:"details"`
	Status       string        `json:"status"`
	Reservations []Reservation `json:"reservations"`
}

// Resource commands. Now is carried on the time-sensitive commands so the
// decider stays deterministic.

// CreateResource creates a resource aggregate. Admin only.
type CreateResource struct {
	ResourceID string
	Name       string
	Details    string
	ActorRole  string
}

// UpdateResourceMetadata updates name and details. Admin only.
type UpdateResourceMetadata struct {
	Name      string
	Details   string
	ActorRole string
}

// CreateReservationInResource adds a reservation to the resource.
type CreateReservationInResource struct {
	ReservationID string
	UserID        string
	FromUTC       time.Time
	ToUTC         time.Time
	Now           time.Time
}

// CancelReservationInResource cancels a reservation. Allowed for the
// reservation owner and for admins.
type CancelReservationInResource struct {
	ReservationID string
	ActorUserID   string
	ActorRole     string
	Now           time.Time
}

// Overlaps reports whether two half-open intervals [aFrom, aTo) and
// [bFrom, bTo) intersect: aFrom < bTo && bFrom < aTo.
func Overlaps(aFrom, aTo, bFrom, bTo time.Time) bool {
	return aFrom.Before(bTo) && bFrom.Before(aTo)
}

// FoldResource applies one event to a resource state. It is total and
// deterministic; unrecognized kinds fold as identity.
func FoldResource(state *ResourceState, evt Event) *ResourceState {
	switch payload := evt.Payload.(type) {
	case ResourceCreatedPayload:
		return &ResourceState{
			ResourceID:   payload.ResourceID,
			Name:         payload.Name,
			Details:      payload.Details,
			Status:       payload.Status,
			Reservations: []Reservation{},
		}

	case ResourceMetadataUpdatedPayload:
		if state == nil {
			return state
		}

		next := *state
		next.Name = payload.Name
		next.Details = payload.Details

		return &next

	case ReservationAddedPayload:
		if state == nil {
			return state
		}

		next := *state
		next.Reservations = append(append([]Reservation{}, state.Reservations...), Reservation{
			ReservationID: payload.ReservationID,
			UserID:        payload.UserID,
			FromUTC:       payload.FromUTC,
			ToUTC:         payload.ToUTC,
			Status:        payload.Status,
			CreatedAtUTC:  payload.CreatedAtUTC,
		})

		return &next

	case ReservationCancelledPayload:
		if state == nil {
			return state
		}

		next := *state
		next.Reservations = append([]Reservation{}, state.Reservations...)

		for i := range next.Reservations {
			if next.Reservations[i].ReservationID == payload.ReservationID {
				cancelledAt := payload.CancelledAtUTC
				next.Reservations[i].Status = ReservationStatusCancelled
				next.Reservations[i].CancelledAtUTC = &cancelledAt

				break
			}
		}

		return &next

	default:
		return state
	}
}

// DecideResource evaluates a resource command against the current state and
// returns either the accepted event or a rejection.
func DecideResource(state *ResourceState, cmd any) (Event, *Error) {
	switch c := cmd.(type) {
	case CreateResource:
		if c.ActorRole != RoleAdmin {
			return Event{}, NewError(CodeForbidden, "only admins can create resources")
		}

		if state != nil {
			return Event{}, NewError(CodeResourceAlreadyExists, "resource already exists")
		}

		return Event{Kind: KindResourceCreated, Payload: ResourceCreatedPayload{
			ResourceID: c.ResourceID,
			Name:       c.Name,
			Details:    c.Details,
			Status:     "active",
		}}, nil

	case UpdateResourceMetadata:
		if c.ActorRole != RoleAdmin {
			return Event{}, NewError(CodeForbidden, "only admins can update resources")
		}

		if state == nil {
			return Event{}, NewError(CodeResourceNotFound, "resource not found")
		}

		return Event{Kind: KindResourceMetadataUpdated, Payload: ResourceMetadataUpdatedPayload{
			Name:    c.Name,
			Details: c.Details,
		}}, nil

	case CreateReservationInResource:
		if state == nil {
			return Event{}, NewError(CodeResourceNotFound, "resource not found")
		}

		// Validation order is part of the contract: interval shape, then
		// past check, then overlap.
		if !c.FromUTC.Before(c.ToUTC) {
			return Event{}, NewError(CodeInvalidInterval, "fromUtc must be before toUtc")
		}

		if c.FromUTC.Before(c.Now) {
			return Event{}, NewError(CodeReservationInPast, "reservation starts in the past")
		}

		for _, r := range state.Reservations {
			if r.Status != ReservationStatusActive {
				continue
			}

			if Overlaps(c.FromUTC, c.ToUTC, r.FromUTC, r.ToUTC) {
				return Event{}, NewError(CodeReservationOverlap, "reservation overlaps an active reservation").
					WithMeta(map[string]any{"conflictingReservationId": r.ReservationID})
			}
		}

		return Event{Kind: KindReservationAddedToResource, Payload: ReservationAddedPayload{
			ReservationID: c.ReservationID,
			UserID:        c.UserID,
			FromUTC:       c.FromUTC,
			ToUTC:         c.ToUTC,
			Status:        ReservationStatusActive,
			CreatedAtUTC:  c.Now,
		}}, nil

	case CancelReservationInResource:
		if state == nil {
			return Event{}, NewError(CodeResourceNotFound, "resource not found")
		}

		var target *Reservation

		for i := range state.Reservations {
			if state.Reservations[i].ReservationID == c.ReservationID {
				target = &state.Reservations[i]

				break
			}
		}

		if target == nil {
			return Event{}, NewError(CodeReservationNotFound, "reservation not found")
		}

		if target.Status == ReservationStatusCancelled {
			return Event{}, NewError(CodeReservationAlreadyCancelled, "reservation already cancelled")
		}

		if c.ActorRole != RoleAdmin && c.ActorUserID != target.UserID {
			return Event{}, NewError(CodeUnauthorizedCancel, "only the owner or an admin can cancel")
		}

		return Event{Kind: KindResourceReservationCancelled, Payload: ReservationCancelledPayload{
			ReservationID:  c.ReservationID,
			CancelledBy:    c.ActorUserID,
			CancelledAtUTC: c.Now,
		}}, nil

	default:
		return Event{}, NewError(CodeInvalidRequest, "unknown resource command")
	}
}
