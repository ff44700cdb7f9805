package projection

import (
	"fmt"

	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/eventstore"
)

// Project maps one recorded event to its ordered list of projection ops.
// Events the projection does not care about (telemetry, unknown kinds) map
// to an empty list.
func Project(event eventstore.RecordedEvent) ([]Op, error) {
	decoded, err := domain.DecodeEvent(event.Type, event.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", event.EventID, err)
	}

	switch payload := decoded.Payload.(type) {
	case domain.UserCreatedPayload:
		role := payload.Role
		if decoded.Kind == domain.KindAdminBootstrapped {
			role = domain.RoleAdmin
		}

		return []Op{PutUser{Row: UserRow{
			UserID:       payload.UserID,
			Email:        payload.Email,
			Role:         role,
			CreatedAtUTC: event.OccurredAtUTC,
		}}}, nil

	case domain.UserLoggedInPayload:
		return []Op{SetUserLastLogin{
			UserID:         payload.UserID,
			LastLoginAtUTC: event.OccurredAtUTC,
		}}, nil

	case domain.ResourceCreatedPayload:
		return []Op{PutResource{Row: ResourceRow{
			ResourceID:   payload.ResourceID,
			Name:         payload.Name,
			Details:      payload.Details,
			Status:       payload.Status,
			CreatedAtUTC: event.OccurredAtUTC,
			UpdatedAtUTC: event.OccurredAtUTC,
		}}}, nil

	case domain.ResourceMetadataUpdatedPayload:
		return []Op{UpdateResourceDetails{
			ResourceID:   event.StreamID,
			Name:         payload.Name,
			Details:      payload.Details,
			UpdatedAtUTC: event.OccurredAtUTC,
		}}, nil

	case domain.ReservationAddedPayload:
		return []Op{PutReservation{Row: ReservationRow{
			ReservationID: payload.ReservationID,
			ResourceID:    event.StreamID,
			UserID:        payload.UserID,
			FromUTC:       payload.FromUTC,
			ToUTC:         payload.ToUTC,
			Status:        domain.ReservationStatusActive,
			CreatedAtUTC:  payload.CreatedAtUTC,
		}}}, nil

	case domain.ReservationCancelledPayload:
		return []Op{CancelReservation{
			ReservationID:  payload.ReservationID,
			CancelledAtUTC: payload.CancelledAtUTC,
		}}, nil

	default:
		return nil, nil
	}
}
