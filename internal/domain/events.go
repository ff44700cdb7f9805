package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream types. Every aggregate instance lives in exactly one stream
// identified by (streamType, streamId).
const (
	StreamTypeUser     = "user"
	StreamTypeResource = "resource"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Reservation statuses.
const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
)

// Event kinds. The unions are tagged on these strings; deciders and the
// projector are total matches over the tag, folding unknown kinds as identity.
const (
	KindAdminBootstrapped             = "AdminBootstrapped"
	KindUserRegistered                = "UserRegistered"
	KindUserLoggedIn                  = "UserLoggedIn"
	KindResourceCreated               = "ResourceCreated"
	KindResourceMetadataUpdated       = "ResourceMetadataUpdated"
	KindReservationAddedToResource    = "ReservationAddedToResource"
	KindResourceReservationCancelled  = "ResourceReservationCancelled"
	KindConcurrencyConflictUnresolved = "ConcurrencyConflictUnresolved"
)

// Event is a domain event with its payload decoded into the matching typed
// struct. For kinds this package does not recognize, Payload is nil.
type Event struct {
	Kind    string
	Payload any
}

// UserCreatedPayload is the payload of AdminBootstrapped and UserRegistered.
// The password hash is produced by the KDF at the command-builder layer; the
// decider and fold treat it as opaque.
type UserCreatedPayload struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
}

// UserLoggedInPayload is the payload of UserLoggedIn. The event is
// state-preserving; it exists for the read side (last-login projection).
type UserLoggedInPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// ResourceCreatedPayload is the payload of ResourceCreated.
type ResourceCreatedPayload struct {
	ResourceID string `json:"resourceId"`
	Name       string `json:"name"`
	Details    string `json:"details"`
	Status     string `json:"status"`
}

// ResourceMetadataUpdatedPayload is the payload of ResourceMetadataUpdated.
type ResourceMetadataUpdatedPayload struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

// ReservationAddedPayload is the payload of ReservationAddedToResource.
type ReservationAddedPayload struct {
	ReservationID string    `json:"reservationId"`
	UserID        string    `json:"userId"`
	FromUTC       time.Time `json:"fromUtc"`
	ToUTC         time.Time `json:"toUtc"`
	Status        string    `json:"status"`
	CreatedAtUTC  time.Time `json:"createdAtUtc"`
}

// ReservationCancelledPayload is the payload of ResourceReservationCancelled.
type ReservationCancelledPayload struct {
	ReservationID  string    `json:"reservationId"`
	CancelledBy    string    `json:"cancelledBy"`
	CancelledAtUTC time.Time `json:"cancelledAtUtc"`
}

// ConflictUnresolvedPayload is the payload of the ConcurrencyConflictUnresolved
// telemetry event appended after the command runner exhausts its retries.
type ConflictUnresolvedPayload struct {
	ResourceID       string `json:"resourceId"`
	CommandName      string `json:"commandName"`
	ActorUserID      string `json:"actorUserId"`
	Attempts         int    `json:"attempts"`
	LastKnownVersion int64  `json:"lastKnownVersion"`
}

// DecodeEvent turns a raw recorded event (kind + JSON payload) into a typed
// domain Event. Unknown kinds decode with a nil payload so that folds treat
// them as identity instead of failing replay.
func DecodeEvent(kind string, payload json.RawMessage) (Event, error) {
	target := payloadTarget(kind)
	if target == nil {
		return Event{Kind: kind}, nil
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}

	return Event{Kind: kind, Payload: deref(target)}, nil
}

func payloadTarget(kind string) any {
	switch kind {
	case KindAdminBootstrapped, KindUserRegistered:
		return &UserCreatedPayload{}
	case KindUserLoggedIn:
		return &UserLoggedInPayload{}
	case KindResourceCreated:
		return &ResourceCreatedPayload{}
	case KindResourceMetadataUpdated:
		return &ResourceMetadataUpdatedPayload{}
	case KindReservationAddedToResource:
		return &ReservationAddedPayload{}
	case KindResourceReservationCancelled:
		return &ReservationCancelledPayload{}
	case KindConcurrencyConflictUnresolved:
		return &ConflictUnresolvedPayload{}
	default:
		return nil
	}
}

func deref(target any) any {
	switch p := target.(type) {
	case *UserCreatedPayload:
		return *p
	case *UserLoggedInPayload:
		return *p
	case *ResourceCreatedPayload:
		return *p
	case *ResourceMetadataUpdatedPayload:
		return *p
	case *ReservationAddedPayload:
		return *p
	case *ReservationCancelledPayload:
		return *p
	case *ConflictUnresolvedPayload:
		return *p
	default:
		return nil
	}
}
