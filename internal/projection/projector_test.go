package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/eventstore"
)

var projectedAt = time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)

func recordedEvent(t *testing.T, streamType, streamID, kind string, payload any) eventstore.RecordedEvent {
	t.Helper()

	encoded, err := json.Marshal(payload)
	require.NoError(t, err)

	return eventstore.RecordedEvent{
		EventID:       "evt-1",
		StreamID:      streamID,
		StreamType:    streamType,
		Version:       1,
		Type:          kind,
		Payload:       encoded,
		OccurredAtUTC: projectedAt,
	}
}

func TestProject_UserEvents(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("user registered puts a user row", func(t *testing.T) {
		event := recordedEvent(t, "user", "u1", domain.KindUserRegistered, domain.UserCreatedPayload{
			UserID: "u1", Email: "user@test.com", PasswordHash: "hash", Role: domain.RoleUser,
		})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		put, ok := ops[0].(PutUser)
		require.True(t, ok)
		assert.Equal(t, "u1", put.Row.UserID)
		assert.Equal(t, "user@test.com", put.Row.Email)
		assert.Equal(t, domain.RoleUser, put.Row.Role)
		assert.Equal(t, projectedAt, put.Row.CreatedAtUTC)
	})

	t.Run("admin bootstrapped forces the admin role", func(t *testing.T) {
		// Role in the payload is ignored for the bootstrap kind.
		event := recordedEvent(t, "user", "u1", domain.KindAdminBootstrapped, domain.UserCreatedPayload{
			UserID: "u1", Email: "admin@test.com", PasswordHash: "hash", Role: domain.RoleUser,
		})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		put, ok := ops[0].(PutUser)
		require.True(t, ok)
		assert.Equal(t, domain.RoleAdmin, put.Row.Role)
	})

	t.Run("login sets last login", func(t *testing.T) {
		event := recordedEvent(t, "user", "u1", domain.KindUserLoggedIn, domain.UserLoggedInPayload{
			UserID: "u1", Email: "user@test.com",
		})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		set, ok := ops[0].(SetUserLastLogin)
		require.True(t, ok)
		assert.Equal(t, "u1", set.UserID)
		assert.Equal(t, projectedAt, set.LastLoginAtUTC)
	})
}

func TestProject_ResourceEvents(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("resource created puts a resource row", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindResourceCreated, domain.ResourceCreatedPayload{
			ResourceID: "r1", Name: "SalaA", Details: "Piso 1", Status: "active",
		})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		put, ok := ops[0].(PutResource)
		require.True(t, ok)
		assert.Equal(t, "r1", put.Row.ResourceID)
		assert.Equal(t, "SalaA", put.Row.Name)
		assert.Equal(t, projectedAt, put.Row.UpdatedAtUTC)
	})

	t.Run("metadata update takes the resource id from the stream", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindResourceMetadataUpdated,
			domain.ResourceMetadataUpdatedPayload{Name: "SalaB", Details: "Piso 2"})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		update, ok := ops[0].(UpdateResourceDetails)
		require.True(t, ok)
		assert.Equal(t, "r1", update.ResourceID)
		assert.Equal(t, "SalaB", update.Name)
	})
}

func TestProject_ReservationEvents(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	from := time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC)

	t.Run("reservation added puts an active row", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindReservationAddedToResource,
			domain.ReservationAddedPayload{
				ReservationID: "res1",
				UserID:        "u1",
				FromUTC:       from,
				ToUTC:         from.Add(time.Hour),
				Status:        domain.ReservationStatusActive,
				CreatedAtUTC:  projectedAt,
			})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		put, ok := ops[0].(PutReservation)
		require.True(t, ok)
		assert.Equal(t, "res1", put.Row.ReservationID)
		assert.Equal(t, "r1", put.Row.ResourceID)
		assert.Equal(t, domain.ReservationStatusActive, put.Row.Status)
	})

	t.Run("cancellation flips the row", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindResourceReservationCancelled,
			domain.ReservationCancelledPayload{
				ReservationID:  "res1",
				CancelledBy:    "u1",
				CancelledAtUTC: projectedAt,
			})

		ops, err := Project(event)
		require.NoError(t, err)
		require.Len(t, ops, 1)

		cancel, ok := ops[0].(CancelReservation)
		require.True(t, ok)
		assert.Equal(t, "res1", cancel.ReservationID)
		assert.Equal(t, projectedAt, cancel.CancelledAtUTC)
	})
}

func TestProject_IgnoredEvents(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("telemetry event maps to no ops", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindConcurrencyConflictUnresolved,
			domain.ConflictUnresolvedPayload{ResourceID: "r1", CommandName: "CreateReservationInResource"})

		ops, err := Project(event)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("unknown kind maps to no ops", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", "SomethingFromTheFuture", map[string]int{"x": 1})

		ops, err := Project(event)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		event := recordedEvent(t, "resource", "r1", domain.KindResourceCreated, nil)
		event.Payload = json.RawMessage(`not json`)

		_, err := Project(event)
		require.Error(t, err)
	})
}
