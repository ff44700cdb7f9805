package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("known kind decodes into typed payload", func(t *testing.T) {
		raw := []byte(`{"reservationId":"res1","userId":"u1","fromUtc":"2026-12-01T10:00:00Z",` +
			`"toUtc":"2026-12-01T11:00:00Z","status":"active","createdAtUtc":"2026-11-01T00:00:00Z"}`)

		event, err := DecodeEvent(KindReservationAddedToResource, raw)
		require.NoError(t, err)

		payload, ok := event.Payload.(ReservationAddedPayload)
		require.True(t, ok)
		assert.Equal(t, "res1", payload.ReservationID)
		assert.Equal(t, "u1", payload.UserID)
	})

	t.Run("unknown kind decodes with nil payload", func(t *testing.T) {
		event, err := DecodeEvent("SomethingFromTheFuture", []byte(`{"x":1}`))
		require.NoError(t, err)
		assert.Equal(t, "SomethingFromTheFuture", event.Kind)
		assert.Nil(t, event.Payload)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		_, err := DecodeEvent(KindResourceCreated, []byte(`not json`))
		require.Error(t, err)
	})
}

// TestSnapshotFoldEquivalence checks that folding a full event sequence gives
// the same state as snapshotting any prefix (via JSON, like the real store)
// and folding the remaining tail onto it.
func TestSnapshotFoldEquivalence(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	now := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	day := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	state := (*ResourceState)(nil)
	events := make([]Event, 0, 12)

	create, rejection := DecideResource(state, CreateResource{
		ResourceID: "r1", Name: "SalaA", Details: "Piso 1", ActorRole: RoleAdmin,
	})
	require.Nil(t, rejection)

	events = append(events, create)
	state = FoldResource(state, create)

	for i := 0; i < 8; i++ {
		from := day.Add(time.Duration(i) * time.Hour)

		event, rejection := DecideResource(state, CreateReservationInResource{
			ReservationID: uniqueID("res", 0, i),
			UserID:        "u1",
			FromUTC:       from,
			ToUTC:         from.Add(time.Hour),
			Now:           now,
		})
		require.Nil(t, rejection)

		events = append(events, event)
		state = FoldResource(state, event)
	}

	cancel, rejection := DecideResource(state, CancelReservationInResource{
		ReservationID: uniqueID("res", 0, 3),
		ActorUserID:   "u1",
		ActorRole:     RoleUser,
		Now:           now,
	})
	require.Nil(t, rejection)

	events = append(events, cancel)

	full := (*ResourceState)(nil)
	for _, event := range events {
		full = FoldResource(full, event)
	}

	for prefix := 0; prefix <= len(events); prefix++ {
		partial := (*ResourceState)(nil)
		for _, event := range events[:prefix] {
			partial = FoldResource(partial, event)
		}

		// Round-trip through JSON the way snapshots are stored.
		encoded, err := json.Marshal(partial)
		require.NoError(t, err)

		var restored *ResourceState
		require.NoError(t, json.Unmarshal(encoded, &restored))

		for _, event := range events[prefix:] {
			restored = FoldResource(restored, event)
		}

		assert.Equal(t, full, restored, "prefix %d", prefix)
	}
}
