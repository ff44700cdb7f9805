package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(streamID string, version int64) RecordedEvent {
	return RecordedEvent{
		EventID:       fmt.Sprintf("evt-%s-%d", streamID, version),
		StreamID:      streamID,
		StreamType:    "resource",
		Version:       version,
		Type:          "ResourceCreated",
		Payload:       json.RawMessage(`{"resourceId":"r1"}`),
		OccurredAtUTC: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_AppendLoadRoundTrip(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := NewMemoryStore()
	ctx := context.Background()

	const k = 7

	for version := int64(1); version <= k; version++ {
		require.NoError(t, store.AppendEvent(ctx, testEvent("r1", version), version-1))
	}

	events, err := store.LoadStream(ctx, "resource", "r1", 1)
	require.NoError(t, err)
	require.Len(t, events, k)

	for i, event := range events {
		assert.Equal(t, int64(i+1), event.Version)
	}

	// Tail load honours fromVersion.
	tail, err := store.LoadStream(ctx, "resource", "r1", 5)
	require.NoError(t, err)
	require.Len(t, tail, 3)
	assert.Equal(t, int64(5), tail[0].Version)
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AppendEvent(ctx, testEvent("r1", 1), 0))

	// A second writer that also saw version 0 loses the race.
	err := store.AppendEvent(ctx, testEvent("r1", 1), 0)
	assert.ErrorIs(t, err, ErrVersionConflict)

	assert.Equal(t, 1, store.StreamLength("resource", "r1"))
}

func TestMemoryStore_AppendPreconditionViolated(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := NewMemoryStore()

	err := store.AppendEvent(context.Background(), testEvent("r1", 3), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_Snapshots(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := NewMemoryStore()
	ctx := context.Background()

	snap, err := store.LoadLatestSnapshot(ctx, "resource", "r1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	first := Snapshot{
		StreamType:       "resource",
		StreamID:         "r1",
		SnapshotVersion:  2,
		LastEventVersion: 2,
		State:            json.RawMessage(`{"resourceId":"r1"}`),
	}
	require.NoError(t, store.PutSnapshot(ctx, first))

	second := first
	second.SnapshotVersion = 4
	second.LastEventVersion = 4
	require.NoError(t, store.PutSnapshot(ctx, second))

	// Duplicate put is not an error and does not add a snapshot.
	require.NoError(t, store.PutSnapshot(ctx, second))
	assert.Equal(t, 2, store.SnapshotCount("resource", "r1"))

	snap, err = store.LoadLatestSnapshot(ctx, "resource", "r1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(4), snap.SnapshotVersion)
	assert.Equal(t, snap.SnapshotVersion, snap.LastEventVersion)
}
