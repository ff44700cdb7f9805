package eventstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a thread-safe in-memory event store used by tests and
// single-process setups. It honours the same contract as S3Store: contiguous
// versions, create-if-absent appends, best-effort snapshots.
type MemoryStore struct {
	mutex     sync.RWMutex
	streams   map[string][]RecordedEvent
	snapshots map[string][]Snapshot
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams:   make(map[string][]RecordedEvent),
		snapshots: make(map[string][]Snapshot),
	}
}

func streamKey(streamType, streamID string) string {
	return streamType + "/" + streamID
}

// LoadStream returns the events of a stream with version >= fromVersion.
func (s *MemoryStore) LoadStream(
	_ context.Context,
	streamType, streamID string,
	fromVersion int64,
) ([]RecordedEvent, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var events []RecordedEvent

	for _, event := range s.streams[streamKey(streamType, streamID)] {
		if event.Version >= fromVersion {
			events = append(events, event)
		}
	}

	return events, nil
}

// LoadLatestSnapshot returns the snapshot with the highest version, or nil.
func (s *MemoryStore) LoadLatestSnapshot(_ context.Context, streamType, streamID string) (*Snapshot, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snaps := s.snapshots[streamKey(streamType, streamID)]
	if len(snaps) == 0 {
		return nil, nil
	}

	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.SnapshotVersion > latest.SnapshotVersion {
			latest = snap
		}
	}

	return &latest, nil
}

// AppendEvent appends one event if expectedVersion matches the stream tail.
func (s *MemoryStore) AppendEvent(_ context.Context, event RecordedEvent, expectedVersion int64) error {
	if event.Version != expectedVersion+1 {
		return fmt.Errorf("append precondition violated: event version %d, expected version %d",
			event.Version, expectedVersion)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := streamKey(event.StreamType, event.StreamID)

	if int64(len(s.streams[key])) != expectedVersion {
		return ErrVersionConflict
	}

	s.streams[key] = append(s.streams[key], event)

	return nil
}

// PutSnapshot stores a snapshot; an existing snapshot at the same version is
// kept untouched, mirroring create-if-absent.
func (s *MemoryStore) PutSnapshot(_ context.Context, snap Snapshot) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := streamKey(snap.StreamType, snap.StreamID)

	for _, existing := range s.snapshots[key] {
		if existing.SnapshotVersion == snap.SnapshotVersion {
			return nil
		}
	}

	s.snapshots[key] = append(s.snapshots[key], snap)

	return nil
}

// StreamLength returns the number of events in a stream. Test helper.
func (s *MemoryStore) StreamLength(streamType, streamID string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.streams[streamKey(streamType, streamID)])
}

// SnapshotCount returns the number of snapshots of a stream. Test helper.
func (s *MemoryStore) SnapshotCount(streamType, streamID string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.snapshots[streamKey(streamType, streamID)])
}
