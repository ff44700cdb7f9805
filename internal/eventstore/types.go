// Package eventstore provides the append-only per-stream event log and its
// snapshot accelerator. The authoritative implementation sits on top of an
// S3-compatible object store; an in-memory implementation backs tests and
// single-process setups.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrVersionConflict is returned by AppendEvent when another writer won the
// race for the target version. Callers retry the whole command.
var ErrVersionConflict = errors.New("version conflict")

// GapError reports a stream whose listing is not contiguous. A gap that
// survives the single reload retry is a real consistency defect and is
// surfaced, never silently skipped.
type GapError struct {
	StreamType string
	StreamID   string
	Expected   int64
	Actual     int64
}

// Error implements the error interface.
func (e *GapError) Error() string {
	return fmt.Sprintf("stream gap detected in %s/%s: expected version %d, got %d",
		e.StreamType, e.StreamID, e.Expected, e.Actual)
}

// RecordedEvent is one immutable entry of a stream. Once appended it is never
// mutated or deleted. OccurredAtUTC is wall-clock metadata only; ordering is
// defined by Version alone.
type RecordedEvent struct {
	EventID       string          `json:"eventId"`
	StreamID      string          `json:"streamId"`
	StreamType    string          `json:"streamType"`
	Version       int64           `json:"version"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAtUTC time.Time       `json:"occurredAtUtc"`
	Meta          json.RawMessage `json:"meta,omitempty"`
}

// Snapshot is a materialized aggregate state at a specific version. It is an
// accelerator: correctness never depends on it, and SnapshotVersion always
// equals LastEventVersion.
type Snapshot struct {
	StreamType       string          `json:"streamType"`
	StreamID         string          `json:"streamId"`
	SnapshotVersion  int64           `json:"snapshotVersion"`
	LastEventVersion int64           `json:"lastEventVersion"`
	State            json.RawMessage `json:"state"`
	CreatedAtUTC     time.Time       `json:"createdAtUtc"`
}

// Store is the event store contract consumed by the command runner.
type Store interface {
	// LoadStream returns the events of a stream with version >= fromVersion,
	// sorted ascending and contiguous. It returns a *GapError when the
	// listing is not contiguous after one reload retry.
	LoadStream(ctx context.Context, streamType, streamID string, fromVersion int64) ([]RecordedEvent, error)

	// LoadLatestSnapshot returns the snapshot with the highest version, or
	// nil when the stream has no snapshot.
	LoadLatestSnapshot(ctx context.Context, streamType, streamID string) (*Snapshot, error)

	// AppendEvent appends one event. expectedVersion is the current stream
	// tail; event.Version must equal expectedVersion+1. Exactly one of the
	// writers racing for a version succeeds, the rest get ErrVersionConflict.
	AppendEvent(ctx context.Context, event RecordedEvent, expectedVersion int64) error

	// PutSnapshot stores a snapshot with create-if-absent semantics. An
	// already-existing snapshot at the same version is not an error.
	PutSnapshot(ctx context.Context, snap Snapshot) error
}
