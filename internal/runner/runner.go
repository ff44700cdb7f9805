// Package runner executes commands against event-sourced aggregates: it
// rehydrates state from snapshot plus tail, invokes the pure decider, appends
// the accepted event with optimistic concurrency, publishes it, and
// maintains snapshots. Conflicted appends are retried a bounded number of
// times.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reserva-io/reserva/internal/config"
	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/eventstore"
	"github.com/reserva-io/reserva/internal/queue"
)

// ErrVersionConflict is returned after all retry attempts are exhausted.
// It aliases the store sentinel so callers match either.
var ErrVersionConflict = eventstore.ErrVersionConflict

// Aggregate describes how to rehydrate one aggregate type.
type Aggregate[S any] struct {
	StreamType string
	Initial    func() S
	Fold       func(S, domain.Event) S
}

// UserAggregate rehydrates user streams.
var UserAggregate = Aggregate[*domain.UserState]{
	StreamType: domain.StreamTypeUser,
	Initial:    func() *domain.UserState { return nil },
	Fold:       domain.FoldUser,
}

// ResourceAggregate rehydrates resource streams.
var ResourceAggregate = Aggregate[*domain.ResourceState]{
	StreamType: domain.StreamTypeResource,
	Initial:    func() *domain.ResourceState { return nil },
	Fold:       domain.FoldResource,
}

// Command is one command execution request. Decide closes over the command
// inputs; it receives the rehydrated state and returns the accepted event or
// a domain rejection.
type Command[S any] struct {
	StreamID    string
	Name        string
	ActorUserID string
	Decide      func(state S) (domain.Event, *domain.Error)
}

// Result is a successfully executed command: the recorded event and the
// post-append aggregate state.
type Result[S any] struct {
	Event eventstore.RecordedEvent
	State S
}

// Runner wires the event store, the publisher and the retry/snapshot policy.
type Runner struct {
	store     eventstore.Store
	publisher queue.Publisher
	cfg       *config.Config
	logger    *slog.Logger

	// Injectable for tests.
	now        func() time.Time
	newEventID func() (string, error)
}

// New creates a command runner.
func New(store eventstore.Store, publisher queue.Publisher, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newEventID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", fmt.Errorf("failed to generate event id: %w", err)
			}

			return id.String(), nil
		},
	}
}

// Execute runs one command to completion: rehydrate, decide, append,
// publish, snapshot. On a version conflict the whole procedure restarts,
// up to VersionConflictMaxRetries additional attempts; after exhaustion the
// conflict surfaces (optionally after appending a telemetry event).
func Execute[S any](ctx context.Context, r *Runner, agg Aggregate[S], cmd Command[S]) (*Result[S], error) {
	attempts := r.cfg.VersionConflictMaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		state, lastVersion, err := rehydrate(ctx, r, agg, cmd.StreamID)
		if err != nil {
			return nil, err
		}

		event, rejection := cmd.Decide(state)
		if rejection != nil {
			return nil, rejection
		}

		recorded, err := r.record(agg.StreamType, cmd.StreamID, event, lastVersion+1)
		if err != nil {
			return nil, err
		}

		if err := r.store.AppendEvent(ctx, recorded, lastVersion); err != nil {
			if errors.Is(err, eventstore.ErrVersionConflict) {
				r.logger.Debug("Version conflict, retrying command",
					slog.String("stream_type", agg.StreamType),
					slog.String("stream_id", cmd.StreamID),
					slog.String("command", cmd.Name),
					slog.Int("attempt", attempt),
				)

				continue
			}

			return nil, err
		}

		r.publish(ctx, recorded)

		newState := agg.Fold(state, event)
		r.maybeSnapshot(ctx, agg.StreamType, cmd.StreamID, newState, recorded.Version)

		return &Result[S]{Event: recorded, State: newState}, nil
	}

	if r.cfg.EmitConcurrencyConflictUnresolvedEvent {
		r.emitConflictUnresolved(ctx, agg.StreamType, cmd.StreamID, cmd.Name, cmd.ActorUserID, attempts)
	}

	return nil, ErrVersionConflict
}

func rehydrate[S any](ctx context.Context, r *Runner, agg Aggregate[S], streamID string) (S, int64, error) {
	state := agg.Initial()

	snap, err := r.store.LoadLatestSnapshot(ctx, agg.StreamType, streamID)
	if err != nil {
		return state, 0, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var lastVersion int64

	if snap != nil {
		if err := json.Unmarshal(snap.State, &state); err != nil {
			return state, 0, fmt.Errorf("failed to decode snapshot state: %w", err)
		}

		lastVersion = snap.LastEventVersion
	}

	tail, err := r.store.LoadStream(ctx, agg.StreamType, streamID, lastVersion+1)
	if err != nil {
		return state, 0, err
	}

	for _, recorded := range tail {
		event, err := domain.DecodeEvent(recorded.Type, recorded.Payload)
		if err != nil {
			return state, 0, err
		}

		state = agg.Fold(state, event)
		lastVersion = recorded.Version
	}

	return state, lastVersion, nil
}

func (r *Runner) record(streamType, streamID string, event domain.Event, version int64) (eventstore.RecordedEvent, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return eventstore.RecordedEvent{}, fmt.Errorf("failed to encode event payload: %w", err)
	}

	eventID, err := r.newEventID()
	if err != nil {
		return eventstore.RecordedEvent{}, err
	}

	return eventstore.RecordedEvent{
		EventID:       eventID,
		StreamID:      streamID,
		StreamType:    streamType,
		Version:       version,
		Type:          event.Kind,
		Payload:       payload,
		OccurredAtUTC: r.now().UTC(),
	}, nil
}

// publish enqueues the event for the projection worker. Best-effort from the
// command's viewpoint: the append already committed, so a publish failure is
// logged and the command still succeeds. Recovery is an operational redrive
// from the event store.
func (r *Runner) publish(ctx context.Context, recorded eventstore.RecordedEvent) {
	body, err := json.Marshal(recorded)
	if err != nil {
		r.logger.Error("Failed to encode event for publishing",
			slog.String("event_id", recorded.EventID),
			slog.String("error", err.Error()),
		)

		return
	}

	if err := r.publisher.Publish(ctx, body); err != nil {
		r.logger.Error("Failed to publish event",
			slog.String("event_id", recorded.EventID),
			slog.String("stream_type", recorded.StreamType),
			slog.String("stream_id", recorded.StreamID),
			slog.Int64("version", recorded.Version),
			slog.String("error", err.Error()),
		)
	}
}

// maybeSnapshot writes a snapshot when the new version crosses the
// configured threshold. Snapshots are an accelerator; failures are swallowed.
func (r *Runner) maybeSnapshot(ctx context.Context, streamType, streamID string, state any, version int64) {
	threshold := r.cfg.SnapshotThreshold(streamType)
	if threshold <= 0 || version%threshold != 0 {
		return
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		r.logger.Warn("Failed to encode snapshot state",
			slog.String("stream_type", streamType),
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()),
		)

		return
	}

	snap := eventstore.Snapshot{
		StreamType:       streamType,
		StreamID:         streamID,
		SnapshotVersion:  version,
		LastEventVersion: version,
		State:            stateJSON,
		CreatedAtUTC:     r.now().UTC(),
	}

	if err := r.store.PutSnapshot(ctx, snap); err != nil {
		r.logger.Warn("Failed to put snapshot",
			slog.String("stream_type", streamType),
			slog.String("stream_id", streamID),
			slog.Int64("version", version),
			slog.String("error", err.Error()),
		)
	}
}

// emitConflictUnresolved appends a telemetry event recording the lost race.
// Every failure on this path is swallowed: telemetry must never turn a
// conflict response into something worse.
func (r *Runner) emitConflictUnresolved(ctx context.Context, streamType, streamID, commandName, actorUserID string, attempts int) {
	events, err := r.store.LoadStream(ctx, streamType, streamID, 1)
	if err != nil {
		r.logger.Warn("Failed to load stream for conflict telemetry",
			slog.String("stream_type", streamType),
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()),
		)

		return
	}

	var tail int64
	if len(events) > 0 {
		tail = events[len(events)-1].Version
	}

	event := domain.Event{
		Kind: domain.KindConcurrencyConflictUnresolved,
		Payload: domain.ConflictUnresolvedPayload{
			ResourceID:       streamID,
			CommandName:      commandName,
			ActorUserID:      actorUserID,
			Attempts:         attempts,
			LastKnownVersion: tail,
		},
	}

	recorded, err := r.record(streamType, streamID, event, tail+1)
	if err != nil {
		r.logger.Warn("Failed to build conflict telemetry event", slog.String("error", err.Error()))

		return
	}

	if err := r.store.AppendEvent(ctx, recorded, tail); err != nil {
		r.logger.Warn("Failed to append conflict telemetry event",
			slog.String("stream_type", streamType),
			slog.String("stream_id", streamID),
			slog.String("error", err.Error()),
		)

		return
	}

	r.publish(ctx, recorded)
}
