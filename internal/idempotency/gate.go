package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Response is the transport-level command outcome remembered by the gate.
type Response struct {
	StatusCode int
	Body       []byte
}

// Gate wraps command execution with the idempotency algorithm: replay on a
// repeated fingerprint, reject on a reused key with different content, and
// best-effort persistence of first responses.
type Gate struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates a gate over the given record store.
func NewGate(store Store, logger *slog.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs a command under the gate.
//
// A missing key yields ErrMissingKey and a reused key with different content
// yields ErrHashMismatch; both without running the command. A replayed
// request returns the stored response verbatim. Otherwise the command runs
// and its response is saved best-effort: a failed or duplicate save never
// fails the response, because the event append itself is version-guarded.
func (g *Gate) Execute(
	ctx context.Context,
	key string,
	content Content,
	run func(ctx context.Context) (Response, error),
) (Response, error) {
	if key == "" {
		return Response{}, ErrMissingKey
	}

	existing, err := g.store.Load(ctx, key)
	if err != nil {
		return Response{}, fmt.Errorf("failed to load idempotency record: %w", err)
	}

	decision, err := Decide(existing, content)
	if err != nil {
		return Response{}, err
	}

	switch decision.Outcome {
	case OutcomeReplay:
		return Response{
			StatusCode: decision.Record.StatusCode,
			Body:       []byte(decision.Record.ResponseBody),
		}, nil

	case OutcomeMismatch:
		return Response{}, ErrHashMismatch

	default:
		response, err := run(ctx)
		if err != nil {
			return Response{}, err
		}

		record := Record{
			IdempotencyKey: key,
			ContentHash:    decision.ContentHash,
			StatusCode:     response.StatusCode,
			ResponseBody:   string(response.Body),
			CreatedAtUTC:   g.now().UTC(),
		}

		if err := g.store.Save(ctx, record); err != nil && !errors.Is(err, ErrAlreadyExists) {
			g.logger.Warn("Failed to save idempotency record",
				slog.String("idempotency_key", key),
				slog.String("error", err.Error()),
			)
		}

		return response, nil
	}
}
