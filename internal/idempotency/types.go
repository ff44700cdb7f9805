// Package idempotency makes every mutating command exactly-once from the
// client's perspective: a client-supplied key binds a request fingerprint to
// the first response, which is replayed verbatim on retries and rejected on
// fingerprint mismatch.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAlreadyExists is returned by Save when a record with the same key
	// was inserted concurrently. The gate swallows it: the event append
	// itself is version-guarded, so the effect is idempotent.
	ErrAlreadyExists = errors.New("idempotency record already exists")
	// ErrMissingKey is returned by the gate when the request carries no
	// idempotency key.
	ErrMissingKey = errors.New("missing idempotency key")
	// ErrHashMismatch is returned when a key is reused with different
	// request content.
	ErrHashMismatch = errors.New("idempotency content hash mismatch")
)

// Record binds an idempotency key to the request fingerprint and the first
// response. At most one (contentHash, statusCode, responseBody) tuple is ever
// visible for a key.
type Record struct {
	IdempotencyKey string    `json:"idempotencyKey"`
	ContentHash    string    `json:"contentHash"`
	StatusCode     int       `json:"statusCode"`
	ResponseBody   string    `json:"responseBody"`
	CreatedAtUTC   time.Time `json:"createdAtUtc"`
}

// Store persists idempotency records.
type Store interface {
	// Load returns the record for a key, or nil when absent.
	Load(ctx context.Context, key string) (*Record, error)
	// Save inserts a record if absent; a duplicate insert returns
	// ErrAlreadyExists.
	Save(ctx context.Context, record Record) error
}

// Outcome classifies a request against the stored record.
type Outcome int

const (
	// OutcomeNew means no record exists; run the command and save.
	OutcomeNew Outcome = iota
	// OutcomeReplay means the same content was seen before; reply with the
	// stored response verbatim, no side effects.
	OutcomeReplay
	// OutcomeMismatch means the key is reused with different content.
	OutcomeMismatch
)

// Decision is the result of comparing a request against the stored record.
type Decision struct {
	Outcome     Outcome
	ContentHash string
	Record      *Record
}

// Decide classifies a request. existing is the previously stored record (nil
// when absent); content is the request fingerprint scope {path, body, actor?}.
func Decide(existing *Record, content Content) (Decision, error) {
	hash, err := content.Hash()
	if err != nil {
		return Decision{}, err
	}

	if existing == nil {
		return Decision{Outcome: OutcomeNew, ContentHash: hash}, nil
	}

	if existing.ContentHash == hash {
		return Decision{Outcome: OutcomeReplay, ContentHash: hash, Record: existing}, nil
	}

	return Decision{Outcome: OutcomeMismatch, ContentHash: hash, Record: existing}, nil
}
