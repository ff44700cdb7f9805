package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Content is the fingerprint scope of a request: the route, the validated
// payload, and the authenticated subject for authenticated routes.
// Unauthenticated routes leave Actor empty.
type Content struct {
	Path  string `json:"path"`
	Body  any    `json:"body"`
	Actor string `json:"actor,omitempty"`
}

// Hash returns the SHA-256 of the canonical JSON serialization of the
// content, hex-encoded.
func (c Content) Hash() (string, error) {
	canonical, err := CanonicalJSON(c)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize idempotency content: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON serializes a value deterministically: the value is decoded
// into generic form and re-encoded, which pins object key ordering (sorted)
// and number formatting regardless of the Go types the caller handed in.
func CanonicalJSON(v any) ([]byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, err
	}

	return json.Marshal(generic)
}
