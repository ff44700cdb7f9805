package idempotency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSON_KeyOrderIndependent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	a, err := CanonicalJSON(json.RawMessage(`{"name":"SalaA","details":"Piso 1"}`))
	require.NoError(t, err)

	b, err := CanonicalJSON(json.RawMessage(`{"details":"Piso 1","name":"SalaA"}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestCanonicalJSON_TypeIndependent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	type payload struct {
		Name    string `json:"name"`
		Details string `json:"details"`
	}

	fromStruct, err := CanonicalJSON(payload{Name: "SalaA", Details: "Piso 1"})
	require.NoError(t, err)

	fromMap, err := CanonicalJSON(map[string]string{"details": "Piso 1", "name": "SalaA"})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
}

func TestContentHash(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	base := Content{
		Path:  "/api/resources",
		Body:  map[string]string{"name": "SalaA", "details": "Piso 1"},
		Actor: "u1",
	}

	hash, err := base.Hash()
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// Same content hashes the same.
	again, err := base.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	// Any change to path, body, or actor changes the fingerprint.
	tests := []struct {
		name    string
		content Content
	}{
		{name: "different path", content: Content{Path: "/api/other", Body: base.Body, Actor: "u1"}},
		{name: "different body", content: Content{Path: base.Path, Body: map[string]string{"name": "SalaB"}, Actor: "u1"}},
		{name: "different actor", content: Content{Path: base.Path, Body: base.Body, Actor: "u2"}},
		{name: "no actor", content: Content{Path: base.Path, Body: base.Body}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other, err := tt.content.Hash()
			require.NoError(t, err)
			assert.NotEqual(t, hash, other)
		})
	}
}
