package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndCompare(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	hasher := BcryptHasher{}

	hash, err := hasher.Hash("Password123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	assert.True(t, hasher.Compare(hash, "Password123"))
	assert.False(t, hasher.Compare(hash, "password123"))
	assert.False(t, hasher.Compare(hash, ""))
	assert.False(t, hasher.Compare("", "Password123"))
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	_, err := BcryptHasher{}.Hash("")
	assert.ErrorIs(t, err, ErrPasswordEmpty)
}

func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	hasher := BcryptHasher{}

	first, err := hasher.Hash("Password123")
	require.NoError(t, err)

	second, err := hasher.Hash("Password123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Compare(first, "Password123"))
	assert.True(t, hasher.Compare(second, "Password123"))
}

func TestBcryptHasher_LongPasswords(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	hasher := BcryptHasher{}
	long := strings.Repeat("a", 100)

	hash, err := hasher.Hash(long)
	require.NoError(t, err)
	assert.True(t, hasher.Compare(hash, long))

	// Without the SHA-256 pre-hash bcrypt would truncate at 72 bytes and the
	// two passwords below would collide.
	other := strings.Repeat("a", 72) + "different-tail-past-the-limit"
	assert.False(t, hasher.Compare(hash, other))
}
