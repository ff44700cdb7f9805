// Package auth provides the password KDF and the bearer-token contract the
// command core consumes: an authenticated actor identity with a role claim.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcryptCost defines the computational cost for bcrypt hashing.
	// Cost 10 = ~60ms per hash; can be raised for production hardening.
	bcryptCost  = 10
	bcryptLimit = 72
)

// ErrPasswordEmpty is returned when an empty password is provided.
var ErrPasswordEmpty = errors.New("password cannot be empty")

// PasswordHasher is the pluggable KDF. The stored hash is opaque to the rest
// of the system; swapping the algorithm only touches implementations of this
// interface.
type PasswordHasher interface {
	// Hash derives a storable hash from a plaintext password.
	Hash(password string) (string, error)
	// Compare reports whether the password matches the stored hash.
	Compare(hash, password string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
//
// Bcrypt has a 72-byte input limit; longer passwords are pre-hashed with
// SHA-256 so they keep their full entropy instead of being truncated.
type BcryptHasher struct{}

// Hash derives a bcrypt hash from the password. Each hash includes a random
// salt, so identical passwords produce different hashes.
func (BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordEmpty
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Compare performs a constant-time comparison of the password against the
// stored hash. Returns false for any error condition.
func (BcryptHasher) Compare(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(password)) == nil
}

// bcryptInput prepares a password for bcrypt. Must be identical on the hash
// and compare paths.
func bcryptInput(password string) []byte {
	if len(password) > bcryptLimit {
		sum := sha256.Sum256([]byte(password))

		return sum[:]
	}

	return []byte(password)
}
