package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideUser_BootstrapAdmin(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		state    *UserState
		wantCode string
		wantKind string
	}{
		{
			name:     "empty stream accepts bootstrap",
			state:    nil,
			wantKind: KindAdminBootstrapped,
		},
		{
			name:     "existing stream rejects bootstrap",
			state:    &UserState{UserID: "u1", Email: "admin@test.com"},
			wantCode: CodeUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, rejection := DecideUser(tt.state, BootstrapAdmin{
				UserID:       "u1",
				Email:        "admin@test.com",
				PasswordHash: "$2b$10$hash",
			})

			if tt.wantCode != "" {
				require.NotNil(t, rejection)
				assert.Equal(t, tt.wantCode, rejection.Code)

				return
			}

			require.Nil(t, rejection)
			assert.Equal(t, tt.wantKind, event.Kind)

			payload, ok := event.Payload.(UserCreatedPayload)
			require.True(t, ok)
			assert.Equal(t, RoleAdmin, payload.Role)
			assert.Equal(t, "admin@test.com", payload.Email)
		})
	}
}

func TestDecideUser_RegisterUser(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	t.Run("empty stream accepts registration with default role", func(t *testing.T) {
		event, rejection := DecideUser(nil, RegisterUser{
			UserID:       "u2",
			Email:        "user@test.com",
			PasswordHash: "$2b$10$hash",
		})

		require.Nil(t, rejection)
		assert.Equal(t, KindUserRegistered, event.Kind)

		payload, ok := event.Payload.(UserCreatedPayload)
		require.True(t, ok)
		assert.Equal(t, RoleUser, payload.Role)
	})

	t.Run("existing stream rejects registration", func(t *testing.T) {
		state := &UserState{UserID: "u2", Email: "user@test.com"}

		_, rejection := DecideUser(state, RegisterUser{UserID: "u2", Email: "user@test.com"})

		require.NotNil(t, rejection)
		assert.Equal(t, CodeUserAlreadyExists, rejection.Code)
	})
}

func TestDecideUser_LoginUser(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	state := &UserState{
		UserID:       "u1",
		Email:        "user@test.com",
		PasswordHash: "$2b$10$hash",
		Role:         RoleUser,
	}

	tests := []struct {
		name     string
		state    *UserState
		email    string
		wantCode string
	}{
		{name: "matching email accepted", state: state, email: "user@test.com"},
		{name: "unknown stream rejected", state: nil, email: "user@test.com", wantCode: CodeInvalidCredentials},
		{name: "wrong email rejected", state: state, email: "other@test.com", wantCode: CodeInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, rejection := DecideUser(tt.state, LoginUser{Email: tt.email})

			if tt.wantCode != "" {
				require.NotNil(t, rejection)
				assert.Equal(t, tt.wantCode, rejection.Code)

				return
			}

			require.Nil(t, rejection)
			assert.Equal(t, KindUserLoggedIn, event.Kind)
		})
	}
}

func TestDecideUser_UnknownCommand(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	_, rejection := DecideUser(nil, struct{ X int }{1})

	require.NotNil(t, rejection)
	assert.Equal(t, CodeInvalidRequest, rejection.Code)
}

func TestFoldUser(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	created, rejection := DecideUser(nil, RegisterUser{
		UserID:       "u1",
		Email:        "user@test.com",
		PasswordHash: "$2b$10$hash",
	})
	require.Nil(t, rejection)

	state := FoldUser(nil, created)
	require.NotNil(t, state)
	assert.Equal(t, "u1", state.UserID)
	assert.Equal(t, RoleUser, state.Role)

	// Logins do not change user state.
	loggedIn, rejection := DecideUser(state, LoginUser{Email: "user@test.com"})
	require.Nil(t, rejection)
	assert.Equal(t, state, FoldUser(state, loggedIn))

	// Unknown kinds fold as identity.
	assert.Equal(t, state, FoldUser(state, Event{Kind: "SomethingNew"}))
}
