// Package api provides the HTTP command transport for the Reserva service.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reserva-io/reserva/internal/auth"
	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/idempotency"
	"github.com/reserva-io/reserva/internal/runner"
)

const bootstrapKeyHeader = "x-admin-bootstrap-key"

// handleBootstrapAdmin creates the initial admin user. The route is guarded
// by the shared bootstrap key, not by a bearer token; on success it issues a
// token so the caller can continue as the new admin.
func (s *Server) handleBootstrapAdmin(w http.ResponseWriter, r *http.Request) {
	var payload BootstrapAdminPayload
	if !s.decodeCommand(w, r, commandBootstrapAdmin, &payload) {
		return
	}

	if reason := validateCredentials(payload.Email, payload.Password); reason != "" {
		WriteError(w, r, s.logger, ErrorBody{Code: domain.CodeInvalidRequest, Reason: reason})

		return
	}

	key := r.Header.Get(bootstrapKeyHeader)
	if s.deps.AppConfig.AdminBootstrapKey == "" ||
		subtle.ConstantTimeCompare([]byte(key), []byte(s.deps.AppConfig.AdminBootstrapKey)) != 1 {
		WriteError(w, r, s.logger, ErrorBody{
			Code:   CodeBootstrapForbidden,
			Reason: "bootstrap key is missing or invalid",
		})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		return s.createUser(ctx, payload.Email, payload.Password, domain.RoleAdmin)
	})
}

// handleRegisterUser registers a regular user.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if !s.decodeCommand(w, r, commandRegisterUser, &payload) {
		return
	}

	if reason := validateCredentials(payload.Email, payload.Password); reason != "" {
		WriteError(w, r, s.logger, ErrorBody{Code: domain.CodeInvalidRequest, Reason: reason})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		return s.createUser(ctx, payload.Email, payload.Password, domain.RoleUser)
	})
}

// createUser is the shared builder for bootstrap and register: pre-check
// email uniqueness on the read side, hash the password, run the command.
// The stream itself still rejects a double create, so the read-side check is
// a fast path, not the guard.
func (s *Server) createUser(ctx context.Context, email, password, role string) (idempotency.Response, error) {
	existing, err := s.deps.Reads.FindUserByEmail(ctx, email)
	if err != nil {
		return idempotency.Response{}, fmt.Errorf("failed to check email uniqueness: %w", err)
	}

	if existing != nil {
		return idempotency.Response{}, domain.NewError(domain.CodeUserAlreadyExists, "email is already registered")
	}

	passwordHash, err := s.deps.Hasher.Hash(password)
	if err != nil {
		return idempotency.Response{}, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()

	var cmd any
	if role == domain.RoleAdmin {
		cmd = domain.BootstrapAdmin{UserID: userID, Email: email, PasswordHash: passwordHash}
	} else {
		cmd = domain.RegisterUser{UserID: userID, Email: email, PasswordHash: passwordHash, Role: role}
	}

	result, err := runner.Execute(ctx, s.deps.Runner, runner.UserAggregate, runner.Command[*domain.UserState]{
		StreamID: userID,
		Name:     commandTypeForRole(role),
		Decide: func(state *domain.UserState) (domain.Event, *domain.Error) {
			return domain.DecideUser(state, cmd)
		},
	})
	if err != nil {
		return idempotency.Response{}, err
	}

	response := UserResponse{
		UserID: result.State.UserID,
		Email:  result.State.Email,
		Role:   result.State.Role,
	}

	// Bootstrap replies with a token so the admin can proceed immediately.
	if role == domain.RoleAdmin && s.deps.Issuer != nil {
		token, err := s.deps.Issuer.Issue(auth.Actor{
			UserID: result.State.UserID,
			Email:  result.State.Email,
			Role:   result.State.Role,
		})
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to issue token: %w", err)
		}

		response.Token = token
	}

	body, err := json.Marshal(response)
	if err != nil {
		return idempotency.Response{}, fmt.Errorf("failed to encode user response: %w", err)
	}

	return idempotency.Response{StatusCode: http.StatusCreated, Body: body}, nil
}

func commandTypeForRole(role string) string {
	if role == domain.RoleAdmin {
		return commandBootstrapAdmin
	}

	return commandRegisterUser
}

// handleLoginUser authenticates a user, records the login event and issues a
// bearer token. Lookup failure and password failure are indistinguishable to
// the caller.
func (s *Server) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var payload LoginUserPayload
	if !s.decodeCommand(w, r, commandLoginUser, &payload) {
		return
	}

	if reason := validateCredentials(payload.Email, payload.Password); reason != "" {
		WriteError(w, r, s.logger, ErrorBody{Code: domain.CodeInvalidRequest, Reason: reason})

		return
	}

	content := idempotency.Content{Path: r.URL.Path, Body: payload}

	s.runGated(w, r, content, func(ctx context.Context) (idempotency.Response, error) {
		row, err := s.deps.Reads.FindUserByEmail(ctx, payload.Email)
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to look up user: %w", err)
		}

		if row == nil {
			return idempotency.Response{}, domain.NewError(domain.CodeInvalidCredentials, "invalid credentials")
		}

		result, err := runner.Execute(ctx, s.deps.Runner, runner.UserAggregate, runner.Command[*domain.UserState]{
			StreamID:    row.UserID,
			Name:        commandLoginUser,
			ActorUserID: row.UserID,
			Decide: func(state *domain.UserState) (domain.Event, *domain.Error) {
				event, rejection := domain.DecideUser(state, domain.LoginUser{Email: payload.Email})
				if rejection != nil {
					return domain.Event{}, rejection
				}

				if !s.deps.Hasher.Compare(state.PasswordHash, payload.Password) {
					return domain.Event{}, domain.NewError(domain.CodeInvalidCredentials, "invalid credentials")
				}

				return event, nil
			},
		})
		if err != nil {
			return idempotency.Response{}, err
		}

		token, err := s.deps.Issuer.Issue(auth.Actor{
			UserID: result.State.UserID,
			Email:  result.State.Email,
			Role:   result.State.Role,
		})
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to issue token: %w", err)
		}

		body, err := json.Marshal(UserResponse{
			UserID: result.State.UserID,
			Email:  result.State.Email,
			Role:   result.State.Role,
			Token:  token,
		})
		if err != nil {
			return idempotency.Response{}, fmt.Errorf("failed to encode login response: %w", err)
		}

		return idempotency.Response{StatusCode: http.StatusOK, Body: body}, nil
	})
}

// validateCredentials returns a rejection reason, or "" when valid.
func validateCredentials(email, password string) string {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		return "email must be a non-empty address"
	}

	if password == "" {
		return "password must not be empty"
	}

	return ""
}
