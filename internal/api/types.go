// Package api provides the HTTP command transport for the Reserva service.
package api

import (
	"encoding/json"
	"time"
)

// Command type discriminators carried in the command envelope. Each route
// accepts exactly one type; a mismatch is an INVALID_REQUEST.
const (
	commandBootstrapAdmin    = "BootstrapAdmin"
	commandRegisterUser      = "RegisterUser"
	commandLoginUser         = "LoginUser"
	commandCreateResource    = "CreateResource"
	commandUpdateResource    = "UpdateResourceMetadata"
	commandCreateReservation = "CreateReservationInResource"
	commandCancelReservation = "CancelReservationInResource"
)

type (
	// CommandEnvelope is the request body of every mutating endpoint.
	CommandEnvelope struct {
		Command CommandBody `json:"command"`
	}

	// CommandBody is the typed command inside the envelope. Payload stays
	// raw until the route-specific handler decodes it.
	CommandBody struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	// BootstrapAdminPayload creates the initial admin. The bootstrap key
	// travels in the x-admin-bootstrap-key header, not the payload.
	BootstrapAdminPayload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// RegisterUserPayload registers a regular user.
	RegisterUserPayload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// LoginUserPayload authenticates a user and issues a bearer token.
	LoginUserPayload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// CreateResourcePayload creates a reservable resource. Admin only.
	CreateResourcePayload struct {
		Name    string `json:"name"`
		Details string `json:"details"`
	}

	// UpdateResourcePayload replaces a resource's name and details. Admin only.
	UpdateResourcePayload struct {
		Name    string `json:"name"`
		Details string `json:"details"`
	}

	// CreateReservationPayload reserves a half-open interval [fromUtc, toUtc)
	// on the resource named in the URL.
	CreateReservationPayload struct {
		FromUTC time.Time `json:"fromUtc"`
		ToUTC   time.Time `json:"toUtc"`
	}

	// UserResponse is the success body of bootstrap, register and login.
	// Token is present when the operation issues one.
	UserResponse struct {
		UserID string `json:"userId"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		Token  string `json:"token,omitempty"`
	}

	// ResourceResponse is the success body of resource create and update.
	ResourceResponse struct {
		ResourceID string `json:"resourceId"`
		Name       string `json:"name"`
		Details    string `json:"details"`
		Status     string `json:"status"`
		Version    int64  `json:"version"`
	}

	// ReservationResponse is the success body of reservation creation.
	ReservationResponse struct {
		ReservationID string    `json:"reservationId"`
		ResourceID    string    `json:"resourceId"`
		UserID        string    `json:"userId"`
		FromUTC       time.Time `json:"fromUtc"`
		ToUTC         time.Time `json:"toUtc"`
		Status        string    `json:"status"`
		CreatedAtUTC  time.Time `json:"createdAtUtc"`
	}

	// CancelResponse is the success body of reservation cancellation.
	CancelResponse struct {
		ReservationID  string    `json:"reservationId"`
		ResourceID     string    `json:"resourceId"`
		Status         string    `json:"status"`
		CancelledBy    string    `json:"cancelledBy"`
		CancelledAtUTC time.Time `json:"cancelledAtUtc"`
	}

	// HealthStatus is the /healthz response.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Uptime      string `json:"uptime,omitempty"`
	}
)
