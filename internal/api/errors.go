// Package api provides the HTTP command transport for the Reserva service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/reserva-io/reserva/internal/api/middleware"
	"github.com/reserva-io/reserva/internal/domain"
	"github.com/reserva-io/reserva/internal/eventstore"
	"github.com/reserva-io/reserva/internal/idempotency"
)

// Transport-level error codes. Decider-level codes live in the domain
// package; these are raised by the HTTP layer and the command builders.
const (
	CodeMissingIdempotencyKey   = "MISSING_IDEMPOTENCY_KEY"
	CodeIdempotencyHashMismatch = "IDEMPOTENCY_HASH_MISMATCH"
	CodeVersionConflict         = "VERSION_CONFLICT"
	CodeStreamGapDetected       = "STREAM_GAP_DETECTED"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeBootstrapForbidden      = "BOOTSTRAP_FORBIDDEN"
	CodeResourceNameTaken       = "RESOURCE_NAME_TAKEN"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeInternalError           = "INTERNAL_ERROR"
)

// statusByCode maps every error code to its HTTP status.
var statusByCode = map[string]int{
	domain.CodeInvalidRequest:              http.StatusBadRequest,
	CodeMissingIdempotencyKey:              http.StatusBadRequest,
	domain.CodeInvalidInterval:             http.StatusBadRequest,
	domain.CodeReservationInPast:           http.StatusBadRequest,
	domain.CodeInvalidCredentials:          http.StatusUnauthorized,
	CodeUnauthorized:                       http.StatusUnauthorized,
	domain.CodeForbidden:                   http.StatusForbidden,
	domain.CodeUnauthorizedCancel:          http.StatusForbidden,
	CodeBootstrapForbidden:                 http.StatusForbidden,
	domain.CodeResourceNotFound:            http.StatusNotFound,
	domain.CodeReservationNotFound:         http.StatusNotFound,
	CodeUserNotFound:                       http.StatusNotFound,
	CodeResourceNameTaken:                  http.StatusConflict,
	domain.CodeResourceAlreadyExists:       http.StatusConflict,
	domain.CodeUserAlreadyExists:           http.StatusConflict,
	domain.CodeReservationOverlap:          http.StatusConflict,
	domain.CodeReservationAlreadyCancelled: http.StatusConflict,
	CodeVersionConflict:                    http.StatusConflict,
	CodeIdempotencyHashMismatch:            http.StatusConflict,
	CodeStreamGapDetected:                  http.StatusInternalServerError,
	CodeInternalError:                      http.StatusInternalServerError,
}

// StatusForCode returns the HTTP status for an error code, defaulting to 500
// for codes outside the taxonomy.
func StatusForCode(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// ErrorBody is the wire shape of one error.
type ErrorBody struct {
	Code   string         `json:"code"`
	Reason string         `json:"reason"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ErrorEnvelope is the response body for every failed request.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteError writes an error envelope with the status mapped from the code.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, body ErrorBody) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForCode(body.Code))

	if err := json.NewEncoder(w).Encode(ErrorEnvelope{Error: body}); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("code", body.Code),
			slog.String("error", err.Error()),
		)
	}
}

// WriteFailure translates any command execution error into the error
// envelope: domain rejections keep their code and metadata, store sentinels
// map to their taxonomy codes, everything else is an internal error.
func WriteFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var rejection *domain.Error
	if errors.As(err, &rejection) {
		WriteError(w, r, logger, ErrorBody{
			Code:   rejection.Code,
			Reason: rejection.Reason,
			Meta:   rejection.Meta,
		})

		return
	}

	var gap *eventstore.GapError
	if errors.As(err, &gap) {
		WriteError(w, r, logger, ErrorBody{
			Code:   CodeStreamGapDetected,
			Reason: "stream read is missing events",
			Meta: map[string]any{
				"expected": gap.Expected,
				"actual":   gap.Actual,
			},
		})

		return
	}

	switch {
	case errors.Is(err, eventstore.ErrVersionConflict):
		WriteError(w, r, logger, ErrorBody{
			Code:   CodeVersionConflict,
			Reason: "concurrent write on the same stream",
		})

	case errors.Is(err, idempotency.ErrMissingKey):
		WriteError(w, r, logger, ErrorBody{
			Code:   CodeMissingIdempotencyKey,
			Reason: "Idempotency-Key header is required",
		})

	case errors.Is(err, idempotency.ErrHashMismatch):
		WriteError(w, r, logger, ErrorBody{
			Code:   CodeIdempotencyHashMismatch,
			Reason: "idempotency key reused with different content",
		})

	default:
		logger.Error("Command execution failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteError(w, r, logger, ErrorBody{
			Code:   CodeInternalError,
			Reason: "an unexpected error occurred while processing the request",
		})
	}
}
