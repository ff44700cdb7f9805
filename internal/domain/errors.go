// Package domain contains the pure decision logic for the user and resource
// aggregates: tagged event and command unions, fold functions, and deciders.
// Nothing in this package performs I/O.
package domain

import "fmt"

// Rejection codes emitted by the deciders. The HTTP layer maps these onto
// response statuses; the deciders themselves know nothing about transport.
const (
	CodeInvalidRequest              = "INVALID_REQUEST"
	CodeUserAlreadyExists           = "USER_ALREADY_EXISTS"
	CodeInvalidCredentials          = "INVALID_CREDENTIALS"
	CodeForbidden                   = "FORBIDDEN"
	CodeResourceAlreadyExists       = "RESOURCE_ALREADY_EXISTS"
	CodeResourceNotFound            = "RESOURCE_NOT_FOUND"
	CodeInvalidInterval             = "INVALID_INTERVAL"
	CodeReservationInPast           = "RESERVATION_IN_PAST"
	CodeReservationOverlap          = "RESERVATION_OVERLAP"
	CodeReservationNotFound         = "RESERVATION_NOT_FOUND"
	CodeReservationAlreadyCancelled = "RESERVATION_ALREADY_CANCELLED"
	CodeUnauthorizedCancel          = "UNAUTHORIZED_CANCEL"
)

// Error is a decider rejection. It carries a stable machine-readable code, a
// human-readable reason, and optional metadata for the error envelope.
type Error struct {
	Code   string
	Reason string
	Meta   map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// NewError creates a decider rejection with the given code and reason.
func NewError(code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// WithMeta attaches metadata to the rejection and returns it.
func (e *Error) WithMeta(meta map[string]any) *Error {
	e.Meta = meta

	return e
}
