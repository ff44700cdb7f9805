// Package projection contains the query side of the service: the pure
// projector mapping recorded events to idempotent projection ops, the stores
// that apply them, and the worker that drains the queue.
package projection

import "time"

// ProjectionName is the single lag row key; there is one main projection.
const ProjectionName = "main"

// UserRow is one row of the users projection table.
type UserRow struct {
	UserID         string     `json:"userId"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	CreatedAtUTC   time.Time  `json:"createdAtUtc"`
	LastLoginAtUTC *time.Time `json:"lastLoginAtUtc,omitempty"`
}

// ResourceRow is one row of the resources projection table.
type ResourceRow struct {
	ResourceID   string    `json:"resourceId"`
	Name         string    `json:"name"`
	Details      string    `json:"details"`
	Status       string    `json:"status"`
	CreatedAtUTC time.Time `json:"createdAtUtc"`
	UpdatedAtUTC time.Time `json:"updatedAtUtc"`
}

// ReservationRow is one row of the reservations projection table.
type ReservationRow struct {
	ReservationID  string     `json:"reservationId"`
	ResourceID     string     `json:"resourceId"`
	UserID         string     `json:"userId"`
	FromUTC        time.Time  `json:"fromUtc"`
	ToUTC          time.Time  `json:"toUtc"`
	Status         string     `json:"status"`
	CreatedAtUTC   time.Time  `json:"createdAtUtc"`
	CancelledAtUTC *time.Time `json:"cancelledAtUtc"`
}

// LagRow is the single projection-lag indicator row.
type LagRow struct {
	Projection         string    `json:"projection"`
	LastProjectedAtUTC time.Time `json:"lastProjectedAtUtc"`
	EventsBehind       int64     `json:"eventsBehind"`
}

// Op is one idempotent projection operation. Puts are full-item overwrites
// keyed by the aggregate id and updates set attributes to event-derived
// values, so re-delivery produces the same end-state.
type Op interface {
	op()
}

// PutUser overwrites a users-projection row.
type PutUser struct {
	Row UserRow
}

// SetUserLastLogin sets the last-login attribute of a user row.
type SetUserLastLogin struct {
	UserID         string
	LastLoginAtUTC time.Time
}

// PutResource overwrites a resources-projection row.
type PutResource struct {
	Row ResourceRow
}

// UpdateResourceDetails sets name, details and updated-at of a resource row.
type UpdateResourceDetails struct {
	ResourceID   string
	Name         string
	Details      string
	UpdatedAtUTC time.Time
}

// PutReservation overwrites a reservations-projection row.
type PutReservation struct {
	Row ReservationRow
}

// CancelReservation flips a reservation row to cancelled.
type CancelReservation struct {
	ReservationID  string
	CancelledAtUTC time.Time
}

func (PutUser) op()               {}
func (SetUserLastLogin) op()      {}
func (PutResource) op()           {}
func (UpdateResourceDetails) op() {}
func (PutReservation) op()        {}
func (CancelReservation) op()     {}
