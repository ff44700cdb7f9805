package projection

import "context"

// ReservationFilter filters and paginates the reservations projection.
// Cursor is the opaque base64url token returned by a previous page; empty
// means start from the beginning.
type ReservationFilter struct {
	UserID string
	Status string
	Limit  int64
	Cursor string
}

// ReservationPage is one page of reservations. NextCursor is empty on the
// last page.
type ReservationPage struct {
	Items      []ReservationRow
	NextCursor string
}

// Store owns the query-side tables. Apply is idempotent per op, so the
// at-least-once worker can re-deliver safely; the read helpers serve the
// command builders (email uniqueness, existence checks) and the list API.
type Store interface {
	// Apply applies one projection op.
	Apply(ctx context.Context, op Op) error

	// UpsertLag overwrites the projection-lag indicator row.
	UpsertLag(ctx context.Context, lag LagRow) error

	// GetLag returns the lag indicator row, or nil when never projected.
	GetLag(ctx context.Context) (*LagRow, error)

	// GetUser returns a user row by id, or nil when absent.
	GetUser(ctx context.Context, userID string) (*UserRow, error)

	// FindUserByEmail returns the user row with the given email, or nil.
	FindUserByEmail(ctx context.Context, email string) (*UserRow, error)

	// GetResource returns a resource row by id, or nil when absent.
	GetResource(ctx context.Context, resourceID string) (*ResourceRow, error)

	// FindResourceByName returns the resource row with the given name, or nil.
	FindResourceByName(ctx context.Context, name string) (*ResourceRow, error)

	// ListReservations returns one page of reservations matching the filter.
	ListReservations(ctx context.Context, filter ReservationFilter) (*ReservationPage, error)
}
