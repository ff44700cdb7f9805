package projection

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is a thread-safe in-memory projection store for tests and
// single-process setups.
type MemoryStore struct {
	mutex        sync.RWMutex
	users        map[string]UserRow
	resources    map[string]ResourceRow
	reservations map[string]ReservationRow
	lag          *LagRow
}

// NewMemoryStore creates an empty in-memory projection store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]UserRow),
		resources:    make(map[string]ResourceRow),
		reservations: make(map[string]ReservationRow),
	}
}

// Apply applies one projection op.
func (s *MemoryStore) Apply(_ context.Context, op Op) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch o := op.(type) {
	case PutUser:
		s.users[o.Row.UserID] = o.Row

	case SetUserLastLogin:
		row, ok := s.users[o.UserID]
		if !ok {
			return nil
		}

		lastLogin := o.LastLoginAtUTC
		row.LastLoginAtUTC = &lastLogin
		s.users[o.UserID] = row

	case PutResource:
		s.resources[o.Row.ResourceID] = o.Row

	case UpdateResourceDetails:
		row, ok := s.resources[o.ResourceID]
		if !ok {
			return nil
		}

		row.Name = o.Name
		row.Details = o.Details
		row.UpdatedAtUTC = o.UpdatedAtUTC
		s.resources[o.ResourceID] = row

	case PutReservation:
		s.reservations[o.Row.ReservationID] = o.Row

	case CancelReservation:
		row, ok := s.reservations[o.ReservationID]
		if !ok {
			return nil
		}

		cancelledAt := o.CancelledAtUTC
		row.Status = "cancelled"
		row.CancelledAtUTC = &cancelledAt
		s.reservations[o.ReservationID] = row

	default:
		return fmt.Errorf("unknown projection op %T", op)
	}

	return nil
}

// UpsertLag overwrites the lag row.
func (s *MemoryStore) UpsertLag(_ context.Context, lag LagRow) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lag.Projection = ProjectionName
	s.lag = &lag

	return nil
}

// GetLag returns the lag row, or nil when the worker has never projected.
func (s *MemoryStore) GetLag(context.Context) (*LagRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.lag == nil {
		return nil, nil
	}

	lag := *s.lag

	return &lag, nil
}

// GetUser returns a user row by id, or nil when absent.
func (s *MemoryStore) GetUser(_ context.Context, userID string) (*UserRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	row, ok := s.users[userID]
	if !ok {
		return nil, nil
	}

	return &row, nil
}

// FindUserByEmail returns the user row with the given email, or nil.
func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*UserRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, row := range s.users {
		if row.Email == email {
			found := row

			return &found, nil
		}
	}

	return nil, nil
}

// GetResource returns a resource row by id, or nil when absent.
func (s *MemoryStore) GetResource(_ context.Context, resourceID string) (*ResourceRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	row, ok := s.resources[resourceID]
	if !ok {
		return nil, nil
	}

	return &row, nil
}

// FindResourceByName returns the resource row with the given name, or nil.
func (s *MemoryStore) FindResourceByName(_ context.Context, name string) (*ResourceRow, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, row := range s.resources {
		if row.Name == name {
			found := row

			return &found, nil
		}
	}

	return nil, nil
}

// ListReservations returns one page of reservations matching the filter.
// Rows are ordered by reservation id so cursors are stable.
func (s *MemoryStore) ListReservations(_ context.Context, filter ReservationFilter) (*ReservationPage, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.reservations))

	for id, row := range s.reservations {
		if filter.UserID != "" && row.UserID != filter.UserID {
			continue
		}

		if filter.Status != "" && row.Status != filter.Status {
			continue
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	start := 0

	if filter.Cursor != "" {
		decoded, err := base64.URLEncoding.DecodeString(filter.Cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cursor: %w", err)
		}

		offset, err := strconv.Atoi(string(decoded))
		if err != nil {
			return nil, fmt.Errorf("failed to decode cursor: %w", err)
		}

		start = offset
	}

	if start > len(ids) {
		start = len(ids)
	}

	end := len(ids)
	if filter.Limit > 0 && start+int(filter.Limit) < end {
		end = start + int(filter.Limit)
	}

	page := &ReservationPage{Items: make([]ReservationRow, 0, end-start)}
	for _, id := range ids[start:end] {
		page.Items = append(page.Items, s.reservations[id])
	}

	if end < len(ids) {
		page.NextCursor = base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(end)))
	}

	return page, nil
}
