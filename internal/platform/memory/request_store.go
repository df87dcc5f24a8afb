package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// RequestStore implements store.RequestStore.
type RequestStore struct {
	db *Database
}

// NewRequestStore creates a RequestStore over db.
func NewRequestStore(db *Database) *RequestStore {
	return &RequestStore{db: db}
}

var _ store.RequestStore = (*RequestStore)(nil)

// Create implements store.RequestStore.Create
func (s *RequestStore) Create(ctx context.Context, req *domain.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, id := range []uuid.UUID{req.RequestFrom, req.RequestTo} {
		if _, ok := s.db.users[id]; !ok {
			return fmt.Errorf("%w: unknown user %s", store.ErrInvalidEntity, id)
		}
	}
	if _, ok := s.db.requests[req.ID]; ok {
		return store.ErrDuplicate
	}
	if req.Status == domain.RequestStatusPending {
		for _, other := range s.db.requests {
			if other.Status == domain.RequestStatusPending && other.RequestedEntryID == req.RequestedEntryID {
				return store.ErrPendingRequestExists
			}
		}
	}

	s.db.requests[req.ID] = copyRequest(req)
	s.db.requestOrder = append(s.db.requestOrder, req.ID)
	return nil
}

// GetByID implements store.RequestStore.GetByID
func (s *RequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	r, ok := s.db.requests[id]
	if !ok {
		return nil, store.ErrRequestNotFound
	}
	return copyRequest(r), nil
}

// update applies fn to the request when guard accepts it. Caller must not hold mu.
func (s *RequestStore) update(
	id uuid.UUID,
	guard func(*domain.Request) bool,
	fn func(*domain.Request),
) (*domain.Request, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	r, ok := s.db.requests[id]
	if !ok {
		return nil, store.ErrRequestNotFound
	}
	if !guard(r) {
		return nil, store.ErrStaleVersion
	}
	fn(r)
	r.Version++
	r.UpdatedAt = time.Now().UTC()
	return copyRequest(r), nil
}

// CompareAndSetStatus implements store.RequestStore.CompareAndSetStatus
func (s *RequestStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	version int64,
	from, to domain.RequestStatus,
	settled bool,
) (*domain.Request, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidRequestStatus)
	}
	return s.update(id, func(r *domain.Request) bool {
		return r.Version == version && r.Status == from
	}, func(r *domain.Request) {
		r.Status = to
		r.Settled = settled
	})
}

// RevertToPending implements store.RequestStore.RevertToPending
func (s *RequestStore) RevertToPending(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error) {
	return s.update(id, func(r *domain.Request) bool {
		return r.Version == version && r.Status == domain.RequestStatusAccepted && !r.Settled
	}, func(r *domain.Request) {
		r.Status = domain.RequestStatusPending
		r.Settled = false
	})
}

// MarkSettled implements store.RequestStore.MarkSettled
func (s *RequestStore) MarkSettled(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error) {
	return s.update(id, func(r *domain.Request) bool {
		return r.Version == version
	}, func(r *domain.Request) {
		r.Settled = true
	})
}

// Filter implements store.RequestStore.Filter
func (s *RequestStore) Filter(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.RequestFilter,
) ([]*domain.Request, int, error) {
	matches := s.collect(func(r *domain.Request) bool { return filter.Matches(userID, r) })

	// Newest first, matching the SQL ordering.
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].RequestDate.Equal(matches[j].RequestDate) {
			return matches[i].RequestDate.After(matches[j].RequestDate)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})

	page := slices.Clone(window(matches, filter.Limit, filter.Offset))
	if page == nil {
		page = []*domain.Request{}
	}
	return page, len(matches), nil
}

// FindPendingByEntry implements store.RequestStore.FindPendingByEntry
func (s *RequestStore) FindPendingByEntry(ctx context.Context, entryID uuid.UUID) ([]*domain.Request, error) {
	return s.collect(func(r *domain.Request) bool {
		return r.Status == domain.RequestStatusPending && r.References(entryID)
	}), nil
}

// ListPending implements store.RequestStore.ListPending
func (s *RequestStore) ListPending(ctx context.Context, olderThan time.Time) ([]*domain.Request, error) {
	return s.collect(func(r *domain.Request) bool {
		return r.Status == domain.RequestStatusPending && r.UpdatedAt.Before(olderThan)
	}), nil
}

// FindUnsettled implements store.RequestStore.FindUnsettled
func (s *RequestStore) FindUnsettled(ctx context.Context, olderThan time.Time) ([]*domain.Request, error) {
	return s.collect(func(r *domain.Request) bool {
		return r.Status.IsTerminal() && !r.Settled && r.UpdatedAt.Before(olderThan)
	}), nil
}

// collect returns copies of matching requests in creation order.
func (s *RequestStore) collect(keep func(*domain.Request) bool) []*domain.Request {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := []*domain.Request{}
	for _, id := range s.db.requestOrder {
		if r := s.db.requests[id]; keep(r) {
			out = append(out, copyRequest(r))
		}
	}
	return out
}
