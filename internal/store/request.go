package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

// RequestStore defines the interface for swap request persistence.
// Requests are never deleted.
//
// Status changes are compare-and-swap updates keyed by id and Version; a
// mismatch returns ErrStaleVersion and leaves the row unchanged.
type RequestStore interface {
	// Create saves a new pending request.
	// Returns ErrPendingRequestExists if another pending request already targets
	// the same requested entry.
	Create(ctx context.Context, req *domain.Request) error

	// GetByID retrieves a request by its unique ID.
	// Returns ErrRequestNotFound if the request does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error)

	// CompareAndSetStatus moves the request from one status to another and sets
	// Settled, provided the stored Version equals version.
	// Returns ErrRequestNotFound if the request does not exist.
	// Returns ErrStaleVersion if the version or current status differ.
	CompareAndSetStatus(
		ctx context.Context,
		id uuid.UUID,
		version int64,
		from, to domain.RequestStatus,
		settled bool,
	) (*domain.Request, error)

	// RevertToPending returns an unsettled accepted request to pending.
	// Used to unwind an acceptance whose entry moves could not complete.
	// Returns ErrStaleVersion if the request changed or is not unsettled-accepted.
	RevertToPending(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error)

	// MarkSettled records that the side effects of the terminal transition
	// are complete. Returns ErrStaleVersion on a version mismatch.
	MarkSettled(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error)

	// Filter returns the page of requests visible to userID under filter,
	// newest first, and the total number of matches.
	Filter(ctx context.Context, userID uuid.UUID, filter domain.RequestFilter) ([]*domain.Request, int, error)

	// FindPendingByEntry returns pending requests naming entryID as their
	// requested or traded entry.
	FindPendingByEntry(ctx context.Context, entryID uuid.UUID) ([]*domain.Request, error)

	// ListPending returns pending requests last written before olderThan.
	ListPending(ctx context.Context, olderThan time.Time) ([]*domain.Request, error)

	// FindUnsettled returns terminal requests with Settled=false last written
	// before olderThan.
	FindUnsettled(ctx context.Context, olderThan time.Time) ([]*domain.Request, error)
}
