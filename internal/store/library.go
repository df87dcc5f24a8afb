package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

// LibraryStore defines the interface for library entry persistence.
//
// Every mutating method touches exactly one row and is guarded by the row's
// current state (owner, pending flag). Successful writes bump Version.
type LibraryStore interface {
	// AddEntry appends entry to its owner's library and assigns Position.
	// Returns ErrEntryExists if the user already lists the book.
	// Returns ErrInvalidEntity if the user or book does not exist.
	AddEntry(ctx context.Context, entry *domain.LibraryEntry) error

	// GetEntry retrieves a library entry with its Book populated.
	// Returns ErrEntryNotFound if the entry does not exist.
	GetEntry(ctx context.Context, entryID uuid.UUID) (*domain.LibraryEntry, error)

	// RemoveEntry deletes an entry from userID's library.
	// Returns ErrEntryNotFound if userID has no such entry.
	// Returns ErrEntryPending if a pending request targets the entry.
	RemoveEntry(ctx context.Context, userID, entryID uuid.UUID) error

	// SetPending sets the entry's pending flag. Setting the current value
	// succeeds without bumping the version.
	// Returns ErrEntryNotFound if userID has no such entry.
	SetPending(ctx context.Context, userID, entryID uuid.UUID, pending bool) error

	// ClaimPending flips the pending flag from false to true.
	// Returns ErrEntryNotFound if userID has no such entry.
	// Returns ErrEntryPending if the flag is already set.
	ClaimPending(ctx context.Context, userID, entryID uuid.UUID) error

	// TransferEntry moves the entry from one owner to another, appends it to
	// the recipient's library and sets its pending flag. An entry already owned
	// by to is left untouched and returned, so replays succeed.
	// Returns ErrEntryNotFound if the entry does not exist.
	// Returns ErrConflict if the entry is owned by neither user.
	// Returns ErrEntryExists if the recipient already lists the same book.
	TransferEntry(ctx context.Context, entryID, from, to uuid.UUID, pending bool) (*domain.LibraryEntry, error)

	// ListEntries returns userID's library in insertion order with books populated.
	ListEntries(ctx context.Context, userID uuid.UUID, filter domain.LibraryFilter) ([]*domain.LibraryEntry, error)

	// HasBook reports whether userID lists bookID.
	HasBook(ctx context.Context, userID, bookID uuid.UUID) (bool, error)

	// ListPendingEntries returns entries whose pending flag is set and that
	// were last written before olderThan.
	ListPendingEntries(ctx context.Context, olderThan time.Time) ([]*domain.LibraryEntry, error)
}
