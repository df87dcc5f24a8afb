package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Library entry validation errors
var (
	ErrEmptyEntryID     = errors.New("library entry ID cannot be empty")
	ErrEmptyEntryUserID = errors.New("library entry user ID cannot be empty")
	ErrEmptyEntryBookID = errors.New("library entry book ID cannot be empty")
)

// LibraryEntry is one listing of a book in a user's library. The
// HasPendingRequest flag mirrors the existence of a pending Request that
// targets this entry as its requested book.
//
// Version is bumped on every write and is used for compare-and-swap updates.
type LibraryEntry struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	BookID            uuid.UUID `json:"book_id"`
	Book              *Book     `json:"book,omitempty"`
	HasPendingRequest bool      `json:"has_pending_request"`
	Position          int64     `json:"position"`
	Version           int64     `json:"version"`
	AddedAt           time.Time `json:"added_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewLibraryEntry creates a listing of bookID in userID's library.
// Position is assigned by the store.
func NewLibraryEntry(userID, bookID uuid.UUID) (*LibraryEntry, error) {
	now := time.Now().UTC()
	entry := &LibraryEntry{
		ID:        uuid.New(),
		UserID:    userID,
		BookID:    bookID,
		Version:   1,
		AddedAt:   now,
		UpdatedAt: now,
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the LibraryEntry has valid data.
func (e *LibraryEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEntryID
	}
	if e.UserID == uuid.Nil {
		return ErrEmptyEntryUserID
	}
	if e.BookID == uuid.Nil {
		return ErrEmptyEntryBookID
	}
	return nil
}

// LibraryFilter narrows ListEntries. A nil Available returns every entry;
// true returns entries without a pending request, false only pending ones.
type LibraryFilter struct {
	Available *bool
}

// Matches reports whether the entry passes the filter.
func (f LibraryFilter) Matches(e *LibraryEntry) bool {
	if f.Available == nil {
		return true
	}
	return *f.Available != e.HasPendingRequest
}
