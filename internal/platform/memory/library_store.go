package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// LibraryStore implements store.LibraryStore.
type LibraryStore struct {
	db *Database
}

// NewLibraryStore creates a LibraryStore over db.
func NewLibraryStore(db *Database) *LibraryStore {
	return &LibraryStore{db: db}
}

var _ store.LibraryStore = (*LibraryStore)(nil)

// owned returns userID's entry entryID. Caller holds mu.
func (s *LibraryStore) owned(userID, entryID uuid.UUID) (*domain.LibraryEntry, error) {
	e, ok := s.db.entries[entryID]
	if !ok || e.UserID != userID {
		return nil, store.ErrEntryNotFound
	}
	return e, nil
}

// listsBook reports whether userID has an entry for bookID. Caller holds mu.
func (s *LibraryStore) listsBook(userID, bookID uuid.UUID) bool {
	for _, e := range s.db.entries {
		if e.UserID == userID && e.BookID == bookID {
			return true
		}
	}
	return false
}

func touch(e *domain.LibraryEntry) {
	e.Version++
	e.UpdatedAt = time.Now().UTC()
}

// AddEntry implements store.LibraryStore.AddEntry
func (s *LibraryStore) AddEntry(ctx context.Context, entry *domain.LibraryEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[entry.UserID]; !ok {
		return fmt.Errorf("%w: unknown user %s", store.ErrInvalidEntity, entry.UserID)
	}
	if _, ok := s.db.books[entry.BookID]; !ok {
		return fmt.Errorf("%w: unknown book %s", store.ErrInvalidEntity, entry.BookID)
	}
	if _, ok := s.db.entries[entry.ID]; ok {
		return store.ErrDuplicate
	}
	if s.listsBook(entry.UserID, entry.BookID) {
		return store.ErrEntryExists
	}

	s.db.nextPosition++
	entry.Position = s.db.nextPosition
	stored := *entry
	stored.Book = nil
	s.db.entries[entry.ID] = &stored
	return nil
}

// GetEntry implements store.LibraryStore.GetEntry
func (s *LibraryStore) GetEntry(ctx context.Context, entryID uuid.UUID) (*domain.LibraryEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	e, ok := s.db.entries[entryID]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	return s.db.entryView(e), nil
}

// RemoveEntry implements store.LibraryStore.RemoveEntry
func (s *LibraryStore) RemoveEntry(ctx context.Context, userID, entryID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e, err := s.owned(userID, entryID)
	if err != nil {
		return err
	}
	if e.HasPendingRequest {
		return store.ErrEntryPending
	}
	delete(s.db.entries, entryID)
	return nil
}

// SetPending implements store.LibraryStore.SetPending
func (s *LibraryStore) SetPending(ctx context.Context, userID, entryID uuid.UUID, pending bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e, err := s.owned(userID, entryID)
	if err != nil {
		return err
	}
	if e.HasPendingRequest != pending {
		e.HasPendingRequest = pending
		touch(e)
	}
	return nil
}

// ClaimPending implements store.LibraryStore.ClaimPending
func (s *LibraryStore) ClaimPending(ctx context.Context, userID, entryID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e, err := s.owned(userID, entryID)
	if err != nil {
		return err
	}
	if e.HasPendingRequest {
		return store.ErrEntryPending
	}
	e.HasPendingRequest = true
	touch(e)
	return nil
}

// TransferEntry implements store.LibraryStore.TransferEntry
func (s *LibraryStore) TransferEntry(
	ctx context.Context,
	entryID, from, to uuid.UUID,
	pending bool,
) (*domain.LibraryEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	e, ok := s.db.entries[entryID]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	switch e.UserID {
	case to:
		return s.db.entryView(e), nil
	case from:
	default:
		return nil, fmt.Errorf("%w: entry %s is owned by %s", store.ErrConflict, entryID, e.UserID)
	}
	if s.listsBook(to, e.BookID) {
		return nil, store.ErrEntryExists
	}

	s.db.nextPosition++
	e.UserID = to
	e.Position = s.db.nextPosition
	e.HasPendingRequest = pending
	touch(e)
	return s.db.entryView(e), nil
}

// ListEntries implements store.LibraryStore.ListEntries
func (s *LibraryStore) ListEntries(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.LibraryFilter,
) ([]*domain.LibraryEntry, error) {
	return s.collect(func(e *domain.LibraryEntry) bool {
		return e.UserID == userID && filter.Matches(e)
	}, func(a, b *domain.LibraryEntry) bool {
		return a.Position < b.Position
	}), nil
}

// HasBook implements store.LibraryStore.HasBook
func (s *LibraryStore) HasBook(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.listsBook(userID, bookID), nil
}

// ListPendingEntries implements store.LibraryStore.ListPendingEntries
func (s *LibraryStore) ListPendingEntries(ctx context.Context, olderThan time.Time) ([]*domain.LibraryEntry, error) {
	return s.collect(func(e *domain.LibraryEntry) bool {
		return e.HasPendingRequest && e.UpdatedAt.Before(olderThan)
	}, func(a, b *domain.LibraryEntry) bool {
		return a.UpdatedAt.Before(b.UpdatedAt)
	}), nil
}

func (s *LibraryStore) collect(
	keep func(*domain.LibraryEntry) bool,
	less func(a, b *domain.LibraryEntry) bool,
) []*domain.LibraryEntry {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	entries := []*domain.LibraryEntry{}
	for _, e := range s.db.entries {
		if keep(e) {
			entries = append(entries, s.db.entryView(e))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	return entries
}
