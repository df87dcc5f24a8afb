package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// BookStore implements store.BookStore.
type BookStore struct {
	db *Database
}

// NewBookStore creates a BookStore over db.
func NewBookStore(db *Database) *BookStore {
	return &BookStore{db: db}
}

var _ store.BookStore = (*BookStore)(nil)

// UpsertByISBN implements store.BookStore.UpsertByISBN
func (s *BookStore) UpsertByISBN(ctx context.Context, book *domain.Book) (*domain.Book, bool, error) {
	book.ApplyDefaults()
	if err := book.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, isbn := range book.ISBNs {
		if id, ok := s.db.isbns[isbn]; ok {
			return copyBook(s.db.books[id]), false, nil
		}
	}
	if len(book.ISBNs) == 0 {
		for _, id := range s.db.bookOrder {
			if existing := s.db.books[id]; existing.SameWork(book) {
				return copyBook(existing), false, nil
			}
		}
	}
	if _, ok := s.db.books[book.ID]; ok {
		return nil, false, store.ErrDuplicate
	}

	s.db.books[book.ID] = copyBook(book)
	s.db.bookOrder = append(s.db.bookOrder, book.ID)
	for _, isbn := range book.ISBNs {
		s.db.isbns[isbn] = book.ID
	}
	return copyBook(book), true, nil
}

// GetByID implements store.BookStore.GetByID
func (s *BookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	b, ok := s.db.books[id]
	if !ok {
		return nil, store.ErrBookNotFound
	}
	return copyBook(b), nil
}

// GetByISBN implements store.BookStore.GetByISBN
func (s *BookStore) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, ok := s.db.isbns[domain.NormalizeISBN(isbn)]
	if !ok {
		return nil, store.ErrBookNotFound
	}
	return copyBook(s.db.books[id]), nil
}

// Search implements store.BookStore.Search
func (s *BookStore) Search(
	ctx context.Context,
	criteria domain.SearchCriteria,
	limit, offset int,
) ([]*domain.Book, int, error) {
	if criteria == nil {
		return nil, 0, domain.ErrInvalidSearchCriteria
	}

	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var matches []*domain.Book
	for _, id := range s.db.bookOrder {
		if b := s.db.books[id]; domain.MatchBook(criteria, b) {
			matches = append(matches, b)
		}
	}
	return copyPage(matches, limit, offset), len(matches), nil
}

// List implements store.BookStore.List
func (s *BookStore) List(ctx context.Context, limit, offset int) ([]*domain.Book, int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	all := make([]*domain.Book, 0, len(s.db.bookOrder))
	for _, id := range s.db.bookOrder {
		all = append(all, s.db.books[id])
	}
	return copyPage(all, limit, offset), len(all), nil
}

func copyPage(books []*domain.Book, limit, offset int) []*domain.Book {
	page := []*domain.Book{}
	for _, b := range window(books, limit, offset) {
		page = append(page, copyBook(b))
	}
	return page
}

// window applies offset/limit to items; limit <= 0 means no limit.
func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
