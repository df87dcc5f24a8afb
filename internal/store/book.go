package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

// BookStore defines the interface for the book catalog.
type BookStore interface {
	// UpsertByISBN stores book unless one of its ISBNs is already cataloged,
	// in which case the existing book is returned and created is false.
	// A book without any ISBN resolves to an existing ISBN-less book with
	// the same title and authors (see domain.Book.SameWork).
	UpsertByISBN(ctx context.Context, book *domain.Book) (stored *domain.Book, created bool, err error)

	// GetByID retrieves a book by its unique ID.
	// Returns ErrBookNotFound if the book does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error)

	// GetByISBN retrieves a book by any of its normalized ISBNs.
	// Returns ErrBookNotFound if no book carries the ISBN.
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)

	// Search returns one page of cataloged books matching the criteria: exact
	// ISBN, or a case-insensitive substring of an author or the title. The
	// total counts every match, not just the page.
	// An empty result is not an error.
	Search(ctx context.Context, criteria domain.SearchCriteria, limit, offset int) ([]*domain.Book, int, error)

	// List returns one page of the catalog and the total number of books.
	List(ctx context.Context, limit, offset int) ([]*domain.Book, int, error)
}
