// Package memory implements the store interfaces in process memory.
//
// It backs the "memory" storage driver and the service tests. All stores
// created from one Database share a single lock, so the guarded updates the
// interfaces describe are atomic here too. Values are copied on the way in
// and out; callers never hold pointers into the maps.
package memory

import (
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

// Database is the shared state behind the in-memory stores.
type Database struct {
	mu sync.RWMutex

	users     map[uuid.UUID]*domain.User
	userOrder []uuid.UUID

	books     map[uuid.UUID]*domain.Book
	bookOrder []uuid.UUID
	isbns     map[string]uuid.UUID

	entries      map[uuid.UUID]*domain.LibraryEntry
	nextPosition int64

	requests     map[uuid.UUID]*domain.Request
	requestOrder []uuid.UUID
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		users:    make(map[uuid.UUID]*domain.User),
		books:    make(map[uuid.UUID]*domain.Book),
		isbns:    make(map[string]uuid.UUID),
		entries:  make(map[uuid.UUID]*domain.LibraryEntry),
		requests: make(map[uuid.UUID]*domain.Request),
	}
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Password = ""
	return &c
}

func copyBook(b *domain.Book) *domain.Book {
	c := *b
	c.ISBNs = slices.Clone(b.ISBNs)
	c.Authors = slices.Clone(b.Authors)
	c.Images = maps.Clone(b.Images)
	return &c
}

func copyRequest(r *domain.Request) *domain.Request {
	c := *r
	if r.TradedEntryID != nil {
		id := *r.TradedEntryID
		c.TradedEntryID = &id
	}
	if r.TradedBookID != nil {
		id := *r.TradedBookID
		c.TradedBookID = &id
	}
	return &c
}

// entryView copies an entry and joins its book. Caller holds mu.
func (db *Database) entryView(e *domain.LibraryEntry) *domain.LibraryEntry {
	c := *e
	c.Book = nil
	if b, ok := db.books[e.BookID]; ok {
		c.Book = copyBook(b)
	}
	return &c
}
