package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// PostgresBookStore implements the store.BookStore interface.
// It needs a *sql.DB rather than a store.DBTX because an upsert spans the
// books and book_isbns tables and runs in its own transaction.
type PostgresBookStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBookStore creates a new PostgreSQL implementation of the BookStore interface.
func NewPostgresBookStore(db *sql.DB, logger *slog.Logger) *PostgresBookStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBookStore{
		db:     db,
		logger: logger.With(slog.String("component", "book_store")),
	}
}

// Ensure PostgresBookStore implements store.BookStore interface
var _ store.BookStore = (*PostgresBookStore)(nil)

// UpsertByISBN implements store.BookStore.UpsertByISBN
func (s *PostgresBookStore) UpsertByISBN(ctx context.Context, book *domain.Book) (*domain.Book, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	book.ApplyDefaults()
	if err := book.Validate(); err != nil {
		log.Warn("book validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("book_id", book.ID.String()))
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var stored *domain.Book
	created := false
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := s.findExisting(ctx, tx, book)
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, store.ErrBookNotFound) {
			return err
		}

		if err := insertBook(ctx, tx, book); err != nil {
			return err
		}
		stored = book
		created = true
		return nil
	})

	// A concurrent upsert claimed one of the ISBNs first; its book wins.
	if err != nil && errors.Is(err, store.ErrDuplicate) {
		log.Debug("isbn claimed concurrently, resolving existing book",
			slog.Any("isbns", book.ISBNs))
		existing, findErr := s.findByAnyISBN(ctx, s.db, book.ISBNs)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		log.Error("failed to upsert book",
			slog.String("error", err.Error()),
			slog.String("book_id", book.ID.String()))
		return nil, false, err
	}

	if created {
		log.Info("book cataloged",
			slog.String("book_id", stored.ID.String()),
			slog.Int("isbn_count", len(stored.ISBNs)))
	}
	return stored, created, nil
}

func insertBook(ctx context.Context, tx *sql.Tx, book *domain.Book) error {
	authors, err := json.Marshal(book.Authors)
	if err != nil {
		return fmt.Errorf("failed to encode authors: %w", err)
	}
	images, err := json.Marshal(book.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (id, title, authors, images, summary, created_at)
		VALUES ($1, $2, ARRAY(SELECT jsonb_array_elements_text($3::jsonb)), $4::jsonb, $5, $6)
	`, book.ID, book.Title, string(authors), string(images), book.Summary, book.CreatedAt)
	if err != nil {
		return MapError(err)
	}

	for i, isbn := range book.ISBNs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO book_isbns (isbn, book_id, ordinal) VALUES ($1, $2, $3)`,
			isbn, book.ID, i)
		if err != nil {
			return MapError(err)
		}
	}
	return nil
}

// findExisting resolves book to a cataloged record: by ISBN when it has
// any, otherwise by title and authors.
func (s *PostgresBookStore) findExisting(ctx context.Context, db store.DBTX, book *domain.Book) (*domain.Book, error) {
	if len(book.ISBNs) > 0 {
		return s.findByAnyISBN(ctx, db, book.ISBNs)
	}

	query, args, err := buildBookSameWorkQuery(book)
	if err != nil {
		return nil, err
	}
	var bookID uuid.UUID
	err = db.QueryRowContext(ctx, query, args...).Scan(&bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("book", "find", "title lookup failed", err)
	}
	return s.getByID(ctx, db, bookID)
}

// findByAnyISBN returns the book owning the first cataloged ISBN in isbns.
func (s *PostgresBookStore) findByAnyISBN(ctx context.Context, db store.DBTX, isbns []string) (*domain.Book, error) {
	for _, isbn := range isbns {
		var bookID uuid.UUID
		err := db.QueryRowContext(ctx, `SELECT book_id FROM book_isbns WHERE isbn = $1`, isbn).Scan(&bookID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, store.NewStoreError("book", "find", "isbn lookup failed", err)
		}
		return s.getByID(ctx, db, bookID)
	}
	return nil, store.ErrBookNotFound
}

func (s *PostgresBookStore) getByID(ctx context.Context, db store.DBTX, id uuid.UUID) (*domain.Book, error) {
	query, args, err := buildBookByIDQuery(id)
	if err != nil {
		return nil, err
	}
	book, err := scanBook(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBookNotFound
		}
		return nil, store.NewStoreError("book", "get", "query failed", err)
	}
	return book, nil
}

// GetByID implements store.BookStore.GetByID
func (s *PostgresBookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Book, error) {
	book, err := s.getByID(ctx, s.db, id)
	if err != nil && !errors.Is(err, store.ErrBookNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get book by ID",
			slog.String("error", err.Error()),
			slog.String("book_id", id.String()))
	}
	return book, err
}

// GetByISBN implements store.BookStore.GetByISBN
func (s *PostgresBookStore) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	books, _, err := s.Search(ctx, domain.ISBNCriteria(domain.NormalizeISBN(isbn)), 1, 0)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, store.ErrBookNotFound
	}
	return books[0], nil
}

// Search implements store.BookStore.Search
func (s *PostgresBookStore) Search(
	ctx context.Context,
	criteria domain.SearchCriteria,
	limit, offset int,
) ([]*domain.Book, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	countQuery, countArgs, err := buildBookSearchCountQuery(criteria)
	if err != nil {
		log.Error("failed to build search count query", slog.String("error", err.Error()))
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		log.Error("failed to count search matches", slog.String("error", err.Error()))
		return nil, 0, store.NewStoreError("book", "search", "count failed", err)
	}
	if total == 0 {
		return []*domain.Book{}, 0, nil
	}

	query, args, err := buildBookSearchQuery(criteria, limit, offset)
	if err != nil {
		log.Error("failed to build search query", slog.String("error", err.Error()))
		return nil, 0, err
	}

	books, err := s.queryBooks(ctx, query, args)
	if err != nil {
		log.Error("failed to search books",
			slog.String("error", err.Error()),
			slog.String("category", string(criteria.Category())))
		return nil, 0, err
	}

	log.Debug("local catalog search",
		slog.String("category", string(criteria.Category())),
		slog.Int("count", len(books)),
		slog.Int("total", total))
	return books, total, nil
}

// List implements store.BookStore.List
func (s *PostgresBookStore) List(ctx context.Context, limit, offset int) ([]*domain.Book, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		log.Error("failed to count books", slog.String("error", err.Error()))
		return nil, 0, store.NewStoreError("book", "list", "count failed", err)
	}

	query, args, err := buildBookListQuery(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	books, err := s.queryBooks(ctx, query, args)
	if err != nil {
		log.Error("failed to list books", slog.String("error", err.Error()))
		return nil, 0, err
	}
	return books, total, nil
}

func (s *PostgresBookStore) queryBooks(ctx context.Context, query string, args []any) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("book", "query", "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	books := []*domain.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, store.NewStoreError("book", "query", "scan failed", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("book", "query", "row iteration failed", err)
	}
	return books, nil
}
