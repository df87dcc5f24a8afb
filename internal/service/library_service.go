package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// AddEntryInput names the book to list, either by catalog id or by ISBN.
// BookID wins when both are set.
type AddEntryInput struct {
	BookID uuid.UUID
	ISBN   string
}

// LibraryService manages users' personal libraries.
type LibraryService interface {
	// List returns the user's library in insertion order.
	List(ctx context.Context, userID uuid.UUID, filter domain.LibraryFilter) ([]*domain.LibraryEntry, error)

	// Add lists a cataloged book in the user's library.
	Add(ctx context.Context, userID uuid.UUID, input AddEntryInput) (*domain.LibraryEntry, error)

	// Remove deletes an entry that no pending request targets.
	Remove(ctx context.Context, userID, entryID uuid.UUID) error
}

type libraryServiceImpl struct {
	users   store.UserStore
	books   store.BookStore
	library store.LibraryStore
	logger  *slog.Logger
}

// NewLibraryService creates a LibraryService.
func NewLibraryService(
	users store.UserStore,
	books store.BookStore,
	library store.LibraryStore,
	logger *slog.Logger,
) (LibraryService, error) {
	if users == nil {
		return nil, nilDependency("users")
	}
	if books == nil {
		return nil, nilDependency("books")
	}
	if library == nil {
		return nil, nilDependency("library")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &libraryServiceImpl{
		users:   users,
		books:   books,
		library: library,
		logger:  logger.With(slog.String("component", "library_service")),
	}, nil
}

// List implements LibraryService.List
func (s *libraryServiceImpl) List(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.LibraryFilter,
) ([]*domain.LibraryEntry, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromStore("library.list", err)
	}

	entries, err := s.library.ListEntries(ctx, userID, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list library",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fromStore("library.list", err)
	}
	return entries, nil
}

// Add implements LibraryService.Add
func (s *libraryServiceImpl) Add(
	ctx context.Context,
	userID uuid.UUID,
	input AddEntryInput,
) (*domain.LibraryEntry, error) {
	const op = "library.add"
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromStore(op, err)
	}

	book, err := s.resolveBook(ctx, input)
	if err != nil {
		return nil, err
	}

	entry, err := domain.NewLibraryEntry(userID, book.ID)
	if err != nil {
		return nil, validation(op, err)
	}

	if err := s.library.AddEntry(ctx, entry); err != nil {
		log.Warn("failed to add library entry",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("book_id", book.ID.String()))
		return nil, fromStore(op, err)
	}

	entry.Book = book
	log.Info("book added to library",
		slog.String("user_id", userID.String()),
		slog.String("entry_id", entry.ID.String()))
	return entry, nil
}

func (s *libraryServiceImpl) resolveBook(ctx context.Context, input AddEntryInput) (*domain.Book, error) {
	const op = "library.add"

	if input.BookID != uuid.Nil {
		book, err := s.books.GetByID(ctx, input.BookID)
		if err != nil {
			return nil, fromStore(op, err)
		}
		return book, nil
	}

	isbn := domain.NormalizeISBN(input.ISBN)
	if isbn == "" {
		return nil, E(KindValidation, op, "Missing book_id in request body.", domain.ErrEmptyBookID)
	}
	if !domain.IsValidISBN(isbn) {
		return nil, validation(op, domain.ErrInvalidISBN)
	}

	book, err := s.books.GetByISBN(ctx, isbn)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, E(KindNotFound, op, "Book not found. Search the catalog first.", err)
		}
		return nil, fromStore(op, err)
	}
	return book, nil
}

// Remove implements LibraryService.Remove
func (s *libraryServiceImpl) Remove(ctx context.Context, userID, entryID uuid.UUID) error {
	const op = "library.remove"

	err := s.library.RemoveEntry(ctx, userID, entryID)
	switch {
	case err == nil:
		logger.FromContextOrDefault(ctx, s.logger).Info("book removed from library",
			slog.String("user_id", userID.String()),
			slog.String("entry_id", entryID.String()))
		return nil
	case errors.Is(err, store.ErrEntryPending):
		return E(KindConflict, op, "Book has a pending request and cannot be removed.", err)
	default:
		return fromStore(op, err)
	}
}
