package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// PostgresLibraryStore implements the store.LibraryStore interface.
// Every write is a single guarded UPDATE/DELETE; when it matches no row the
// current state is read back to tell "missing" from "wrong state".
type PostgresLibraryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLibraryStore creates a new PostgreSQL implementation of the LibraryStore interface.
func NewPostgresLibraryStore(db store.DBTX, logger *slog.Logger) *PostgresLibraryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLibraryStore{
		db:     db,
		logger: logger.With(slog.String("component", "library_store")),
	}
}

// Ensure PostgresLibraryStore implements store.LibraryStore interface
var _ store.LibraryStore = (*PostgresLibraryStore)(nil)

// AddEntry implements store.LibraryStore.AddEntry
func (s *PostgresLibraryStore) AddEntry(ctx context.Context, entry *domain.LibraryEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		log.Warn("library entry validation failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO library_entries (id, user_id, book_id, has_pending_request, version, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING position
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.BookID,
		entry.HasPendingRequest,
		entry.Version,
		entry.AddedAt,
		entry.UpdatedAt,
	).Scan(&entry.Position)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) || errors.Is(mapped, store.ErrInvalidEntity) {
			log.Warn("library entry rejected",
				slog.String("error", err.Error()),
				slog.String("user_id", entry.UserID.String()),
				slog.String("book_id", entry.BookID.String()))
			return mapped
		}
		log.Error("failed to add library entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entry.ID.String()))
		return store.NewStoreError("library entry", "add", "insert failed", mapped)
	}

	log.Info("library entry added",
		slog.String("entry_id", entry.ID.String()),
		slog.String("user_id", entry.UserID.String()),
		slog.Int64("position", entry.Position))
	return nil
}

// GetEntry implements store.LibraryStore.GetEntry
func (s *PostgresLibraryStore) GetEntry(ctx context.Context, entryID uuid.UUID) (*domain.LibraryEntry, error) {
	entry, err := scanEntryWithBook(s.db.QueryRowContext(ctx, entryWithBookSelect+` WHERE e.id = $1`, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEntryNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get library entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entryID.String()))
		return nil, store.NewStoreError("library entry", "get", "query failed", err)
	}
	return entry, nil
}

// entryState reads the owner and pending flag of an entry.
func (s *PostgresLibraryStore) entryState(ctx context.Context, entryID uuid.UUID) (uuid.UUID, bool, error) {
	var owner uuid.UUID
	var pending bool
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, has_pending_request FROM library_entries WHERE id = $1`, entryID,
	).Scan(&owner, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, store.ErrEntryNotFound
	}
	if err != nil {
		return uuid.Nil, false, store.NewStoreError("library entry", "get", "state query failed", err)
	}
	return owner, pending, nil
}

// RemoveEntry implements store.LibraryStore.RemoveEntry
func (s *PostgresLibraryStore) RemoveEntry(ctx context.Context, userID, entryID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM library_entries
		WHERE id = $1 AND user_id = $2 AND NOT has_pending_request
	`, entryID, userID)
	if err != nil {
		log.Error("failed to remove library entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entryID.String()))
		return store.NewStoreError("library entry", "remove", "delete failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrEntryNotFound); err != nil {
		if !errors.Is(err, store.ErrEntryNotFound) {
			return err
		}
		owner, pending, stateErr := s.entryState(ctx, entryID)
		if stateErr != nil {
			return stateErr
		}
		if owner != userID {
			return store.ErrEntryNotFound
		}
		if pending {
			return store.ErrEntryPending
		}
		return store.ErrConflict
	}

	log.Info("library entry removed",
		slog.String("entry_id", entryID.String()),
		slog.String("user_id", userID.String()))
	return nil
}

// SetPending implements store.LibraryStore.SetPending
func (s *PostgresLibraryStore) SetPending(ctx context.Context, userID, entryID uuid.UUID, pending bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE library_entries
		SET has_pending_request = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND user_id = $2 AND has_pending_request <> $3
	`, entryID, userID, pending, time.Now().UTC())
	if err != nil {
		log.Error("failed to set pending flag",
			slog.String("error", err.Error()),
			slog.String("entry_id", entryID.String()))
		return store.NewStoreError("library entry", "set pending", "update failed", err)
	}

	if err := CheckRowsAffected(result, store.ErrEntryNotFound); err != nil {
		if !errors.Is(err, store.ErrEntryNotFound) {
			return err
		}
		// Nothing changed: either the flag already had this value or the entry is gone.
		owner, _, stateErr := s.entryState(ctx, entryID)
		if stateErr != nil {
			return stateErr
		}
		if owner != userID {
			return store.ErrEntryNotFound
		}
		return nil
	}

	log.Debug("pending flag set",
		slog.String("entry_id", entryID.String()),
		slog.Bool("pending", pending))
	return nil
}

// ClaimPending implements store.LibraryStore.ClaimPending
func (s *PostgresLibraryStore) ClaimPending(ctx context.Context, userID, entryID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		UPDATE library_entries
		SET has_pending_request = TRUE, version = version + 1, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT has_pending_request
	`, entryID, userID, time.Now().UTC())
	if err != nil {
		log.Error("failed to claim entry",
			slog.String("error", err.Error()),
			slog.String("entry_id", entryID.String()))
		return store.NewStoreError("library entry", "claim", "update failed", err)
	}

	if err := CheckRowsAffected(result, store.ErrEntryNotFound); err != nil {
		if !errors.Is(err, store.ErrEntryNotFound) {
			return err
		}
		owner, _, stateErr := s.entryState(ctx, entryID)
		if stateErr != nil {
			return stateErr
		}
		if owner != userID {
			return store.ErrEntryNotFound
		}
		return store.ErrEntryPending
	}
	return nil
}

// TransferEntry implements store.LibraryStore.TransferEntry
func (s *PostgresLibraryStore) TransferEntry(
	ctx context.Context,
	entryID, from, to uuid.UUID,
	pending bool,
) (*domain.LibraryEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("entry_id", entryID.String()),
		slog.String("from", from.String()),
		slog.String("to", to.String()))

	result, err := s.db.ExecContext(ctx, `
		UPDATE library_entries
		SET user_id = $3,
		    has_pending_request = $4,
		    position = NEXTVAL('library_entry_position_seq'),
		    version = version + 1,
		    updated_at = $5
		WHERE id = $1 AND user_id = $2
	`, entryID, from, to, pending, time.Now().UTC())
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrEntryExists) {
			log.Warn("recipient already lists this book")
			return nil, mapped
		}
		log.Error("failed to transfer entry", slog.String("error", err.Error()))
		return nil, store.NewStoreError("library entry", "transfer", "update failed", mapped)
	}

	if err := CheckRowsAffected(result, store.ErrEntryNotFound); err != nil {
		if !errors.Is(err, store.ErrEntryNotFound) {
			return nil, err
		}
		owner, _, stateErr := s.entryState(ctx, entryID)
		if stateErr != nil {
			return nil, stateErr
		}
		if owner != to {
			log.Warn("entry owned by neither party", slog.String("owner", owner.String()))
			return nil, fmt.Errorf("%w: entry %s is owned by %s", store.ErrConflict, entryID, owner)
		}
		log.Debug("entry already transferred")
	} else {
		log.Info("entry transferred", slog.Bool("pending", pending))
	}

	return s.GetEntry(ctx, entryID)
}

// ListEntries implements store.LibraryStore.ListEntries
func (s *PostgresLibraryStore) ListEntries(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.LibraryFilter,
) ([]*domain.LibraryEntry, error) {
	var available sql.NullBool
	if filter.Available != nil {
		available = sql.NullBool{Bool: *filter.Available, Valid: true}
	}
	return s.queryEntries(ctx, entryWithBookSelect+`
		WHERE e.user_id = $1 AND ($2::boolean IS NULL OR e.has_pending_request = NOT $2)
		ORDER BY e.position ASC
	`, userID, available)
}

// HasBook implements store.LibraryStore.HasBook
func (s *PostgresLibraryStore) HasBook(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM library_entries WHERE user_id = $1 AND book_id = $2)`,
		userID, bookID,
	).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("library entry", "has book", "query failed", err)
	}
	return exists, nil
}

// ListPendingEntries implements store.LibraryStore.ListPendingEntries
func (s *PostgresLibraryStore) ListPendingEntries(ctx context.Context, olderThan time.Time) ([]*domain.LibraryEntry, error) {
	return s.queryEntries(ctx, entryWithBookSelect+`
		WHERE e.has_pending_request AND e.updated_at < $1
		ORDER BY e.updated_at ASC
	`, olderThan)
}

func (s *PostgresLibraryStore) queryEntries(ctx context.Context, query string, args ...any) ([]*domain.LibraryEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query library entries", slog.String("error", err.Error()))
		return nil, store.NewStoreError("library entry", "list", "query failed", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []*domain.LibraryEntry{}
	for rows.Next() {
		e, err := scanEntryWithBook(rows)
		if err != nil {
			log.Error("failed to scan library entry", slog.String("error", err.Error()))
			return nil, store.NewStoreError("library entry", "list", "scan failed", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("library entry", "list", "row iteration failed", err)
	}
	return entries, nil
}
