package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/imhighyat/book-swap-api/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// uniqueConstraintErrors maps named unique constraints from the migrations
// onto the store's entity-specific duplicate errors.
var uniqueConstraintErrors = map[string]error{
	"users_email_key":               store.ErrEmailExists,
	"users_username_key":            store.ErrUsernameExists,
	"library_entries_user_book_key": store.ErrEntryExists,
	"requests_pending_entry_key":    store.ErrPendingRequestExists,
}

// MapError translates driver errors into store sentinels, keeping the
// original error in the chain. Errors without a mapping are returned as is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		if specific, ok := uniqueConstraintErrors[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %v", specific, err)
		}
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case codeForeignKeyViolation, codeCheckViolation:
		return fmt.Errorf("%w: constraint %s: %v", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case codeNotNullViolation:
		return fmt.Errorf("%w: column %s: %v", store.ErrInvalidEntity, pgErr.ColumnName, err)
	case codeSerializationFailure, codeDeadlockDetected:
		// Two transitions raced on the same rows; callers treat it like a
		// failed compare-and-swap.
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

// CheckRowsAffected returns notFound when an UPDATE or DELETE touched no rows.
// A nil notFound falls back to store.ErrNotFound.
func CheckRowsAffected(result sql.Result, notFound error) error {
	if result == nil {
		return errors.New("nil result provided to CheckRowsAffected")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if notFound == nil {
		return store.ErrNotFound
	}
	return notFound
}
