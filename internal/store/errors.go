package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// This is a generic version of the entity-specific not found errors
	// (e.g., ErrUserNotFound, ErrEntryNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a user with the same email).
	ErrDuplicate = errors.New("entity already exists")

	// ErrConflict is returned when a compare-and-swap update finds the row in a
	// different state than the caller expected.
	ErrConflict = errors.New("concurrent modification")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or references an entity that does not exist.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	ErrUserNotFound    = fmt.Errorf("%w: user", ErrNotFound)
	ErrBookNotFound    = fmt.Errorf("%w: book", ErrNotFound)
	ErrEntryNotFound   = fmt.Errorf("%w: library entry", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: request", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrEmailExists indicates that a user with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)

	// ErrUsernameExists indicates that the username is taken.
	ErrUsernameExists = fmt.Errorf("%w: username", ErrDuplicate)

	// ErrEntryExists indicates that the book is already listed in the library.
	ErrEntryExists = fmt.Errorf("%w: library entry", ErrDuplicate)

	// ErrPendingRequestExists indicates that another pending request already
	// targets the library entry.
	ErrPendingRequestExists = fmt.Errorf("%w: pending request for entry", ErrDuplicate)

	// Entity-specific conflicts

	// ErrEntryPending is returned when a library entry cannot be changed
	// because a pending request targets it.
	ErrEntryPending = fmt.Errorf("%w: entry has a pending request", ErrConflict)

	// ErrStaleVersion is returned when the expected version no longer matches.
	ErrStaleVersion = fmt.Errorf("%w: stale version", ErrConflict)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsConflictError checks if the error is a compare-and-swap conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "user", "request")
	Operation string // The operation that failed (e.g., "create", "transfer")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
