package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store.
	// The caller must set PasswordHash; the plaintext Password is never stored.
	// Returns ErrEmailExists or ErrUsernameExists on a uniqueness violation.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// List returns users ordered by member-since date.
	// A nil active returns every user.
	List(ctx context.Context, active *bool) ([]*domain.User, error)

	// Update replaces the mutable fields of an existing user, including IsActive.
	// Returns ErrUserNotFound if the user does not exist.
	// Returns ErrEmailExists or ErrUsernameExists on a uniqueness violation.
	Update(ctx context.Context, user *domain.User) error
}
