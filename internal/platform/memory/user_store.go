package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// UserStore implements store.UserStore.
type UserStore struct {
	db *Database
}

// NewUserStore creates a UserStore over db.
func NewUserStore(db *Database) *UserStore {
	return &UserStore{db: db}
}

var _ store.UserStore = (*UserStore)(nil)

// checkUnique reports a taken email or username, ignoring the user with id self.
// Caller holds mu.
func (s *UserStore) checkUnique(u *domain.User, self uuid.UUID) error {
	for id, other := range s.db.users {
		if id == self {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) {
			return store.ErrEmailExists
		}
		if other.Username == u.Username {
			return store.ErrUsernameExists
		}
	}
	return nil
}

// Create implements store.UserStore.Create
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil || user.PasswordHash == "" {
		return fmt.Errorf("%w: user requires an id and a password hash", store.ErrInvalidEntity)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[user.ID]; ok {
		return store.ErrDuplicate
	}
	if err := s.checkUnique(user, user.ID); err != nil {
		return err
	}
	s.db.users[user.ID] = copyUser(user)
	s.db.userOrder = append(s.db.userOrder, user.ID)
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return copyUser(u), nil
}

// List implements store.UserStore.List
func (s *UserStore) List(ctx context.Context, active *bool) ([]*domain.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	users := []*domain.User{}
	for _, id := range s.db.userOrder {
		u := s.db.users[id]
		if active != nil && u.IsActive != *active {
			continue
		}
		users = append(users, copyUser(u))
	}
	return users, nil
}

// Update implements store.UserStore.Update
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	existing, ok := s.db.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	if err := s.checkUnique(user, user.ID); err != nil {
		return err
	}

	updated := copyUser(user)
	updated.MemberSince = existing.MemberSince
	if updated.PasswordHash == "" {
		updated.PasswordHash = existing.PasswordHash
	}
	s.db.users[user.ID] = updated
	return nil
}
