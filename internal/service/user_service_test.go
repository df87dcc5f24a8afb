package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/service/auth"
	"github.com/imhighyat/book-swap-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserStore is a testify mock of store.UserStore.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context, active *bool) ([]*domain.User, error) {
	args := m.Called(ctx, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserStore) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func validUserInput() UserInput {
	return UserInput{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "Ada@Example.com",
		Username:    "ada",
		Password:    "analytical",
		PhoneNumber: "555-0101",
		Address:     domain.Address{Street: "12 St James's Sq", City: "London", State: "LDN", Zip: "SW1Y"},
	}
}

func newTestUserService(t *testing.T, users store.UserStore) UserService {
	t.Helper()
	svc, err := NewUserService(users, auth.NewBcryptHasher(bcrypt.MinCost), discardLogger())
	require.NoError(t, err)
	return svc
}

func TestNewUserServiceRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewUserService(nil, auth.NewBcryptHasher(bcrypt.MinCost), nil)
	assert.Error(t, err)
	_, err = NewUserService(&MockUserStore{}, nil, nil)
	assert.Error(t, err)
}

func TestUserServiceCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hashes the password", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Password == "" &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("analytical")) == nil
		})).Return(nil)

		user, err := newTestUserService(t, users).Create(ctx, validUserInput())
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", user.Email)
		assert.True(t, user.IsActive)
		users.AssertExpectations(t)
	})

	t.Run("invalid input never reaches the store", func(t *testing.T) {
		users := &MockUserStore{}
		input := validUserInput()
		input.Password = "short"

		_, err := newTestUserService(t, users).Create(ctx, input)
		assert.ErrorIs(t, err, ErrValidation)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("Create", ctx, mock.Anything).Return(store.ErrEmailExists)

		_, err := newTestUserService(t, users).Create(ctx, validUserInput())
		assert.ErrorIs(t, err, ErrConflict)
		msg, ok := MessageOf(err)
		assert.True(t, ok)
		assert.Equal(t, "Email is already registered.", msg)
	})
}

func TestUserServiceUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	existing := func() *domain.User {
		u, err := domain.NewUser("Ada", "Lovelace", "ada@example.com", "ada", "analytical", "555",
			domain.Address{Street: "s", City: "c", State: "st", Zip: "z"})
		require.NoError(t, err)
		u.Password = ""
		u.PasswordHash = "old-hash"
		return u
	}

	t.Run("keeps the hash without a new password", func(t *testing.T) {
		u := existing()
		users := &MockUserStore{}
		users.On("GetByID", ctx, u.ID).Return(u, nil)
		users.On("Update", ctx, mock.MatchedBy(func(got *domain.User) bool {
			return got.PasswordHash == "old-hash" && got.FirstName == "Augusta"
		})).Return(nil)

		input := validUserInput()
		input.FirstName = "Augusta"
		input.Password = ""
		updated, err := newTestUserService(t, users).Update(ctx, u.ID, input)
		require.NoError(t, err)
		assert.Equal(t, "Augusta", updated.FirstName)
		users.AssertExpectations(t)
	})

	t.Run("rehashes a new password", func(t *testing.T) {
		u := existing()
		users := &MockUserStore{}
		users.On("GetByID", ctx, u.ID).Return(u, nil)
		users.On("Update", ctx, mock.MatchedBy(func(got *domain.User) bool {
			return got.PasswordHash != "old-hash" && got.Password == ""
		})).Return(nil)

		_, err := newTestUserService(t, users).Update(ctx, u.ID, validUserInput())
		require.NoError(t, err)
		users.AssertExpectations(t)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := &MockUserStore{}
		id := uuid.New()
		users.On("GetByID", ctx, id).Return(nil, store.ErrUserNotFound)

		_, err := newTestUserService(t, users).Update(ctx, id, validUserInput())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserServiceDeactivate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	u := &domain.User{ID: uuid.New(), IsActive: true, PasswordHash: "h"}
	users := &MockUserStore{}
	users.On("GetByID", ctx, u.ID).Return(u, nil).Once()
	users.On("Update", ctx, mock.MatchedBy(func(got *domain.User) bool { return !got.IsActive })).Return(nil).Once()

	svc := newTestUserService(t, users)
	got, err := svc.Deactivate(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Already inactive: no second write.
	users.On("GetByID", ctx, u.ID).Return(got, nil).Once()
	_, err = svc.Deactivate(ctx, u.ID)
	require.NoError(t, err)
	users.AssertNumberOfCalls(t, "Update", 1)
}

func TestUserServiceList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	active := true
	users := &MockUserStore{}
	users.On("List", ctx, &active).Return([]*domain.User{{ID: uuid.New()}}, nil)

	got, err := newTestUserService(t, users).List(ctx, &active)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
