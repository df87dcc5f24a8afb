package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/service/auth"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// UserInput carries the editable fields of a user account. Password is
// required on create and optional on update.
type UserInput struct {
	FirstName   string
	LastName    string
	Email       string
	Username    string
	Password    string
	PhoneNumber string
	Address     domain.Address
}

// UserService manages user accounts.
type UserService interface {
	// List returns users; a nil active returns everyone.
	List(ctx context.Context, active *bool) ([]*domain.User, error)

	// Get returns one user.
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// Create registers a new active user.
	Create(ctx context.Context, input UserInput) (*domain.User, error)

	// Update replaces the editable fields of a user.
	Update(ctx context.Context, id uuid.UUID, input UserInput) (*domain.User, error)

	// Deactivate soft-disables a user. Deactivating twice is not an error.
	Deactivate(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type userServiceImpl struct {
	users  store.UserStore
	hasher auth.PasswordHasher
	logger *slog.Logger
}

// NewUserService creates a UserService.
// It returns an error if any of the required dependencies are nil.
func NewUserService(users store.UserStore, hasher auth.PasswordHasher, logger *slog.Logger) (UserService, error) {
	if users == nil {
		return nil, nilDependency("users")
	}
	if hasher == nil {
		return nil, nilDependency("hasher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &userServiceImpl{
		users:  users,
		hasher: hasher,
		logger: logger.With(slog.String("component", "user_service")),
	}, nil
}

func nilDependency(name string) error {
	return fmt.Errorf("%w: %s cannot be nil", domain.ErrValidation, name)
}

// List implements UserService.List
func (s *userServiceImpl) List(ctx context.Context, active *bool) ([]*domain.User, error) {
	users, err := s.users.List(ctx, active)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list users",
			slog.String("error", err.Error()))
		return nil, fromStore("user.list", err)
	}
	return users, nil
}

// Get implements UserService.Get
func (s *userServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore("user.get", err)
	}
	return user, nil
}

// Create implements UserService.Create
func (s *userServiceImpl) Create(ctx context.Context, input UserInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(
		input.FirstName,
		input.LastName,
		strings.ToLower(strings.TrimSpace(input.Email)),
		input.Username,
		input.Password,
		input.PhoneNumber,
		input.Address,
	)
	if err != nil {
		return nil, validation("user.create", err)
	}

	if err := s.hashPassword(user); err != nil {
		log.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, E(KindInternal, "user.create", "Internal server error occured.", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		log.Warn("failed to create user",
			slog.String("error", err.Error()),
			slog.String("username", user.Username))
		return nil, fromStore("user.create", err)
	}

	log.Info("user created", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Update implements UserService.Update
func (s *userServiceImpl) Update(ctx context.Context, id uuid.UUID, input UserInput) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore("user.update", err)
	}

	user.FirstName = strings.TrimSpace(input.FirstName)
	user.LastName = strings.TrimSpace(input.LastName)
	user.Email = strings.ToLower(strings.TrimSpace(input.Email))
	user.Username = strings.TrimSpace(input.Username)
	user.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	user.Address = input.Address
	user.Password = input.Password
	user.UpdatedAt = time.Now().UTC()

	if err := user.Validate(); err != nil {
		return nil, validation("user.update", err)
	}

	if user.Password != "" {
		if err := s.hashPassword(user); err != nil {
			log.Error("failed to hash password", slog.String("error", err.Error()))
			return nil, E(KindInternal, "user.update", "Internal server error occured.", err)
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		log.Warn("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return nil, fromStore("user.update", err)
	}

	return user, nil
}

// Deactivate implements UserService.Deactivate
func (s *userServiceImpl) Deactivate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore("user.deactivate", err)
	}
	if !user.IsActive {
		return user, nil
	}

	user.Deactivate()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fromStore("user.deactivate", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("user deactivated",
		slog.String("user_id", id.String()))
	return user, nil
}

func (s *userServiceImpl) hashPassword(user *domain.User) error {
	hash, err := s.hasher.Hash(user.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.Password = ""
	return nil
}
