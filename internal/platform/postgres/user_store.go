package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.PhoneNumber,
		user.Address.Street,
		user.Address.City,
		user.Address.State,
		user.Address.Zip,
		user.IsActive,
		user.MemberSince,
		user.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Warn("duplicate user on create",
				slog.String("user_id", user.ID.String()),
				slog.String("error", err.Error()))
			return mapped
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return store.NewStoreError("user", "create", "insert failed", mapped)
	}

	log.Info("user created successfully", slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user not found", slog.String("user_id", id.String()))
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user by ID",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return nil, store.NewStoreError("user", "get", "query failed", err)
	}
	return user, nil
}

// List implements store.UserStore.List
func (s *PostgresUserStore) List(ctx context.Context, active *bool) ([]*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::boolean IS NULL OR is_active = $1)
		ORDER BY member_since ASC, id ASC
	`
	var filter sql.NullBool
	if active != nil {
		filter = sql.NullBool{Bool: *active, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, filter)
	if err != nil {
		log.Error("failed to list users", slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "list", "query failed", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			log.Error("failed to scan user row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("user", "list", "scan failed", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("user", "list", "row iteration failed", err)
	}
	return users, nil
}

// Update implements store.UserStore.Update
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, username = $5,
		    password_hash = $6, phone_number = $7, street = $8, city = $9,
		    state = $10, zip = $11, is_active = $12, updated_at = $13
		WHERE id = $1
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.PhoneNumber,
		user.Address.Street,
		user.Address.City,
		user.Address.State,
		user.Address.Zip,
		user.IsActive,
		user.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			return mapped
		}
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return store.NewStoreError("user", "update", "update failed", mapped)
	}

	if err := CheckRowsAffected(result, store.ErrUserNotFound); err != nil {
		log.Debug("user not found for update", slog.String("user_id", user.ID.String()))
		return err
	}

	log.Info("user updated successfully",
		slog.String("user_id", user.ID.String()),
		slog.Bool("is_active", user.IsActive))
	return nil
}
