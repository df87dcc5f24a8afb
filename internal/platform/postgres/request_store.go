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

const requestSelect = `
	SELECT id, request_from, request_to, requested_entry_id, requested_book_id,
	       traded_entry_id, traded_book_id, status, settled, version, request_date, updated_at
	FROM requests`

const requestReturning = `
	RETURNING id, request_from, request_to, requested_entry_id, requested_book_id,
	          traded_entry_id, traded_book_id, status, settled, version, request_date, updated_at`

// PostgresRequestStore implements the store.RequestStore interface.
// Status writes are guarded by the row version, so two writers racing on the
// same request cannot both succeed.
type PostgresRequestStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRequestStore creates a new PostgreSQL implementation of the RequestStore interface.
func NewPostgresRequestStore(db store.DBTX, logger *slog.Logger) *PostgresRequestStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRequestStore{
		db:     db,
		logger: logger.With(slog.String("component", "request_store")),
	}
}

// Ensure PostgresRequestStore implements store.RequestStore interface
var _ store.RequestStore = (*PostgresRequestStore)(nil)

// Create implements store.RequestStore.Create
func (s *PostgresRequestStore) Create(ctx context.Context, req *domain.Request) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		log.Warn("request validation failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO requests (
			id, request_from, request_to, requested_entry_id, requested_book_id,
			traded_entry_id, traded_book_id, status, settled, version, request_date, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		req.ID,
		req.RequestFrom,
		req.RequestTo,
		req.RequestedEntryID,
		req.RequestedBookID,
		nullUUID(req.TradedEntryID),
		nullUUID(req.TradedBookID),
		string(req.Status),
		req.Settled,
		req.Version,
		req.RequestDate,
		req.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) || errors.Is(mapped, store.ErrInvalidEntity) {
			log.Warn("request rejected",
				slog.String("error", err.Error()),
				slog.String("requested_entry_id", req.RequestedEntryID.String()))
			return mapped
		}
		log.Error("failed to create request",
			slog.String("error", err.Error()),
			slog.String("request_id", req.ID.String()))
		return store.NewStoreError("request", "create", "insert failed", mapped)
	}

	log.Info("request created",
		slog.String("request_id", req.ID.String()),
		slog.String("request_from", req.RequestFrom.String()),
		slog.String("request_to", req.RequestTo.String()))
	return nil
}

// GetByID implements store.RequestStore.GetByID
func (s *PostgresRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Request, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, requestSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRequestNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get request",
			slog.String("error", err.Error()),
			slog.String("request_id", id.String()))
		return nil, store.NewStoreError("request", "get", "query failed", err)
	}
	return req, nil
}

// casUpdate runs a version-guarded UPDATE ... RETURNING. No row means the
// request is missing or was written by someone else since it was read.
func (s *PostgresRequestStore) casUpdate(
	ctx context.Context,
	op string,
	id uuid.UUID,
	query string,
	args ...any,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("request_id", id.String()),
		slog.String("operation", op))

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		log.Debug("request updated",
			slog.String("status", string(req.Status)),
			slog.Bool("settled", req.Settled),
			slog.Int64("version", req.Version))
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update request", slog.String("error", err.Error()))
		return nil, store.NewStoreError("request", op, "update failed", MapError(err))
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return nil, store.NewStoreError("request", op, "existence check failed", err)
	}
	if !exists {
		return nil, store.ErrRequestNotFound
	}
	log.Debug("request update lost compare-and-swap")
	return nil, store.ErrStaleVersion
}

// CompareAndSetStatus implements store.RequestStore.CompareAndSetStatus
func (s *PostgresRequestStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	version int64,
	from, to domain.RequestStatus,
	settled bool,
) (*domain.Request, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidRequestStatus)
	}
	return s.casUpdate(ctx, "set status", id, `
		UPDATE requests
		SET status = $4, settled = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2 AND status = $3
	`+requestReturning, id, version, string(from), string(to), settled, time.Now().UTC())
}

// RevertToPending implements store.RequestStore.RevertToPending
func (s *PostgresRequestStore) RevertToPending(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error) {
	return s.casUpdate(ctx, "revert", id, `
		UPDATE requests
		SET status = 'pending', settled = FALSE, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2 AND status = 'accepted' AND NOT settled
	`+requestReturning, id, version, time.Now().UTC())
}

// MarkSettled implements store.RequestStore.MarkSettled
func (s *PostgresRequestStore) MarkSettled(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error) {
	return s.casUpdate(ctx, "settle", id, `
		UPDATE requests
		SET settled = TRUE, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $2
	`+requestReturning, id, version, time.Now().UTC())
}

// Filter implements store.RequestStore.Filter
func (s *PostgresRequestStore) Filter(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.RequestFilter,
) ([]*domain.Request, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	countSQL, countArgs, err := buildRequestCountQuery(userID, filter)
	if err != nil {
		return nil, 0, store.NewStoreError("request", "filter", "failed to build count query", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		log.Error("failed to count requests", slog.String("error", err.Error()))
		return nil, 0, store.NewStoreError("request", "filter", "count failed", err)
	}
	if total == 0 {
		return []*domain.Request{}, 0, nil
	}

	query, args, err := buildRequestFilterQuery(userID, filter)
	if err != nil {
		return nil, 0, store.NewStoreError("request", "filter", "failed to build query", err)
	}
	requests, err := s.queryRequests(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	log.Debug("requests filtered",
		slog.String("user_id", userID.String()),
		slog.Int("total", total),
		slog.Int("returned", len(requests)))
	return requests, total, nil
}

// FindPendingByEntry implements store.RequestStore.FindPendingByEntry
func (s *PostgresRequestStore) FindPendingByEntry(ctx context.Context, entryID uuid.UUID) ([]*domain.Request, error) {
	return s.queryRequests(ctx, requestSelect+`
		WHERE status = 'pending' AND (requested_entry_id = $1 OR traded_entry_id = $1)
		ORDER BY request_date ASC
	`, entryID)
}

// ListPending implements store.RequestStore.ListPending
func (s *PostgresRequestStore) ListPending(ctx context.Context, olderThan time.Time) ([]*domain.Request, error) {
	return s.queryRequests(ctx, requestSelect+`
		WHERE status = 'pending' AND updated_at < $1
		ORDER BY updated_at ASC
	`, olderThan)
}

// FindUnsettled implements store.RequestStore.FindUnsettled
func (s *PostgresRequestStore) FindUnsettled(ctx context.Context, olderThan time.Time) ([]*domain.Request, error) {
	return s.queryRequests(ctx, requestSelect+`
		WHERE NOT settled AND status <> 'pending' AND updated_at < $1
		ORDER BY updated_at ASC
	`, olderThan)
}

func (s *PostgresRequestStore) queryRequests(ctx context.Context, query string, args ...any) ([]*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query requests", slog.String("error", err.Error()))
		return nil, store.NewStoreError("request", "list", "query failed", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	requests := []*domain.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			log.Error("failed to scan request", slog.String("error", err.Error()))
			return nil, store.NewStoreError("request", "list", "scan failed", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("request", "list", "row iteration failed", err)
	}
	return requests, nil
}
