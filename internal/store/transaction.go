package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imhighyat/book-swap-api/internal/platform/logger"
)

// TxFn is the body of a transaction. Returning an error rolls it back.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction runs fn in a read-committed transaction on db.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	return RunInTransactionWithOptions(ctx, db, nil, fn)
}

// RunInTransactionWithOptions runs fn in a transaction started with opts.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics; the panic is re-raised after the rollback.
func RunInTransactionWithOptions(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	defer func() {
		p := recover()
		if p == nil && err == nil {
			return
		}

		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("failed to roll back transaction", slog.String("error", rbErr.Error()))
			if p == nil {
				err = errors.Join(err, fmt.Errorf("%w: rollback: %w", ErrTransactionFailed, rbErr))
			}
		}

		if p != nil {
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
		log.Debug("rolled back transaction", slog.String("error", err.Error()))
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}
