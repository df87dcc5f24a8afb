// Package testdb provides helpers for integration tests that need a real
// PostgreSQL database. Tests skip themselves when no database URL is set.
//
// Each test is expected to run inside WithTx so its writes are rolled back:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        userStore := postgres.NewPostgresUserStore(tx, nil)
//	        // ...
//	    })
//	}
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/imhighyat/book-swap-api/internal/platform/postgres"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds connection checks and migrations.
const TestTimeout = 30 * time.Second

// Environment variables consulted for the test database, in order.
var databaseURLVars = []string{"DATABASE_URL", "SWAP_DATABASE_URL"}

var migrateOnce sync.Once
var migrateErr error

// GetTestDatabaseURL returns the first non-empty database URL variable.
func GetTestDatabaseURL() string {
	for _, name := range databaseURLVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDBWithT opens the test database, applies migrations once per test
// binary and closes the pool when t finishes. Skips t without a database URL.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open %s", maskDatabaseURL(dbURL))

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "database ping failed for %s", maskDatabaseURL(dbURL))

	migrateOnce.Do(func() {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		migrateErr = postgres.Migrate(ctx, db, "up", quiet)
	})
	require.NoError(t, migrateErr, "failed to apply migrations")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})
	return db
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// maskDatabaseURL hides the password in a connection URL.
func maskDatabaseURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.User == nil {
		return dbURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
