// Package postgres implements the store interfaces on PostgreSQL through
// database/sql and the pgx driver.
//
// Schema changes live in migrations/ as goose SQL files embedded into the
// binary; Migrate applies them. Dynamic queries (request filters and book
// searches) are built with goqu in prepared mode, everything else is plain
// SQL. Array columns are read back as JSON so no driver-specific scan types
// leak into the stores.
//
// Conditional writes use guarded UPDATE statements (owner, pending flag or
// version in the WHERE clause). When such an update touches no row the store
// reads the row back to report either a not-found or a conflict error.
package postgres
