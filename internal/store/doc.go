// Package store defines the persistence contracts for users, the book
// catalog, library entries and swap requests. Implementations live under
// internal/platform (postgres and memory) and must honor the
// compare-and-swap semantics documented on each method: no operation
// here spans more than one row, so the request engine composes them into
// recoverable multi-step workflows.
package store
