// Package service contains the application use cases of the swap
// marketplace: user accounts, personal libraries, the request lifecycle
// engine, catalog search and the reconcile sweep.
//
// Services depend on the interfaces in internal/store and never on a
// concrete backend. Every method returns *Error values whose Kind the API
// layer maps to a status code; store errors are translated at this boundary.
//
// The request engine keeps one invariant across transitions: a library
// entry has its pending flag set exactly when a pending request names it as
// the requested entry. Transitions are serialized per pair of users by a
// Locker and every write is a guarded single-row update, so a lost race
// surfaces as a conflict instead of a lost update.
package service
