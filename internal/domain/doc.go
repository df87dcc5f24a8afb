// Package domain contains the core business entities, value objects, and
// domain logic of the swap marketplace: users, catalog books, library
// entries, swap requests and their state machine, and the search and filter
// value types. It is independent of any storage or delivery mechanism.
package domain
