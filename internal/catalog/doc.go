// Package catalog defines the boundary to external book-metadata providers.
// It lets the catalog service look up books by ISBN, author or title without
// coupling to a specific API (Google Books in production).
package catalog
