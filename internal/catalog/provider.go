package catalog

import (
	"context"

	"github.com/imhighyat/book-swap-api/internal/domain"
)

// Query is one page of a provider search.
type Query struct {
	Criteria   domain.SearchCriteria
	StartIndex int
	MaxResults int
}

// Result is a normalized provider page. Books carry fresh IDs; the caller
// resolves them against the local catalog.
type Result struct {
	Books      []*domain.Book
	TotalItems int
}

// Provider searches an external book-metadata source.
type Provider interface {
	// Search returns one page of matches. An empty page is not an error.
	//
	// Errors wrap ErrProviderUnavailable, ErrProviderRejected or
	// ErrInvalidResponse.
	Search(ctx context.Context, q Query) (*Result, error)
}
