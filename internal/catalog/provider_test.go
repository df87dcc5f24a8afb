package catalog_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/stretchr/testify/assert"
)

func TestErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	all := []error{
		catalog.ErrProviderUnavailable,
		catalog.ErrProviderRejected,
		catalog.ErrInvalidResponse,
		catalog.ErrInvalidConfig,
	}
	for i, a := range all {
		wrapped := fmt.Errorf("search: %w", a)
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(wrapped, b), "%v vs %v", a, b)
		}
	}
}
