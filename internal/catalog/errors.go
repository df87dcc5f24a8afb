package catalog

import "errors"

var (
	// ErrProviderUnavailable is returned when the provider could not be reached
	// or kept failing after retries.
	ErrProviderUnavailable = errors.New("book provider unavailable")

	// ErrProviderRejected is returned when the provider refused the query
	// (bad key, quota, malformed request).
	ErrProviderRejected = errors.New("book provider rejected the request")

	// ErrInvalidResponse is returned when the provider response cannot be parsed.
	ErrInvalidResponse = errors.New("invalid response from book provider")

	// ErrInvalidConfig is returned when the provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid book provider configuration")
)
