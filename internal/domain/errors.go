package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a request status change is not
	// allowed by the request state machine.
	ErrInvalidTransition = errors.New("invalid request status transition")

	// ErrInvalidSearchCriteria is returned when a catalog search has no usable
	// category or value.
	ErrInvalidSearchCriteria = errors.New("invalid search criteria")
)
