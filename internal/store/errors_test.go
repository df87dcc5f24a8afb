package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"wrapped ErrNotFound", fmt.Errorf("failed to do something: %w", ErrNotFound), true},
		{"ErrUserNotFound", ErrUserNotFound, true},
		{"ErrBookNotFound", ErrBookNotFound, true},
		{"wrapped ErrEntryNotFound", fmt.Errorf("transfer: %w", ErrEntryNotFound), true},
		{"ErrRequestNotFound", ErrRequestNotFound, true},
		{"ErrEntryExists", ErrEntryExists, false},
		{"ErrStaleVersion", ErrStaleVersion, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.expected {
				t.Errorf("IsNotFoundError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrDuplicate", ErrDuplicate, true},
		{"ErrEmailExists", ErrEmailExists, true},
		{"ErrUsernameExists", ErrUsernameExists, true},
		{"wrapped ErrEntryExists", fmt.Errorf("add entry: %w", ErrEntryExists), true},
		{"ErrPendingRequestExists", ErrPendingRequestExists, true},
		{"ErrUserNotFound", ErrUserNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateError(tt.err); got != tt.expected {
				t.Errorf("IsDuplicateError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsConflictError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"ErrConflict", ErrConflict, true},
		{"ErrEntryPending", ErrEntryPending, true},
		{"wrapped ErrStaleVersion", fmt.Errorf("accept: %w", ErrStaleVersion), true},
		{"ErrEntryExists", ErrEntryExists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflictError(tt.err); got != tt.expected {
				t.Errorf("IsConflictError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEntityErrorMessages(t *testing.T) {
	if got := ErrEntryNotFound.Error(); got != "entity not found: library entry" {
		t.Errorf("ErrEntryNotFound.Error() = %q", got)
	}
	if got := ErrStaleVersion.Error(); got != "concurrent modification: stale version" {
		t.Errorf("ErrStaleVersion.Error() = %q", got)
	}
}

func TestStoreError(t *testing.T) {
	originalErr := errors.New("database connection failed")
	storeErr := NewStoreError("request", "create", "database error", originalErr)

	expectedErrorString := "create operation on request failed: database error: database connection failed"
	if got := storeErr.Error(); got != expectedErrorString {
		t.Errorf("StoreError.Error() = %v, want %v", got, expectedErrorString)
	}

	if got := storeErr.Unwrap(); !errors.Is(got, originalErr) {
		t.Errorf("StoreError.Unwrap() not returning original error")
	}

	bare := NewStoreError("library entry", "transfer", "owner mismatch", nil)
	if got := bare.Error(); got != "transfer operation on library entry failed: owner mismatch" {
		t.Errorf("StoreError.Error() without cause = %v", got)
	}

	wrapped := NewStoreError("library entry", "claim", "already pending", ErrEntryPending)
	if !errors.Is(wrapped, ErrConflict) {
		t.Errorf("errors.Is() not recognizing the wrapped sentinel")
	}
}
