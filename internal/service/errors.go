package service

import (
	"errors"
	"fmt"

	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// Kind classifies a service error. The API layer maps kinds to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
	KindUpstream
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Sentinel errors, one per Kind. Every *Error matches the sentinel of its
// kind with errors.Is.
var (
	// ErrValidation indicates malformed input. API layer maps this to 400.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing user, entry, book or request. API layer maps this to 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the operation lost a race or violates a
	// uniqueness or state-machine rule. API layer maps this to 409.
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates the acting user may not perform the transition.
	// API layer maps this to 403.
	ErrForbidden = errors.New("forbidden")

	// ErrUpstream indicates the external catalog provider failed. API layer maps this to 500.
	ErrUpstream = errors.New("upstream provider failed")

	// ErrInternal indicates an unexpected failure. API layer maps this to 500.
	ErrInternal = errors.New("internal error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindForbidden:
		return ErrForbidden
	case KindUpstream:
		return ErrUpstream
	default:
		return ErrInternal
	}
}

// Error is the error type returned by every service method.
// Message is safe to show to API clients; Err carries the internal cause.
type Error struct {
	Kind    Kind
	Op      string // e.g. "request.accept"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// E creates an *Error.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of the first *Error in err's chain.
func MessageOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message, true
	}
	return "", false
}

// fromStore maps store and domain errors onto service kinds. Errors that are
// already *Error pass through unchanged.
func fromStore(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return E(KindNotFound, op, notFoundMessage(err), err)
	case errors.Is(err, store.ErrDuplicate):
		return E(KindConflict, op, duplicateMessage(err), err)
	case errors.Is(err, store.ErrConflict):
		return E(KindConflict, op, "The resource was modified concurrently, please retry.", err)
	case errors.Is(err, store.ErrInvalidEntity), errors.Is(err, domain.ErrValidation):
		return E(KindValidation, op, "Invalid input.", err)
	default:
		return E(KindInternal, op, "Internal server error occured.", err)
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found."
	case errors.Is(err, store.ErrEntryNotFound):
		return "Library entry not found."
	case errors.Is(err, store.ErrBookNotFound):
		return "Book not found."
	case errors.Is(err, store.ErrRequestNotFound):
		return "Request not found."
	default:
		return "Resource not found."
	}
}

func duplicateMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrEmailExists):
		return "Email is already registered."
	case errors.Is(err, store.ErrUsernameExists):
		return "Username is already taken."
	case errors.Is(err, store.ErrEntryExists):
		return "Book is already in the library."
	case errors.Is(err, store.ErrPendingRequestExists):
		return "Book already has a pending request."
	default:
		return "Resource already exists."
	}
}

// validation wraps a domain validation failure, using its text as the message.
func validation(op string, err error) error {
	return E(KindValidation, op, err.Error(), err)
}
