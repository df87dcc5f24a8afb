package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Origin selects requests by the user's role in them.
type Origin string

const (
	// OriginMe selects requests the user initiated.
	OriginMe Origin = "me"

	// OriginThem selects requests sent to the user.
	OriginThem Origin = "them"
)

// ParseOrigin converts a raw query value into an Origin.
func ParseOrigin(raw string) (Origin, error) {
	switch o := Origin(raw); o {
	case OriginMe, OriginThem:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown origin %q", ErrValidation, raw)
	}
}

// RequestFilter selects the requests visible to one user. Nil fields are
// not applied; set fields are combined with logical AND.
type RequestFilter struct {
	Status *RequestStatus
	Origin *Origin
	Limit  int
	Offset int
}

// Validate checks the option values.
func (f RequestFilter) Validate() error {
	if f.Status != nil && !f.Status.IsValid() {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidRequestStatus)
	}
	if f.Origin != nil && *f.Origin != OriginMe && *f.Origin != OriginThem {
		return fmt.Errorf("%w: unknown origin %q", ErrValidation, *f.Origin)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}
	return nil
}

// Matches reports whether r is visible to userID under the filter.
// Limit and Offset are applied by the caller.
func (f RequestFilter) Matches(userID uuid.UUID, r *Request) bool {
	if !r.IsParty(userID) {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Origin != nil {
		switch *f.Origin {
		case OriginMe:
			if r.RequestFrom != userID {
				return false
			}
		case OriginThem:
			if r.RequestTo != userID {
				return false
			}
		}
	}
	return true
}

// RequestPage is the result of a filtered listing. Empty is set when nothing
// matched, which is a normal outcome rather than an error.
type RequestPage struct {
	Requests []*Request
	Total    int
	Empty    bool
}
