package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the lifecycle state of a swap request.
type RequestStatus string

const (
	// RequestStatusPending is the initial state of every request.
	RequestStatusPending RequestStatus = "pending"

	// RequestStatusAccepted means the owner agreed and the books changed hands.
	RequestStatusAccepted RequestStatus = "accepted"

	// RequestStatusDeclined means the owner refused, or the request was superseded.
	RequestStatusDeclined RequestStatus = "declined"

	// RequestStatusCancelled means the initiator withdrew the request.
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Request validation errors
var (
	ErrEmptyRequestID       = errors.New("request ID cannot be empty")
	ErrEmptyRequestFrom     = errors.New("requestFrom cannot be empty")
	ErrEmptyRequestTo       = errors.New("requestTo cannot be empty")
	ErrSelfRequest          = errors.New("requestFrom and requestTo must be different users")
	ErrEmptyRequestedEntry  = errors.New("requested book cannot be empty")
	ErrIncompleteTradedBook = errors.New("traded book requires both entry and book IDs")
	ErrInvalidRequestStatus = errors.New("invalid request status")
)

// IsValid reports whether s is one of the known statuses.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusDeclined, RequestStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition can leave s.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusDeclined || s == RequestStatusCancelled
}

// ParseRequestStatus converts a raw value into a RequestStatus.
func ParseRequestStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRequestStatus, raw)
	}
	return s, nil
}

// CanTransition encodes the request state machine: pending may move to any
// terminal state; terminal states never move.
func CanTransition(from, to RequestStatus) bool {
	return from == RequestStatusPending && to.IsTerminal()
}

// Request is a swap proposal from RequestFrom (initiator) to RequestTo
// (owner of the requested book). TradedEntryID and TradedBookID are set
// together when the initiator offers one of their own books in return.
//
// Settled is false while the side effects of a terminal transition are
// still being applied; Version is bumped on every write.
type Request struct {
	ID               uuid.UUID     `json:"id"`
	RequestFrom      uuid.UUID     `json:"request_from"`
	RequestTo        uuid.UUID     `json:"request_to"`
	RequestedEntryID uuid.UUID     `json:"requested_entry_id"`
	RequestedBookID  uuid.UUID     `json:"requested_book_id"`
	TradedEntryID    *uuid.UUID    `json:"traded_entry_id,omitempty"`
	TradedBookID     *uuid.UUID    `json:"traded_book_id,omitempty"`
	Status           RequestStatus `json:"status"`
	Settled          bool          `json:"settled"`
	Version          int64         `json:"version"`
	RequestDate      time.Time     `json:"request_date"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewRequest creates a pending Request with a fresh ID.
func NewRequest(
	requestFrom, requestTo uuid.UUID,
	requestedEntryID, requestedBookID uuid.UUID,
	tradedEntryID, tradedBookID *uuid.UUID,
) (*Request, error) {
	now := time.Now().UTC()
	req := &Request{
		ID:               uuid.New(),
		RequestFrom:      requestFrom,
		RequestTo:        requestTo,
		RequestedEntryID: requestedEntryID,
		RequestedBookID:  requestedBookID,
		TradedEntryID:    tradedEntryID,
		TradedBookID:     tradedBookID,
		Status:           RequestStatusPending,
		Version:          1,
		RequestDate:      now,
		UpdatedAt:        now,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks if the Request has valid data.
func (r *Request) Validate() error {
	if r.ID == uuid.Nil {
		return ErrEmptyRequestID
	}
	if r.RequestFrom == uuid.Nil {
		return ErrEmptyRequestFrom
	}
	if r.RequestTo == uuid.Nil {
		return ErrEmptyRequestTo
	}
	if r.RequestFrom == r.RequestTo {
		return ErrSelfRequest
	}
	if r.RequestedEntryID == uuid.Nil || r.RequestedBookID == uuid.Nil {
		return ErrEmptyRequestedEntry
	}
	if (r.TradedEntryID == nil) != (r.TradedBookID == nil) {
		return ErrIncompleteTradedBook
	}
	if r.TradedEntryID != nil && (*r.TradedEntryID == uuid.Nil || *r.TradedBookID == uuid.Nil) {
		return ErrIncompleteTradedBook
	}
	if !r.Status.IsValid() {
		return ErrInvalidRequestStatus
	}
	return nil
}

// HasTrade reports whether the initiator offered a book in return.
func (r *Request) HasTrade() bool {
	return r.TradedEntryID != nil
}

// IsParty reports whether userID is the initiator or the owner.
func (r *Request) IsParty(userID uuid.UUID) bool {
	return r.RequestFrom == userID || r.RequestTo == userID
}

// References reports whether the request names entryID as either its
// requested or traded entry.
func (r *Request) References(entryID uuid.UUID) bool {
	if r.RequestedEntryID == entryID {
		return true
	}
	return r.TradedEntryID != nil && *r.TradedEntryID == entryID
}
