package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/events"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

const (
	// DefaultRequestPageSize applies when a filter has no limit.
	DefaultRequestPageSize = 50
	// MaxRequestPageSize caps the limit of a filter.
	MaxRequestPageSize = 200
)

// CreateRequestInput describes a new swap request. TradedEntryID is the
// initiator's own entry offered in return, if any.
type CreateRequestInput struct {
	RequestFrom      uuid.UUID
	RequestTo        uuid.UUID
	RequestedEntryID uuid.UUID
	TradedEntryID    *uuid.UUID
}

// RequestService runs the swap request lifecycle.
type RequestService interface {
	// Create opens a pending request and claims the requested entry.
	Create(ctx context.Context, input CreateRequestInput) (*domain.Request, error)

	// Get returns one request.
	Get(ctx context.Context, requestID uuid.UUID) (*domain.Request, error)

	// Accept moves the books between the two libraries. Only the owner of the
	// requested book may accept. Replaying an interrupted acceptance resumes it.
	Accept(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error)

	// Decline refuses the request. Only the owner of the requested book may decline.
	Decline(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error)

	// Cancel withdraws the request. Only the initiator may cancel.
	Cancel(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error)

	// Filter lists the requests userID is party to. An empty result is not an error.
	Filter(ctx context.Context, userID uuid.UUID, filter domain.RequestFilter) (*domain.RequestPage, error)
}

type requestServiceImpl struct {
	*engine
}

// NewRequestService creates a RequestService.
// It returns an error if any of the required dependencies are nil.
func NewRequestService(deps RequestDeps, logger *slog.Logger) (RequestService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &requestServiceImpl{
		engine: newEngine(deps, logger.With(slog.String("component", "request_service"))),
	}, nil
}

// Create implements RequestService.Create
func (s *requestServiceImpl) Create(ctx context.Context, input CreateRequestInput) (*domain.Request, error) {
	const op = "request.create"
	log := logger.FromContextOrDefault(ctx, s.logger)

	switch {
	case input.RequestFrom == uuid.Nil:
		return nil, E(KindValidation, op, "Missing request_from in request body.", domain.ErrEmptyRequestFrom)
	case input.RequestTo == uuid.Nil:
		return nil, E(KindValidation, op, "Missing request_to in request body.", domain.ErrEmptyRequestTo)
	case input.RequestedEntryID == uuid.Nil:
		return nil, E(KindValidation, op, "Missing requested_entry_id in request body.", domain.ErrEmptyRequestedEntry)
	case input.RequestFrom == input.RequestTo:
		return nil, validation(op, domain.ErrSelfRequest)
	case input.TradedEntryID != nil && *input.TradedEntryID == uuid.Nil:
		return nil, validation(op, domain.ErrIncompleteTradedBook)
	}

	for _, id := range []uuid.UUID{input.RequestFrom, input.RequestTo} {
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, fromStore(op, err)
		}
		if !user.IsActive {
			return nil, E(KindConflict, op, "User account is deactivated.",
				fmt.Errorf("user %s is inactive", id))
		}
	}

	unlock, err := s.locker.Lock(ctx, libraryKey(input.RequestFrom, input.RequestTo))
	if err != nil {
		return nil, E(KindInternal, op, "Internal server error occured.", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release library lock", slog.String("error", err.Error()))
		}
	}()

	requested, err := s.ownedEntry(ctx, op, input.RequestedEntryID, input.RequestTo)
	if err != nil {
		return nil, err
	}
	if requested.HasPendingRequest {
		return nil, E(KindConflict, op, "Book already has a pending request.", store.ErrEntryPending)
	}
	if owns, err := s.library.HasBook(ctx, input.RequestFrom, requested.BookID); err != nil {
		return nil, fromStore(op, err)
	} else if owns {
		return nil, E(KindConflict, op, "You already own this book.", store.ErrEntryExists)
	}

	var tradedBookID *uuid.UUID
	if input.TradedEntryID != nil {
		traded, err := s.ownedEntry(ctx, op, *input.TradedEntryID, input.RequestFrom)
		if err != nil {
			return nil, err
		}
		if traded.HasPendingRequest {
			return nil, E(KindConflict, op, "Offered book has a pending request.", store.ErrEntryPending)
		}
		if owns, err := s.library.HasBook(ctx, input.RequestTo, traded.BookID); err != nil {
			return nil, fromStore(op, err)
		} else if owns {
			return nil, E(KindConflict, op, "The other user already owns the offered book.", store.ErrEntryExists)
		}
		bookID := traded.BookID
		tradedBookID = &bookID
	}

	req, err := domain.NewRequest(
		input.RequestFrom,
		input.RequestTo,
		requested.ID,
		requested.BookID,
		input.TradedEntryID,
		tradedBookID,
	)
	if err != nil {
		return nil, validation(op, err)
	}

	if err := s.library.ClaimPending(ctx, input.RequestTo, requested.ID); err != nil {
		if errors.Is(err, store.ErrEntryPending) {
			return nil, E(KindConflict, op, "Book already has a pending request.", err)
		}
		return nil, fromStore(op, err)
	}

	if err := s.requests.Create(ctx, req); err != nil {
		log.Warn("failed to store request, releasing claim",
			slog.String("error", err.Error()),
			slog.String("entry_id", requested.ID.String()))
		if serr := s.syncPending(ctx, requested.ID); serr != nil {
			log.Error("failed to release claim",
				slog.String("error", serr.Error()),
				slog.String("entry_id", requested.ID.String()))
		}
		return nil, fromStore(op, err)
	}

	log.Info("request created",
		slog.String("request_id", req.ID.String()),
		slog.String("request_from", req.RequestFrom.String()),
		slog.String("request_to", req.RequestTo.String()))
	s.emit(ctx, events.RequestCreated, req, req.RequestFrom, false)
	return req, nil
}

// ownedEntry loads an entry and checks that owner lists it.
func (s *requestServiceImpl) ownedEntry(
	ctx context.Context,
	op string,
	entryID, owner uuid.UUID,
) (*domain.LibraryEntry, error) {
	entry, err := s.library.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fromStore(op, err)
	}
	if entry.UserID != owner {
		return nil, E(KindNotFound, op, "Library entry not found.", store.ErrEntryNotFound)
	}
	return entry, nil
}

// Get implements RequestService.Get
func (s *requestServiceImpl) Get(ctx context.Context, requestID uuid.UUID) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fromStore("request.get", err)
	}
	return req, nil
}

// Accept implements RequestService.Accept
func (s *requestServiceImpl) Accept(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error) {
	const op = "request.accept"

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fromStore(op, err)
	}
	if actingUserID != req.RequestTo {
		return nil, E(KindForbidden, op, "Only the owner of the requested book can accept this request.", nil)
	}

	unlock, err := s.lockPair(ctx, op, req)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Reload under the lock; the request may have moved while we waited.
	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fromStore(op, err)
	}

	if req.Status == domain.RequestStatusAccepted && !req.Settled {
		logger.FromContextOrDefault(ctx, s.logger).Info("resuming interrupted acceptance",
			slog.String("request_id", req.ID.String()))
		return s.settleAccepted(ctx, op, req, actingUserID)
	}
	if !domain.CanTransition(req.Status, domain.RequestStatusAccepted) {
		return nil, alreadyTerminal(op, req)
	}

	if err := s.entriesInPlace(ctx, req); err != nil {
		return nil, E(KindConflict, op, "A book in this request is no longer available.", err)
	}

	req, err = s.requests.CompareAndSetStatus(
		ctx, req.ID, req.Version,
		domain.RequestStatusPending, domain.RequestStatusAccepted, false,
	)
	if err != nil {
		return nil, fromStore(op, err)
	}

	return s.settleAccepted(ctx, op, req, actingUserID)
}

// Decline implements RequestService.Decline
func (s *requestServiceImpl) Decline(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error) {
	return s.terminate(ctx, "request.decline", requestID, actingUserID, domain.RequestStatusDeclined)
}

// Cancel implements RequestService.Cancel
func (s *requestServiceImpl) Cancel(ctx context.Context, requestID, actingUserID uuid.UUID) (*domain.Request, error) {
	return s.terminate(ctx, "request.cancel", requestID, actingUserID, domain.RequestStatusCancelled)
}

// terminate moves a pending request to declined or cancelled and releases
// the requested entry.
func (s *requestServiceImpl) terminate(
	ctx context.Context,
	op string,
	requestID, actingUserID uuid.UUID,
	target domain.RequestStatus,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("request_id", requestID.String()))

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fromStore(op, err)
	}

	switch target {
	case domain.RequestStatusDeclined:
		if actingUserID != req.RequestTo {
			return nil, E(KindForbidden, op, "Only the owner of the requested book can decline this request.", nil)
		}
	case domain.RequestStatusCancelled:
		if actingUserID != req.RequestFrom {
			return nil, E(KindForbidden, op, "Only the user who sent the request can cancel it.", nil)
		}
	}

	unlock, err := s.lockPair(ctx, op, req)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fromStore(op, err)
	}

	if req.Status != target || req.Settled {
		if !domain.CanTransition(req.Status, target) {
			return nil, alreadyTerminal(op, req)
		}

		if err := s.checkOwner(ctx, req.RequestedEntryID, req.RequestTo); err != nil {
			return nil, E(KindConflict, op, "The requested book is no longer available.", err)
		}

		req, err = s.requests.CompareAndSetStatus(ctx, req.ID, req.Version, domain.RequestStatusPending, target, false)
		if err != nil {
			return nil, fromStore(op, err)
		}
	}

	settled, err := s.finishRelease(ctx, req, actingUserID, false)
	if err != nil {
		log.Error("failed to settle request", slog.String("error", err.Error()))
		return nil, E(KindInternal, op, "Internal server error occured.", err)
	}

	log.Info("request closed", slog.String("status", string(settled.Status)))
	return settled, nil
}

func alreadyTerminal(op string, req *domain.Request) error {
	return E(KindConflict, op, fmt.Sprintf("Request is already %s.", req.Status),
		fmt.Errorf("%w: %s", domain.ErrInvalidTransition, req.Status))
}

// Filter implements RequestService.Filter
func (s *requestServiceImpl) Filter(
	ctx context.Context,
	userID uuid.UUID,
	filter domain.RequestFilter,
) (*domain.RequestPage, error) {
	const op = "request.filter"

	if err := filter.Validate(); err != nil {
		return nil, E(KindValidation, op, "Query value unexpected.", err)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fromStore(op, err)
	}

	if filter.Limit == 0 {
		filter.Limit = DefaultRequestPageSize
	}
	if filter.Limit > MaxRequestPageSize {
		filter.Limit = MaxRequestPageSize
	}

	requests, total, err := s.requests.Filter(ctx, userID, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to filter requests",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fromStore(op, err)
	}

	return &domain.RequestPage{
		Requests: requests,
		Total:    total,
		Empty:    total == 0,
	}, nil
}
