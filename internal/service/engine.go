package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/events"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
	"github.com/sethvargo/go-retry"
)

const (
	defaultReleaseRetries = 3
	defaultRetryBase      = 50 * time.Millisecond
)

// RequestDeps are the collaborators of the request engine, shared by
// RequestService and ReconcileService.
type RequestDeps struct {
	Users    store.UserStore
	Library  store.LibraryStore
	Requests store.RequestStore
	Locker   Locker
	Events   events.EventEmitter

	// ReleaseRetries bounds the retries of pending-flag writes.
	// Zero selects the default.
	ReleaseRetries uint64
	// RetryBase is the first backoff delay. Zero selects the default.
	RetryBase time.Duration
}

func (d RequestDeps) validate() error {
	switch {
	case d.Users == nil:
		return nilDependency("users")
	case d.Library == nil:
		return nilDependency("library")
	case d.Requests == nil:
		return nilDependency("requests")
	case d.Locker == nil:
		return nilDependency("locker")
	case d.Events == nil:
		return nilDependency("events")
	}
	return nil
}

// engine holds the multi-step transition logic. Every step is a single-row
// guarded write, and every step can be replayed.
type engine struct {
	users    store.UserStore
	library  store.LibraryStore
	requests store.RequestStore
	locker   Locker
	events   events.EventEmitter
	retries  uint64
	base     time.Duration
	logger   *slog.Logger
}

func newEngine(d RequestDeps, logger *slog.Logger) *engine {
	e := &engine{
		users:    d.Users,
		library:  d.Library,
		requests: d.Requests,
		locker:   d.Locker,
		events:   d.Events,
		retries:  d.ReleaseRetries,
		base:     d.RetryBase,
		logger:   logger,
	}
	if e.retries == 0 {
		e.retries = defaultReleaseRetries
	}
	if e.base <= 0 {
		e.base = defaultRetryBase
	}
	return e
}

// lockPair takes the library lock for both parties of req.
func (e *engine) lockPair(ctx context.Context, op string, req *domain.Request) (func(), error) {
	unlock, err := e.locker.Lock(ctx, libraryKey(req.RequestFrom, req.RequestTo))
	if err != nil {
		return nil, E(KindInternal, op, "Internal server error occured.", fmt.Errorf("acquire library lock: %w", err))
	}

	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.FromContextOrDefault(ctx, e.logger).Warn("failed to release library lock",
				slog.String("error", err.Error()),
				slog.String("request_id", req.ID.String()))
		}
	}, nil
}

// withRetry runs fn with exponential backoff until it succeeds, the retry
// budget is spent or ctx is done.
func (e *engine) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(e.retries, retry.NewExponential(e.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

// syncPending sets the entry's pending flag to whether a pending request
// names it as the requested entry. A missing entry needs no flag.
func (e *engine) syncPending(ctx context.Context, entryID uuid.UUID) error {
	_, err := e.resyncFlag(ctx, entryID)
	return err
}

// resyncFlag is syncPending that also reports whether the flag was written.
func (e *engine) resyncFlag(ctx context.Context, entryID uuid.UUID) (bool, error) {
	changed := false
	err := e.withRetry(ctx, func(ctx context.Context) error {
		entry, err := e.library.GetEntry(ctx, entryID)
		if store.IsNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}

		pending, err := e.requests.FindPendingByEntry(ctx, entryID)
		if err != nil {
			return err
		}
		want := false
		for _, r := range pending {
			if r.RequestedEntryID == entryID {
				want = true
				break
			}
		}

		if entry.HasPendingRequest == want {
			return nil
		}
		if err := e.library.SetPending(ctx, entry.UserID, entryID, want); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

// entriesInPlace reports whether both entries of a pending request are
// still owned by the users the request names.
func (e *engine) entriesInPlace(ctx context.Context, req *domain.Request) error {
	if err := e.checkOwner(ctx, req.RequestedEntryID, req.RequestTo); err != nil {
		return err
	}
	if req.HasTrade() {
		return e.checkOwner(ctx, *req.TradedEntryID, req.RequestFrom)
	}
	return nil
}

func (e *engine) checkOwner(ctx context.Context, entryID, owner uuid.UUID) error {
	entry, err := e.library.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.UserID != owner {
		return fmt.Errorf("%w: entry %s is owned by %s, expected %s",
			store.ErrConflict, entryID, entry.UserID, owner)
	}
	return nil
}

// moveEntries performs the ownership changes of an acceptance and verifies
// the result. Both entries keep their pending flag set while they move so
// no new request can claim them before the swap is settled.
func (e *engine) moveEntries(ctx context.Context, req *domain.Request) error {
	if _, err := e.library.TransferEntry(ctx, req.RequestedEntryID, req.RequestTo, req.RequestFrom, true); err != nil {
		return fmt.Errorf("move requested entry: %w", err)
	}
	if req.HasTrade() {
		if _, err := e.library.TransferEntry(ctx, *req.TradedEntryID, req.RequestFrom, req.RequestTo, true); err != nil {
			return fmt.Errorf("move traded entry: %w", err)
		}
	}

	if err := e.checkOwner(ctx, req.RequestedEntryID, req.RequestFrom); err != nil {
		return fmt.Errorf("verify requested entry: %w", err)
	}
	if req.HasTrade() {
		if err := e.checkOwner(ctx, *req.TradedEntryID, req.RequestTo); err != nil {
			return fmt.Errorf("verify traded entry: %w", err)
		}
	}
	return nil
}

// moveBack undoes one transfer. An entry owned by neither user, or gone,
// was not moved by this request and is left alone.
func (e *engine) moveBack(ctx context.Context, entryID, holder, owner uuid.UUID) error {
	_, err := e.library.TransferEntry(ctx, entryID, holder, owner, true)
	if err == nil || store.IsNotFoundError(err) || errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}

// unwindAccepted returns an unsettled acceptance to pending: entries go back
// to their original owners, the request reverts and flags are resynced.
func (e *engine) unwindAccepted(ctx context.Context, req *domain.Request) (*domain.Request, error) {
	if err := e.moveBack(ctx, req.RequestedEntryID, req.RequestFrom, req.RequestTo); err != nil {
		return nil, fmt.Errorf("restore requested entry: %w", err)
	}
	if req.HasTrade() {
		if err := e.moveBack(ctx, *req.TradedEntryID, req.RequestTo, req.RequestFrom); err != nil {
			return nil, fmt.Errorf("restore traded entry: %w", err)
		}
	}

	reverted, err := e.requests.RevertToPending(ctx, req.ID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("revert request: %w", err)
	}

	for _, id := range entryIDs(req) {
		if err := e.syncPending(ctx, id); err != nil {
			return nil, fmt.Errorf("resync entry %s: %w", id, err)
		}
	}
	return reverted, nil
}

// settleAccepted drives an accepted, unsettled request to completion. When
// the entries cannot be moved the acceptance is unwound and a conflict is
// returned; failures after the move leave the request unsettled for the
// reconcile sweep.
func (e *engine) settleAccepted(
	ctx context.Context,
	op string,
	req *domain.Request,
	actor uuid.UUID,
) (*domain.Request, error) {
	log := logger.FromContextOrDefault(ctx, e.logger).With(slog.String("request_id", req.ID.String()))

	if err := e.moveEntries(ctx, req); err != nil {
		log.Warn("swap could not be completed, unwinding", slog.String("error", err.Error()))

		if _, uerr := e.unwindAccepted(ctx, req); uerr != nil {
			log.Error("failed to unwind acceptance",
				slog.String("error", uerr.Error()),
				slog.String("cause", err.Error()))
			return nil, E(KindInternal, op, "Internal server error occured.", errors.Join(err, uerr))
		}
		return nil, E(KindConflict, op, "A book in this request is no longer available.", err)
	}

	if err := e.supersede(ctx, req, actor); err != nil {
		log.Error("failed to supersede competing requests", slog.String("error", err.Error()))
		return nil, E(KindInternal, op, "Internal server error occured.", err)
	}

	for _, id := range entryIDs(req) {
		if err := e.syncPending(ctx, id); err != nil {
			log.Error("failed to release pending flag",
				slog.String("error", err.Error()),
				slog.String("entry_id", id.String()))
			return nil, E(KindInternal, op, "Internal server error occured.", err)
		}
	}

	settled, err := e.requests.MarkSettled(ctx, req.ID, req.Version)
	if err != nil {
		log.Error("failed to mark request settled", slog.String("error", err.Error()))
		return nil, E(KindInternal, op, "Internal server error occured.", err)
	}

	log.Info("request accepted",
		slog.String("request_from", req.RequestFrom.String()),
		slog.String("request_to", req.RequestTo.String()))
	e.emit(ctx, events.RequestAccepted, settled, actor, false)
	return settled, nil
}

// supersede declines every other pending request that names an entry the
// accepted request moved.
func (e *engine) supersede(ctx context.Context, req *domain.Request, actor uuid.UUID) error {
	for _, entryID := range entryIDs(req) {
		others, err := e.requests.FindPendingByEntry(ctx, entryID)
		if err != nil {
			return err
		}

		for _, other := range others {
			if other.ID == req.ID {
				continue
			}
			declined, err := e.requests.CompareAndSetStatus(
				ctx, other.ID, other.Version,
				domain.RequestStatusPending, domain.RequestStatusDeclined, false,
			)
			if errors.Is(err, store.ErrStaleVersion) {
				current, gerr := e.requests.GetByID(ctx, other.ID)
				if gerr == nil && current.Status != domain.RequestStatusPending {
					continue
				}
				return err
			}
			if err != nil {
				return err
			}

			if _, err := e.finishRelease(ctx, declined, actor, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// finishRelease completes a decline or cancel: the requested entry's flag is
// resynced and the request marked settled.
func (e *engine) finishRelease(
	ctx context.Context,
	req *domain.Request,
	actor uuid.UUID,
	superseded bool,
) (*domain.Request, error) {
	if err := e.syncPending(ctx, req.RequestedEntryID); err != nil {
		return nil, fmt.Errorf("release pending flag: %w", err)
	}

	settled, err := e.requests.MarkSettled(ctx, req.ID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("mark settled: %w", err)
	}

	eventType := events.RequestDeclined
	if settled.Status == domain.RequestStatusCancelled {
		eventType = events.RequestCancelled
	}
	e.emit(ctx, eventType, settled, actor, superseded)
	return settled, nil
}

// emit publishes a transition event. Emission failures are logged; the
// transition itself is already committed.
func (e *engine) emit(ctx context.Context, eventType string, req *domain.Request, actor uuid.UUID, superseded bool) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	event, err := events.NewRequestEvent(eventType, req.ID, events.TransitionPayload{
		ActingUser:       actor,
		RequestFrom:      req.RequestFrom,
		RequestTo:        req.RequestTo,
		RequestedEntryID: req.RequestedEntryID,
		TradedEntryID:    req.TradedEntryID,
		Status:           string(req.Status),
		Superseded:       superseded,
	})
	if err != nil {
		log.Error("failed to build request event", slog.String("error", err.Error()))
		return
	}

	if err := e.events.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit request event",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType),
			slog.String("request_id", req.ID.String()))
	}
}

func entryIDs(req *domain.Request) []uuid.UUID {
	ids := []uuid.UUID{req.RequestedEntryID}
	if req.HasTrade() {
		ids = append(ids, *req.TradedEntryID)
	}
	return ids
}
