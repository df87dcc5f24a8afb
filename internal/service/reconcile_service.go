package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

// Repair kinds reported by the sweep.
const (
	RepairStaleFlag      = "stale_flag"
	RepairMissingFlag    = "missing_flag"
	RepairAcceptResumed  = "accept_resumed"
	RepairAcceptUnwound  = "accept_unwound"
	RepairCloseFinished  = "close_finished"
	RepairOrphanDeclined = "orphan_declined"
)

// SweepRecorder receives reconcile metrics.
type SweepRecorder interface {
	RecordRepairs(kind string, n int)
	RecordSweep(err error)
}

// SweepReport counts the repairs made by one sweep, keyed by repair kind.
type SweepReport map[string]int

// ReconcileService repairs state left behind by interrupted transitions.
type ReconcileService interface {
	// Sweep finishes or unwinds unsettled transitions, declines pending
	// requests whose books are gone and resyncs pending flags. Only rows
	// untouched for the grace period are considered.
	Sweep(ctx context.Context) (SweepReport, error)
}

type reconcileServiceImpl struct {
	*engine
	grace    time.Duration
	recorder SweepRecorder
	now      func() time.Time
}

// NewReconcileService creates a ReconcileService. recorder may be nil.
func NewReconcileService(
	deps RequestDeps,
	grace time.Duration,
	recorder SweepRecorder,
	logger *slog.Logger,
) (ReconcileService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if grace <= 0 {
		return nil, fmt.Errorf("%w: grace period must be positive", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &reconcileServiceImpl{
		engine:   newEngine(deps, logger.With(slog.String("component", "reconcile_service"))),
		grace:    grace,
		recorder: recorder,
		now:      time.Now,
	}, nil
}

// Sweep implements ReconcileService.Sweep
func (s *reconcileServiceImpl) Sweep(ctx context.Context) (SweepReport, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	cutoff := s.now().UTC().Add(-s.grace)
	report := SweepReport{}

	err := errors.Join(
		s.settleUnsettled(ctx, cutoff, report),
		s.checkPending(ctx, cutoff, report),
		s.clearStaleFlags(ctx, cutoff, report),
	)

	if s.recorder != nil {
		for kind, n := range report {
			s.recorder.RecordRepairs(kind, n)
		}
		s.recorder.RecordSweep(err)
	}

	attrs := make([]any, 0, len(report)+1)
	for kind, n := range report {
		attrs = append(attrs, slog.Int(kind, n))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		log.Error("reconcile sweep finished with errors", attrs...)
	} else {
		log.Info("reconcile sweep finished", attrs...)
	}
	return report, err
}

// withPairLock reloads the request under its library lock and hands it to fn.
func (s *reconcileServiceImpl) withPairLock(
	ctx context.Context,
	req *domain.Request,
	fn func(req *domain.Request) error,
) error {
	unlock, err := s.lockPair(ctx, "reconcile", req)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.requests.GetByID(ctx, req.ID)
	if err != nil {
		return err
	}
	return fn(current)
}

// settleUnsettled resumes acceptances and finishes declines and cancels.
func (s *reconcileServiceImpl) settleUnsettled(ctx context.Context, cutoff time.Time, report SweepReport) error {
	unsettled, err := s.requests.FindUnsettled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find unsettled requests: %w", err)
	}

	var errs []error
	for _, req := range unsettled {
		err := s.withPairLock(ctx, req, func(req *domain.Request) error {
			if req.Settled || req.Status == domain.RequestStatusPending {
				return nil
			}

			if req.Status == domain.RequestStatusAccepted {
				_, err := s.settleAccepted(ctx, "reconcile", req, uuid.Nil)
				switch {
				case err == nil:
					report[RepairAcceptResumed]++
				case KindOf(err) == KindConflict:
					report[RepairAcceptUnwound]++
				default:
					return err
				}
				return nil
			}

			if _, err := s.finishRelease(ctx, req, uuid.Nil, false); err != nil {
				return err
			}
			report[RepairCloseFinished]++
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
		}
	}
	return errors.Join(errs...)
}

// checkPending declines pending requests whose books moved or vanished and
// sets flags missing on entries that pending requests name.
func (s *reconcileServiceImpl) checkPending(ctx context.Context, cutoff time.Time, report SweepReport) error {
	pending, err := s.requests.ListPending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list pending requests: %w", err)
	}

	var errs []error
	for _, req := range pending {
		err := s.withPairLock(ctx, req, func(req *domain.Request) error {
			if req.Status != domain.RequestStatusPending {
				return nil
			}

			err := s.entriesInPlace(ctx, req)
			if err == nil {
				changed, err := s.resyncFlag(ctx, req.RequestedEntryID)
				if changed {
					report[RepairMissingFlag]++
				}
				return err
			}
			if !store.IsNotFoundError(err) && !errors.Is(err, store.ErrConflict) {
				return err
			}

			declined, err := s.requests.CompareAndSetStatus(
				ctx, req.ID, req.Version,
				domain.RequestStatusPending, domain.RequestStatusDeclined, false,
			)
			if err != nil {
				return err
			}
			if _, err := s.finishRelease(ctx, declined, uuid.Nil, true); err != nil {
				return err
			}
			report[RepairOrphanDeclined]++
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("request %s: %w", req.ID, err))
		}
	}
	return errors.Join(errs...)
}

// clearStaleFlags resets flags that no pending request accounts for.
func (s *reconcileServiceImpl) clearStaleFlags(ctx context.Context, cutoff time.Time, report SweepReport) error {
	entries, err := s.library.ListPendingEntries(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list flagged entries: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		changed, err := s.resyncFlag(ctx, entry.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %s: %w", entry.ID, err))
			continue
		}
		if changed {
			report[RepairStaleFlag]++
		}
	}
	return errors.Join(errs...)
}
