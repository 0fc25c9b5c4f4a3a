package workers

import (
	"context"
	"time"

	"oracle/internal/domain/schedule"
	schedulesvc "oracle/internal/services/schedule"
)

// ReconcileWorker rescues scheduled requests that are past due in Postgres
// but absent from the delay queue, which happens when the queue entry was
// lost or consumed by a crashed dispatch. Postgres is the authoritative
// state; the queue is only a firing index.
type ReconcileWorker struct {
	*BaseWorker
	repo    schedule.Repository
	service *schedulesvc.Service
	grace   time.Duration
	limit   int
}

// NewReconcileWorker creates a reconcile worker. Grace keeps the reconciler
// from racing normal dispatch on freshly due records.
func NewReconcileWorker(repo schedule.Repository, service *schedulesvc.Service, interval, grace time.Duration, limit int) *ReconcileWorker {
	return &ReconcileWorker{
		BaseWorker: NewBaseWorker("reconcile", interval, true),
		repo:       repo,
		service:    service,
		grace:      grace,
		limit:      limit,
	}
}

// Run fires every pending record whose due time passed more than grace ago.
// Firing directly instead of re-enqueueing keeps recovery to one hop, and
// the fire handler's CAS makes a concurrent dispatch harmless.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	start := time.Now()

	stale, err := w.repo.ListDue(ctx, time.Now().UTC(), w.grace, w.limit)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	if len(stale) == 0 {
		w.RecordRun(time.Since(start))
		return nil
	}

	w.Log().Warnw("Rescuing stale scheduled requests", "count", len(stale))

	for _, record := range stale {
		if err := w.service.Fire(ctx, record.ID); err != nil {
			w.Log().Errorw("Failed to rescue scheduled request",
				"request_id", record.ID, "error", err)
		}
	}

	w.RecordRun(time.Since(start))
	return nil
}
