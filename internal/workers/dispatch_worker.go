package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"oracle/internal/scheduler"
	schedulesvc "oracle/internal/services/schedule"
)

// DispatchWorker polls the delay queue for due scheduled requests and fires
// them. Each claimed key is fired exactly once per claim; the fire handler's
// status CAS absorbs duplicate deliveries.
type DispatchWorker struct {
	*BaseWorker
	queue     scheduler.DelayQueue
	service   *schedulesvc.Service
	batchSize int
}

// NewDispatchWorker creates a dispatch worker.
func NewDispatchWorker(queue scheduler.DelayQueue, service *schedulesvc.Service, interval time.Duration, batchSize int) *DispatchWorker {
	return &DispatchWorker{
		BaseWorker: NewBaseWorker("dispatch", interval, true),
		queue:      queue,
		service:    service,
		batchSize:  batchSize,
	}
}

// Run claims due job keys and fires each one. A failed fire is logged and
// skipped; the reconciler rescues records whose queue entry was consumed
// without completion.
func (w *DispatchWorker) Run(ctx context.Context) error {
	start := time.Now()

	keys, err := w.queue.Due(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		w.RecordError(err, time.Since(start))
		return err
	}

	if len(keys) == 0 {
		w.RecordRun(time.Since(start))
		return nil
	}

	w.Log().Infow("Dispatching due scheduled requests", "count", len(keys))

	for _, key := range keys {
		id, err := uuid.Parse(key)
		if err != nil {
			w.Log().Errorw("Dropping malformed job key", "key", key, "error", err)
			continue
		}

		if err := w.service.Fire(ctx, id); err != nil {
			w.Log().Errorw("Failed to fire scheduled request",
				"request_id", id, "error", err)
		}
	}

	w.RecordRun(time.Since(start))
	return nil
}
