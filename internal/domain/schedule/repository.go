package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists scheduled request records.
type Repository interface {
	Create(ctx context.Context, req *ScheduledRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduledRequest, error)
	List(ctx context.Context, filter Filter) ([]*ScheduledRequest, error)

	// Claim atomically moves a pending record to processing. It returns
	// false when the record is no longer pending, which makes the durable
	// callback handler idempotent under at-least-once delivery.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// CancelPending atomically moves a pending record to failed with the
	// given reason. It returns false when the record is no longer pending,
	// so a cancel racing a fired claim cannot clobber a processing record.
	CancelPending(ctx context.Context, id uuid.UUID, reason string) (bool, error)

	// ListDue returns pending records whose scheduled time passed more than
	// grace ago. Used to rescue records whose queue entry was lost.
	ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*ScheduledRequest, error)
}
