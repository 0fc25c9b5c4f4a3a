package schedule

import (
	"time"

	"github.com/google/uuid"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
)

// Status is the lifecycle state of a scheduled request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Action distinguishes user-deferred executions from automatic retries.
type Action string

const (
	ActionResolve      Action = "oracle-resolve"
	ActionResolveRetry Action = "oracle-resolve-retry"
)

// MaxRetries is the number of scheduled re-attempts beyond the initial try.
const MaxRetries = 4

// backoff is the progressive delay schedule for retries 1..MaxRetries.
// The published 5/30/60/180-minute contract is canonical; the flat
// 10-minute delay that one legacy path used was an inconsistency, not a
// second schedule.
var backoff = [MaxRetries]time.Duration{
	5 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
	180 * time.Minute,
}

// DelayFor returns the backoff delay preceding the given retry number
// (1-based). It returns ErrRetriesExhausted past the end of the schedule.
func DelayFor(retryNumber int) (time.Duration, error) {
	if retryNumber < 1 || retryNumber > MaxRetries {
		return 0, errors.Wrapf(errors.ErrRetriesExhausted, "retry %d out of schedule", retryNumber)
	}
	return backoff[retryNumber-1], nil
}

// ScheduledRequest is the persisted retry/deferral state. It is owned by the
// retry scheduler and the durable delay queue; the orchestrator only creates
// it and hands off ownership. The persisted Status is the authoritative state
// for the cancel-versus-fire race.
type ScheduledRequest struct {
	ID          uuid.UUID
	Action      Action
	PoolID      string
	Question    string
	Options     []string
	FileName    string
	RetryCount  int
	OriginalID  *uuid.UUID
	ScheduledAt time.Time
	UserID      *uuid.UUID
	Status      Status
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Request reconstructs the resolution request this record re-executes.
func (s *ScheduledRequest) Request() resolution.Request {
	return resolution.Request{
		PoolID:           s.PoolID,
		Question:         s.Question,
		Options:          s.Options,
		QuestionFileName: s.FileName,
		UserID:           s.UserID,
	}
}

// Cancellable reports whether the record may still be cancelled.
func (s *ScheduledRequest) Cancellable() bool {
	return s.Status == StatusPending
}

// Filter narrows scheduled request queries.
type Filter struct {
	Status    Status
	StartDate *time.Time
	EndDate   *time.Time
	UserID    *uuid.UUID
	Limit     int
}

// DecisionKind classifies the retry scheduler's verdict for one outcome.
type DecisionKind string

const (
	// DecisionNone: terminal success, nothing to schedule.
	DecisionNone DecisionKind = "none"

	// DecisionScheduled: a retry was persisted and registered.
	DecisionScheduled DecisionKind = "scheduled"

	// DecisionManualRetry: no automatic retry; the caller may resubmit.
	DecisionManualRetry DecisionKind = "manual_retry"

	// DecisionExhausted: max retries reached, terminal failure.
	DecisionExhausted DecisionKind = "exhausted"
)

// Decision is the outcome of the retry scheduler for one resolution attempt.
type Decision struct {
	Kind       DecisionKind
	RetryCount int
	RetryAt    time.Time
	RequestID  uuid.UUID
}
