package schedule

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	"oracle/internal/events"
	"oracle/internal/metrics"
	"oracle/internal/scheduler"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Resolver re-executes a resolution when a scheduled request fires. It is
// the orchestrator seen through a narrow interface to avoid a dependency
// cycle between the two services.
type Resolver interface {
	ResolveScheduled(ctx context.Context, req resolution.Request, attempt resolution.Attempt) error
}

// Service owns the scheduled request lifecycle: retry decisions, deferred
// executions, cancellation and the durable callback handler.
type Service struct {
	repo      schedule.Repository
	queue     scheduler.DelayQueue
	publisher *events.ResolutionPublisher
	resolver  Resolver
	log       *logger.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a retry scheduler service. The resolver is attached
// later via SetResolver because the orchestrator depends on this service too.
func NewService(repo schedule.Repository, queue scheduler.DelayQueue, publisher *events.ResolutionPublisher) *Service {
	return &Service{
		repo:      repo,
		queue:     queue,
		publisher: publisher,
		log:       logger.Get().With("service", "retry_scheduler"),
		now:       time.Now,
	}
}

// SetResolver attaches the re-execution entry point.
func (s *Service) SetResolver(r Resolver) {
	s.resolver = r
}

// OnOutcome decides what to do after one resolution attempt. Only a
// no-answer outcome below the retry cap results in scheduling; no_consensus
// is advisory and consensus is terminal.
func (s *Service) OnOutcome(ctx context.Context, req resolution.Request, result resolution.ConsensusResult, attempt resolution.Attempt) (schedule.Decision, error) {
	switch result.Status {
	case resolution.StatusConsensus:
		return schedule.Decision{Kind: schedule.DecisionNone}, nil

	case resolution.StatusNoConsensus:
		return schedule.Decision{Kind: schedule.DecisionManualRetry}, nil

	case resolution.StatusNoAnswer:
		if attempt.RetryCount >= schedule.MaxRetries {
			s.log.Warnw("Max retries exhausted",
				"question_file_name", req.QuestionFileName,
				"retry_count", attempt.RetryCount,
			)
			metrics.RetriesExhausted.Inc()
			s.publisher.PublishExhausted(ctx, req.QuestionFileName, req.Question, attempt.RetryCount)
			return schedule.Decision{Kind: schedule.DecisionExhausted, RetryCount: attempt.RetryCount}, nil
		}
		return s.scheduleRetry(ctx, req, attempt)

	default:
		return schedule.Decision{}, errors.Wrapf(errors.ErrInternal, "unknown consensus status %q", result.Status)
	}
}

// scheduleRetry persists a retry record and registers it with the delay
// queue. The two steps are one logical unit: a registration failure rolls
// the record back to failed so no orphaned pending promise survives.
func (s *Service) scheduleRetry(ctx context.Context, req resolution.Request, attempt resolution.Attempt) (schedule.Decision, error) {
	retryCount := attempt.RetryCount + 1

	delay, err := schedule.DelayFor(retryCount)
	if err != nil {
		return schedule.Decision{}, err
	}

	now := s.now().UTC()
	record := &schedule.ScheduledRequest{
		ID:          uuid.New(),
		Action:      schedule.ActionResolveRetry,
		PoolID:      req.PoolID,
		Question:    req.Question,
		Options:     req.Options,
		FileName:    req.QuestionFileName,
		RetryCount:  retryCount,
		OriginalID:  attempt.OriginalRequestID,
		ScheduledAt: now.Add(delay),
		UserID:      req.UserID,
		Status:      schedule.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// A RetryState that cannot be persisted cannot fire; this failure is
	// fatal to the retry path, unlike the result record write.
	if err := s.repo.Create(ctx, record); err != nil {
		return schedule.Decision{}, errors.Wrap(err, "persist retry state")
	}

	if err := s.queue.Schedule(ctx, record.ID.String(), record.ScheduledAt); err != nil {
		if rbErr := s.repo.MarkFailed(ctx, record.ID, "scheduler registration failed"); rbErr != nil {
			s.log.Errorw("Failed to roll back unregistered retry",
				"request_id", record.ID, "error", rbErr)
		}
		return schedule.Decision{}, errors.Wrap(err, "register retry")
	}

	s.log.Infow("Retry scheduled",
		"request_id", record.ID,
		"retry_count", retryCount,
		"retry_at", record.ScheduledAt,
	)
	metrics.RetriesScheduled.WithLabelValues(strconv.Itoa(retryCount)).Inc()
	s.publisher.PublishRetryScheduled(ctx, record)

	return schedule.Decision{
		Kind:       schedule.DecisionScheduled,
		RetryCount: retryCount,
		RetryAt:    record.ScheduledAt,
		RequestID:  record.ID,
	}, nil
}

// Defer persists a user-scheduled execution and registers it.
func (s *Service) Defer(ctx context.Context, req resolution.Request, at time.Time) (*schedule.ScheduledRequest, error) {
	now := s.now().UTC()
	record := &schedule.ScheduledRequest{
		ID:          uuid.New(),
		Action:      schedule.ActionResolve,
		PoolID:      req.PoolID,
		Question:    req.Question,
		Options:     req.Options,
		FileName:    req.QuestionFileName,
		ScheduledAt: at.UTC(),
		UserID:      req.UserID,
		Status:      schedule.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.Wrap(err, "persist scheduled request")
	}

	if err := s.queue.Schedule(ctx, record.ID.String(), record.ScheduledAt); err != nil {
		if rbErr := s.repo.MarkFailed(ctx, record.ID, "scheduler registration failed"); rbErr != nil {
			s.log.Errorw("Failed to roll back unregistered request",
				"request_id", record.ID, "error", rbErr)
		}
		return nil, errors.Wrap(err, "register scheduled request")
	}

	s.log.Infow("Request deferred", "request_id", record.ID, "scheduled_at", record.ScheduledAt)
	return record, nil
}

// Get returns one scheduled request, optionally scoped to a user.
func (s *Service) Get(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*schedule.ScheduledRequest, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != nil && (record.UserID == nil || *record.UserID != *userID) {
		return nil, errors.Wrap(errors.ErrNotFound, "scheduled request not found")
	}
	return record, nil
}

// List returns scheduled requests matching the filter.
func (s *Service) List(ctx context.Context, filter schedule.Filter) ([]*schedule.ScheduledRequest, error) {
	return s.repo.List(ctx, filter)
}

// Cancel fails a pending request and best-effort removes its queue entry.
// The status flip is a compare-and-set on pending, so a cancel losing the
// race to a fired claim reports not-cancellable instead of clobbering a
// processing record. A queue removal failure does not fail the cancellation:
// the fire handler re-checks the persisted status and no-ops on non-pending
// records.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID *uuid.UUID) error {
	record, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}

	if !record.Cancellable() {
		return errors.Wrapf(errors.ErrNotCancellable, "status is %s", record.Status)
	}

	cancelled, err := s.repo.CancelPending(ctx, id, "Request cancelled by user")
	if err != nil {
		return errors.Wrap(err, "cancel scheduled request")
	}
	if !cancelled {
		return errors.Wrap(errors.ErrNotCancellable, "request is no longer pending")
	}

	if err := s.queue.Cancel(ctx, id.String()); err != nil {
		s.log.Warnw("Could not remove queue entry for cancelled request",
			"request_id", id, "error", err)
	}

	s.log.Infow("Scheduled request cancelled", "request_id", id)
	return nil
}

// Fire is the durable callback handler. The claim is a compare-and-set on
// the pending status, so at-least-once delivery and the cancellation race
// both collapse to a no-op here.
func (s *Service) Fire(ctx context.Context, id uuid.UUID) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "load scheduled request")
	}

	claimed, err := s.repo.Claim(ctx, id)
	if err != nil {
		return errors.Wrap(err, "claim scheduled request")
	}
	if !claimed {
		s.log.Infow("Skipping non-pending scheduled request",
			"request_id", id, "status", record.Status)
		return nil
	}

	if s.resolver == nil {
		// Should not happen in a wired process; surface loudly.
		if err := s.repo.MarkFailed(ctx, id, "no resolver attached"); err != nil {
			s.log.Errorw("Failed to mark unresolvable request", "request_id", id, "error", err)
		}
		return errors.Wrap(errors.ErrInternal, "no resolver attached")
	}

	attempt := resolution.Initial()
	if record.Action == schedule.ActionResolveRetry {
		originalID := record.ID
		if record.OriginalID != nil {
			originalID = *record.OriginalID
		}
		attempt = resolution.Retrying(record.RetryCount, &originalID)
	}

	s.log.Infow("Firing scheduled request",
		"request_id", id,
		"action", record.Action,
		"retry_count", record.RetryCount,
	)

	if err := s.resolver.ResolveScheduled(ctx, record.Request(), attempt); err != nil {
		if mfErr := s.repo.MarkFailed(ctx, id, err.Error()); mfErr != nil {
			s.log.Errorw("Failed to mark fired request failed", "request_id", id, "error", mfErr)
		}
		return errors.Wrap(err, "re-execute resolution")
	}

	if err := s.repo.MarkCompleted(ctx, id); err != nil {
		return errors.Wrap(err, "complete scheduled request")
	}

	return nil
}
