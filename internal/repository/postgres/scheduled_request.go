package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"oracle/internal/domain/schedule"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// ScheduledRequestRepository implements schedule.Repository using PostgreSQL
type ScheduledRequestRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewScheduledRequestRepository creates a new PostgreSQL scheduled request repository
func NewScheduledRequestRepository(db *sqlx.DB) *ScheduledRequestRepository {
	return &ScheduledRequestRepository{
		db:  db,
		log: logger.Get().With("component", "scheduled_request_repository"),
	}
}

// Create persists a new scheduled request
func (r *ScheduledRequestRepository) Create(ctx context.Context, req *schedule.ScheduledRequest) error {
	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return errors.Wrap(err, "failed to marshal options")
	}

	query := `
		INSERT INTO scheduled_requests (
			id, action, pool_id, question, options, file_name, retry_count,
			original_id, scheduled_at, user_id, status, last_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		req.ID,
		req.Action,
		nullableString(req.PoolID),
		req.Question,
		optionsJSON,
		req.FileName,
		req.RetryCount,
		req.OriginalID,
		req.ScheduledAt,
		req.UserID,
		req.Status,
		nullableString(req.LastError),
		req.CreatedAt,
		req.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create scheduled request")
	}

	return nil
}

const scheduledRequestColumns = `
	id, action, pool_id, question, options, file_name, retry_count,
	original_id, scheduled_at, user_id, status, last_error, created_at, updated_at
`

// GetByID retrieves a scheduled request
func (r *ScheduledRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.ScheduledRequest, error) {
	query := `SELECT ` + scheduledRequestColumns + ` FROM scheduled_requests WHERE id = $1`

	req, err := scanScheduledRequest(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows || errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "scheduled request not found")
	}
	if err != nil {
		return nil, err
	}

	return req, nil
}

// List returns scheduled requests matching the filter, newest first
func (r *ScheduledRequestRepository) List(ctx context.Context, filter schedule.Filter) ([]*schedule.ScheduledRequest, error) {
	query := `SELECT ` + scheduledRequestColumns + ` FROM scheduled_requests WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		args = append(args, *filter.StartDate)
		query += ` AND scheduled_at >= ` + placeholder(len(args))
		args = append(args, *filter.EndDate)
		query += ` AND scheduled_at <= ` + placeholder(len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += ` AND user_id = ` + placeholder(len(args))
	}

	query += ` ORDER BY scheduled_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled requests")
	}
	defer rows.Close()

	var requests []*schedule.ScheduledRequest
	for rows.Next() {
		req, err := scanScheduledRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// Claim atomically moves a pending record to processing. The status column is
// the authoritative state for the cancel-versus-fire race; a record that is
// no longer pending is simply not claimed.
func (r *ScheduledRequestRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduled_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	res, err := r.db.ExecContext(ctx, query, schedule.StatusProcessing, time.Now().UTC(), id, schedule.StatusPending)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim scheduled request")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read claim result")
	}

	return affected == 1, nil
}

// MarkCompleted moves a record to its terminal completed state
func (r *ScheduledRequestRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, schedule.StatusCompleted, "")
}

// MarkFailed moves a record to its terminal failed state with a reason
func (r *ScheduledRequestRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.setStatus(ctx, id, schedule.StatusFailed, reason)
}

// CancelPending fails a record only while it is still pending. A claim that
// landed first wins the race and the cancel reports false.
func (r *ScheduledRequestRepository) CancelPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE scheduled_requests
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	res, err := r.db.ExecContext(ctx, query, schedule.StatusFailed, nullableString(reason), time.Now().UTC(), id, schedule.StatusPending)
	if err != nil {
		return false, errors.Wrap(err, "failed to cancel scheduled request")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read cancel result")
	}

	return affected == 1, nil
}

func (r *ScheduledRequestRepository) setStatus(ctx context.Context, id uuid.UUID, status schedule.Status, reason string) error {
	query := `
		UPDATE scheduled_requests
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query, status, nullableString(reason), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to mark scheduled request %s", status)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}
	if affected == 0 {
		return errors.Wrap(errors.ErrNotFound, "scheduled request not found")
	}

	return nil
}

// ListDue returns pending records overdue by more than grace, oldest first
func (r *ScheduledRequestRepository) ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*schedule.ScheduledRequest, error) {
	query := `
		SELECT ` + scheduledRequestColumns + `
		FROM scheduled_requests
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, schedule.StatusPending, now.Add(-grace), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due requests")
	}
	defer rows.Close()

	var requests []*schedule.ScheduledRequest
	for rows.Next() {
		req, err := scanScheduledRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanScheduledRequest(row rowScanner) (*schedule.ScheduledRequest, error) {
	var (
		req         schedule.ScheduledRequest
		optionsJSON []byte
		poolID      *string
		lastError   *string
	)

	err := row.Scan(
		&req.ID,
		&req.Action,
		&poolID,
		&req.Question,
		&optionsJSON,
		&req.FileName,
		&req.RetryCount,
		&req.OriginalID,
		&req.ScheduledAt,
		&req.UserID,
		&req.Status,
		&lastError,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan scheduled request")
	}

	if err := json.Unmarshal(optionsJSON, &req.Options); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal options")
	}
	if poolID != nil {
		req.PoolID = *poolID
	}
	if lastError != nil {
		req.LastError = *lastError
	}

	return &req, nil
}
