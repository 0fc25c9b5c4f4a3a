package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"oracle/internal/domain/resolution"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// QuestionRepository implements resolution.Repository using PostgreSQL
type QuestionRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewQuestionRepository creates a new PostgreSQL question repository
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{
		db:  db,
		log: logger.Get().With("component", "question_repository"),
	}
}

// Create persists a completed resolution result record
func (r *QuestionRepository) Create(ctx context.Context, record *resolution.QuestionRecord) error {
	optionsJSON, err := json.Marshal(record.Options)
	if err != nil {
		return errors.Wrap(err, "failed to marshal options")
	}

	answersJSON, err := json.Marshal(record.ModelAnswers)
	if err != nil {
		return errors.Wrap(err, "failed to marshal model answers")
	}

	query := `
		INSERT INTO questions (
			id, question, formatted_question, options, question_file_name,
			model_answers, consensus_answer, consensus_status, operations_cost,
			user_id, pool_id, date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.Question,
		record.FormattedQuestion,
		optionsJSON,
		record.QuestionFileName,
		answersJSON,
		record.ConsensusAnswer,
		record.ConsensusStatus,
		record.OperationsCost,
		record.UserID,
		nullableString(record.PoolID),
		record.Date,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create question record")
	}

	return nil
}

// List returns question records matching the filter, newest first
func (r *QuestionRepository) List(ctx context.Context, filter resolution.RecordFilter) ([]*resolution.QuestionRecord, error) {
	query := `
		SELECT id, question, formatted_question, options, question_file_name,
		       model_answers, consensus_answer, consensus_status, operations_cost,
		       user_id, pool_id, date
		FROM questions
		WHERE 1=1
	`
	var args []interface{}

	query, args = applyRecordFilter(query, args, filter)
	query += ` ORDER BY date DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list question records")
	}
	defer rows.Close()

	var records []*resolution.QuestionRecord
	for rows.Next() {
		record, err := scanQuestionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// DistinctFileNames returns distinct question file names matching the filter
func (r *QuestionRepository) DistinctFileNames(ctx context.Context, filter resolution.RecordFilter) ([]string, error) {
	query := `SELECT DISTINCT question_file_name FROM questions WHERE 1=1`
	var args []interface{}

	query, args = applyRecordFilter(query, args, filter)
	query += ` ORDER BY question_file_name`

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list file names")
	}

	return names, nil
}

func applyRecordFilter(query string, args []interface{}, filter resolution.RecordFilter) (string, []interface{}) {
	if filter.StartDate != nil && filter.EndDate != nil {
		args = append(args, *filter.StartDate)
		query += ` AND date >= ` + placeholder(len(args))
		args = append(args, *filter.EndDate)
		query += ` AND date <= ` + placeholder(len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += ` AND user_id = ` + placeholder(len(args))
	}
	if filter.PoolID != "" {
		args = append(args, filter.PoolID)
		query += ` AND pool_id = ` + placeholder(len(args))
	}
	if filter.QuestionFileName != "" {
		args = append(args, filter.QuestionFileName)
		query += ` AND question_file_name = ` + placeholder(len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestionRecord(row rowScanner) (*resolution.QuestionRecord, error) {
	var (
		record      resolution.QuestionRecord
		optionsJSON []byte
		answersJSON []byte
		poolID      *string
		cost        decimal.Decimal
		date        time.Time
	)

	err := row.Scan(
		&record.ID,
		&record.Question,
		&record.FormattedQuestion,
		&optionsJSON,
		&record.QuestionFileName,
		&answersJSON,
		&record.ConsensusAnswer,
		&record.ConsensusStatus,
		&cost,
		&record.UserID,
		&poolID,
		&date,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan question record")
	}

	if err := json.Unmarshal(optionsJSON, &record.Options); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal options")
	}
	if err := json.Unmarshal(answersJSON, &record.ModelAnswers); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal model answers")
	}

	record.OperationsCost = cost
	record.Date = date
	if poolID != nil {
		record.PoolID = *poolID
	}

	return &record, nil
}
