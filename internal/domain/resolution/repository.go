package resolution

import "context"

// Repository persists question records. The core does not depend on a
// specific storage engine.
type Repository interface {
	Create(ctx context.Context, record *QuestionRecord) error
	List(ctx context.Context, filter RecordFilter) ([]*QuestionRecord, error)
	DistinctFileNames(ctx context.Context, filter RecordFilter) ([]string, error)
}
