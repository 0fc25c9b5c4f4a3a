package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"oracle/internal/adapters/kafka"
	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	"oracle/pkg/logger"
)

// ResolutionPublisher emits resolution lifecycle events to Kafka. Publishing
// is best-effort: failures are logged and swallowed so events never fail a
// resolution.
type ResolutionPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewResolutionPublisher creates a publisher. A nil producer disables publishing.
func NewResolutionPublisher(producer *kafka.Producer) *ResolutionPublisher {
	return &ResolutionPublisher{
		producer: producer,
		log:      logger.Get().With("component", "resolution_publisher"),
	}
}

// CompletedEvent is emitted for every terminal resolution outcome.
type CompletedEvent struct {
	QuestionFileName string            `json:"question_file_name"`
	Question         string            `json:"question"`
	Final            string            `json:"final"`
	Status           resolution.Status `json:"status"`
	ConsensusIndex   int               `json:"consensus_index"`
	OperationsCost   string            `json:"operations_cost"`
	PoolID           string            `json:"pool_id,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// RetryScheduledEvent is emitted when a no-answer outcome schedules a retry.
type RetryScheduledEvent struct {
	RequestID        uuid.UUID `json:"request_id"`
	QuestionFileName string    `json:"question_file_name"`
	RetryCount       int       `json:"retry_count"`
	RetryAt          time.Time `json:"retry_at"`
}

// ExhaustedEvent is emitted when a resolution hits the retry cap.
type ExhaustedEvent struct {
	QuestionFileName string    `json:"question_file_name"`
	Question         string    `json:"question"`
	RetryCount       int       `json:"retry_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// PublishCompleted emits a terminal outcome event.
func (p *ResolutionPublisher) PublishCompleted(ctx context.Context, record *resolution.QuestionRecord) {
	if p.producer == nil {
		return
	}

	event := CompletedEvent{
		QuestionFileName: record.QuestionFileName,
		Question:         record.Question,
		Final:            record.ConsensusAnswer,
		Status:           record.ConsensusStatus,
		ConsensusIndex:   consensusIndex(record),
		OperationsCost:   record.OperationsCost.String(),
		PoolID:           record.PoolID,
		Timestamp:        time.Now().UTC(),
	}

	if err := p.producer.Publish(ctx, kafka.TopicResolutionCompleted, record.QuestionFileName, event); err != nil {
		p.log.Warnw("Failed to publish completion event", "error", err)
	}
}

// consensusIndex recovers the option index of the consensus answer, -1 when
// the record did not reach consensus.
func consensusIndex(record *resolution.QuestionRecord) int {
	if record.ConsensusStatus != resolution.StatusConsensus {
		return resolution.NoMatchIndex
	}
	for i, opt := range record.Options {
		if opt == record.ConsensusAnswer {
			return i
		}
	}
	return resolution.NoMatchIndex
}

// PublishRetryScheduled emits a retry registration event.
func (p *ResolutionPublisher) PublishRetryScheduled(ctx context.Context, req *schedule.ScheduledRequest) {
	if p.producer == nil {
		return
	}

	event := RetryScheduledEvent{
		RequestID:        req.ID,
		QuestionFileName: req.FileName,
		RetryCount:       req.RetryCount,
		RetryAt:          req.ScheduledAt,
	}

	if err := p.producer.Publish(ctx, kafka.TopicRetryScheduled, req.ID.String(), event); err != nil {
		p.log.Warnw("Failed to publish retry event", "error", err)
	}
}

// PublishExhausted emits a terminal retry-cap event.
func (p *ResolutionPublisher) PublishExhausted(ctx context.Context, fileName, question string, retryCount int) {
	if p.producer == nil {
		return
	}

	event := ExhaustedEvent{
		QuestionFileName: fileName,
		Question:         question,
		RetryCount:       retryCount,
		Timestamp:        time.Now().UTC(),
	}

	if err := p.producer.Publish(ctx, kafka.TopicRetriesExhausted, fileName, event); err != nil {
		p.log.Warnw("Failed to publish exhausted event", "error", err)
	}
}
