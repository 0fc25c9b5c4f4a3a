package resolution

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ModelAnswer is one provider's contribution as persisted in a question record.
type ModelAnswer struct {
	// Answer is the matched option string, or the no-answer fallback.
	Answer string `json:"answer"`
	// Index is the normalized option index, -1 for no match.
	Index int `json:"index"`
	// RawResponse is the provider's payload as a JSON string.
	RawResponse string `json:"raw_response"`
	// Cost is the provider call cost in USD.
	Cost decimal.Decimal `json:"cost"`
}

// QuestionRecord is the persisted result of one completed resolution attempt.
// A failure to persist it is logged and swallowed; it never fails the
// resolution itself.
type QuestionRecord struct {
	ID                uuid.UUID
	Question          string
	FormattedQuestion string
	Options           []string
	QuestionFileName  string
	ModelAnswers      map[ProviderName]ModelAnswer
	ConsensusAnswer   string
	ConsensusStatus   Status
	OperationsCost    decimal.Decimal
	UserID            *uuid.UUID
	PoolID            string
	Date              time.Time
}

// RecordFilter narrows question record queries.
type RecordFilter struct {
	StartDate        *time.Time
	EndDate          *time.Time
	UserID           *uuid.UUID
	PoolID           string
	QuestionFileName string
	Limit            int
}
