package resolution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oracle/internal/adapters/ai"
	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	"oracle/internal/events"
	"oracle/internal/metrics"
	"oracle/internal/services/consensus"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Normalizer maps one free-form provider answer to an option index.
type Normalizer interface {
	Extract(ctx context.Context, options []string, rawAnswer string) (int, decimal.Decimal, error)
}

// QuestionFormatter rewrites the question for provider consumption.
type QuestionFormatter interface {
	Format(ctx context.Context, question string) (string, decimal.Decimal, error)
}

// RetryPlanner decides whether an outcome warrants a scheduled retry.
type RetryPlanner interface {
	OnOutcome(ctx context.Context, req resolution.Request, result resolution.ConsensusResult, attempt resolution.Attempt) (schedule.Decision, error)
}

// ProviderAnswer is one provider's contribution in the response payload.
type ProviderAnswer struct {
	Answer string          `json:"answer"`
	Index  int             `json:"index"`
	Raw    json.RawMessage `json:"raw"`
}

// Response is the immediate result of one resolution attempt. It is returned
// even when the outcome is no_answer and a retry was scheduled; the caller is
// never blocked on the retry chain.
type Response struct {
	QuestionFileName  string                                     `json:"question_file_name"`
	OriginalQuestion  string                                     `json:"original_question"`
	FormattedQuestion string                                     `json:"formatted_question"`
	Answers           map[resolution.ProviderName]ProviderAnswer `json:"answers"`
	Final             string                                     `json:"final"`
	ConsensusStatus   resolution.Status                          `json:"consensus_status"`
	ConsensusIndex    int                                        `json:"consensus_index"`
	OperationsCost    decimal.Decimal                            `json:"operations_cost"`
	RetryScheduled    bool                                       `json:"retry_scheduled"`
	RetryCount        int                                        `json:"retry_count,omitempty"`
	RetryAt           *time.Time                                 `json:"retry_at,omitempty"`
	RetryRequestID    *uuid.UUID                                 `json:"retry_request_id,omitempty"`
	Message           string                                     `json:"message,omitempty"`
}

// Service orchestrates one resolution attempt end to end: format, fan out,
// normalize, decide, then either persist the outcome or hand it to the retry
// planner.
type Service struct {
	providers  []ai.Provider
	normalizer Normalizer
	formatter  QuestionFormatter
	engine     *consensus.Engine
	records    resolution.Repository
	planner    RetryPlanner
	publisher  *events.ResolutionPublisher
	log        *logger.Logger
}

// NewService creates the orchestrator. Providers are queried in the order
// given; pass them in canonical order.
func NewService(
	providers []ai.Provider,
	normalizer Normalizer,
	formatter QuestionFormatter,
	engine *consensus.Engine,
	records resolution.Repository,
	planner RetryPlanner,
	publisher *events.ResolutionPublisher,
) *Service {
	return &Service{
		providers:  providers,
		normalizer: normalizer,
		formatter:  formatter,
		engine:     engine,
		records:    records,
		planner:    planner,
		publisher:  publisher,
		log:        logger.Get().With("service", "resolution"),
	}
}

// Resolve runs one full resolution attempt for the request.
func (s *Service) Resolve(ctx context.Context, req resolution.Request, attempt resolution.Attempt) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	req.QuestionFileName = req.CanonicalFileName(resolution.RequesterTag(req.UserID))

	started := time.Now()
	attemptLabel := "initial"
	if attempt.IsRetry() {
		attemptLabel = "retry"
	}

	s.log.Infow("Resolving question",
		"question_file_name", req.QuestionFileName,
		"options", len(req.Options),
		"attempt", attemptLabel,
		"retry_count", attempt.RetryCount,
	)

	formatted, formatCost, err := s.formatter.Format(ctx, req.Question)
	if err != nil {
		// Formatting is best-effort; the raw question is always usable.
		s.log.Warnw("Question formatting failed, using raw question",
			"question_file_name", req.QuestionFileName, "error", err)
		formatted, formatCost = req.Question, decimal.Zero
	}

	replies, ok := s.fanOut(ctx, formatted, req.Options)
	if !ok {
		metrics.Resolutions.WithLabelValues("error", attemptLabel).Inc()
		return nil, errors.Wrap(errors.ErrAllProvidersFailed, "no provider produced an answer")
	}

	votes, answers, extractCost := s.normalize(ctx, req.Options, replies)

	result := s.engine.Decide(req.Options, votes)

	totalCost := formatCost.Add(extractCost)
	for _, reply := range replies {
		if reply != nil {
			totalCost = totalCost.Add(reply.Cost)
		}
	}

	f, _ := totalCost.Float64()
	metrics.Resolutions.WithLabelValues(string(result.Status), attemptLabel).Inc()
	metrics.ResolutionDuration.Observe(time.Since(started).Seconds())
	metrics.ResolutionCost.Add(f)

	decision, err := s.planner.OnOutcome(ctx, req, result, attempt)
	if err != nil {
		return nil, err
	}

	// A scheduled retry defers the authoritative record to the attempt that
	// actually settles the question; everything else is terminal and gets
	// persisted now.
	if decision.Kind != schedule.DecisionScheduled {
		s.persistRecord(ctx, req, formatted, answers, result, totalCost)
	}

	s.log.Infow("Resolution finished",
		"question_file_name", req.QuestionFileName,
		"status", result.Status,
		"final", result.Final,
		"decision", decision.Kind,
		"cost", totalCost,
		"duration", time.Since(started),
	)

	return buildResponse(req, formatted, answers, result, totalCost, decision), nil
}

// ResolveScheduled re-runs a resolution on behalf of a fired scheduled
// request. The response payload has no consumer on this path.
func (s *Service) ResolveScheduled(ctx context.Context, req resolution.Request, attempt resolution.Attempt) error {
	_, err := s.Resolve(ctx, req, attempt)
	return err
}

// fanOut queries every provider concurrently. A failed provider yields a nil
// reply and the resolution continues; only a full wipeout is an error.
func (s *Service) fanOut(ctx context.Context, question string, options []string) ([]*ai.Reply, bool) {
	replies := make([]*ai.Reply, len(s.providers))

	var wg sync.WaitGroup
	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p ai.Provider) {
			defer wg.Done()

			start := time.Now()
			reply, err := p.Ask(ctx, question, options)
			metrics.ProviderLatency.WithLabelValues(string(p.Name())).Observe(time.Since(start).Seconds())

			if err != nil {
				metrics.ProviderCalls.WithLabelValues(string(p.Name()), "error").Inc()
				s.log.Warnw("Provider call failed",
					"provider", p.Name(), "error", err, "duration", time.Since(start))
				return
			}

			metrics.ProviderCalls.WithLabelValues(string(p.Name()), "success").Inc()
			replies[i] = reply
		}(i, p)
	}
	wg.Wait()

	for _, reply := range replies {
		if reply != nil {
			return replies, true
		}
	}
	return replies, false
}

// normalize maps every reply to an option index concurrently. Extraction
// failures degrade to a no-match vote rather than failing the attempt.
func (s *Service) normalize(ctx context.Context, options []string, replies []*ai.Reply) (map[resolution.ProviderName]int, map[resolution.ProviderName]resolution.ModelAnswer, decimal.Decimal) {
	indexes := make([]int, len(s.providers))
	costs := make([]decimal.Decimal, len(s.providers))

	var wg sync.WaitGroup
	for i, p := range s.providers {
		wg.Add(1)
		go func(i int, p ai.Provider) {
			defer wg.Done()

			text := ""
			if replies[i] != nil {
				text = replies[i].Text
			}

			idx, cost, err := s.normalizer.Extract(ctx, options, text)
			if err != nil {
				s.log.Warnw("Answer extraction failed",
					"provider", p.Name(), "error", err)
				idx, cost = resolution.NoMatchIndex, decimal.Zero
			}
			indexes[i], costs[i] = idx, cost
		}(i, p)
	}
	wg.Wait()

	votes := make(map[resolution.ProviderName]int, len(s.providers))
	answers := make(map[resolution.ProviderName]resolution.ModelAnswer, len(s.providers))
	extractCost := decimal.Zero

	for i, p := range s.providers {
		name := p.Name()
		votes[name] = indexes[i]
		extractCost = extractCost.Add(costs[i])

		answer := resolution.NoAnswerSentinel
		if indexes[i] >= 0 && indexes[i] < len(options) {
			answer = options[indexes[i]]
		}

		providerCost := decimal.Zero
		if replies[i] != nil {
			providerCost = replies[i].Cost
		}

		answers[name] = resolution.ModelAnswer{
			Answer:      answer,
			Index:       indexes[i],
			RawResponse: replies[i].RawJSON(),
			Cost:        providerCost.Add(costs[i]),
		}
	}

	return votes, answers, extractCost
}

func (s *Service) persistRecord(ctx context.Context, req resolution.Request, formatted string, answers map[resolution.ProviderName]resolution.ModelAnswer, result resolution.ConsensusResult, cost decimal.Decimal) {
	record := &resolution.QuestionRecord{
		ID:                uuid.New(),
		Question:          req.Question,
		FormattedQuestion: formatted,
		Options:           req.Options,
		QuestionFileName:  req.QuestionFileName,
		ModelAnswers:      answers,
		ConsensusAnswer:   result.Final,
		ConsensusStatus:   result.Status,
		OperationsCost:    cost,
		UserID:            req.UserID,
		PoolID:            req.PoolID,
		Date:              time.Now().UTC(),
	}

	// The answer was already produced; losing the record is an observability
	// gap, not a resolution failure.
	if err := s.records.Create(ctx, record); err != nil {
		s.log.Errorw("Failed to persist question record",
			"question_file_name", req.QuestionFileName, "error", err)
		return
	}

	s.publisher.PublishCompleted(ctx, record)
}

func buildResponse(req resolution.Request, formatted string, answers map[resolution.ProviderName]resolution.ModelAnswer, result resolution.ConsensusResult, cost decimal.Decimal, decision schedule.Decision) *Response {
	resp := &Response{
		QuestionFileName:  req.QuestionFileName,
		OriginalQuestion:  req.Question,
		FormattedQuestion: formatted,
		Answers:           make(map[resolution.ProviderName]ProviderAnswer, len(answers)),
		Final:             result.Final,
		ConsensusStatus:   result.Status,
		ConsensusIndex:    result.ConsensusIndex,
		OperationsCost:    cost,
	}

	for name, answer := range answers {
		resp.Answers[name] = ProviderAnswer{
			Answer: answer.Answer,
			Index:  answer.Index,
			Raw:    json.RawMessage(answer.RawResponse),
		}
	}

	switch decision.Kind {
	case schedule.DecisionScheduled:
		retryAt := decision.RetryAt
		requestID := decision.RequestID
		resp.RetryScheduled = true
		resp.RetryCount = decision.RetryCount
		resp.RetryAt = &retryAt
		resp.RetryRequestID = &requestID
		resp.Message = "No answer from providers; a retry has been scheduled"
	case schedule.DecisionManualRetry:
		resp.Message = "Providers disagreed; resubmit to retry manually"
	case schedule.DecisionExhausted:
		resp.RetryCount = decision.RetryCount
		resp.Message = "No answer after all scheduled retries"
	}

	return resp
}
