package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	resolutionsvc "oracle/internal/services/resolution"
	schedulesvc "oracle/internal/services/schedule"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Handler exposes the resolution and scheduling API.
type Handler struct {
	resolver  *resolutionsvc.Service
	scheduler *schedulesvc.Service
	records   resolution.Repository
	log       *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(resolver *resolutionsvc.Service, scheduler *schedulesvc.Service, records resolution.Repository) *Handler {
	return &Handler{
		resolver:  resolver,
		scheduler: scheduler,
		records:   records,
		log:       logger.Get().With("component", "api"),
	}
}

type resolveRequest struct {
	Question         string     `json:"question"`
	Options          []string   `json:"options"`
	QuestionFileName string     `json:"questionFileName,omitempty"`
	PoolID           string     `json:"poolId,omitempty"`
	UserID           *uuid.UUID `json:"userId,omitempty"`

	// ScheduledAt defers the resolution instead of running it inline.
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (r *resolveRequest) domain() resolution.Request {
	return resolution.Request{
		PoolID:           r.PoolID,
		Question:         r.Question,
		Options:          r.Options,
		QuestionFileName: r.QuestionFileName,
		UserID:           r.UserID,
	}
}

// deferredResponse acknowledges a deferred resolution.
type deferredResponse struct {
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	ScheduledRequestID uuid.UUID       `json:"scheduledRequestId"`
	ScheduledAt        time.Time       `json:"scheduledAt"`
	Status             schedule.Status `json:"status"`
	EstimatedExecution time.Time       `json:"estimatedExecution"`
}

type scheduledRequestPayload struct {
	ID               uuid.UUID       `json:"id"`
	Action           schedule.Action `json:"action"`
	Question         string          `json:"question"`
	Options          []string        `json:"options"`
	QuestionFileName string          `json:"question_file_name"`
	RetryCount       int             `json:"retry_count"`
	ScheduledAt      time.Time       `json:"scheduled_at"`
	Status           schedule.Status `json:"status"`
	LastError        string          `json:"last_error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func toScheduledPayload(r *schedule.ScheduledRequest) scheduledRequestPayload {
	return scheduledRequestPayload{
		ID:               r.ID,
		Action:           r.Action,
		Question:         r.Question,
		Options:          r.Options,
		QuestionFileName: r.FileName,
		RetryCount:       r.RetryCount,
		ScheduledAt:      r.ScheduledAt,
		Status:           r.Status,
		LastError:        r.LastError,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type questionPayload struct {
	ID                uuid.UUID                                            `json:"id"`
	Question          string                                               `json:"question"`
	FormattedQuestion string                                               `json:"formatted_question"`
	Options           []string                                             `json:"options"`
	QuestionFileName  string                                               `json:"question_file_name"`
	ModelAnswers      map[resolution.ProviderName]resolution.ModelAnswer   `json:"model_answers"`
	ConsensusAnswer   string                                               `json:"consensus_answer"`
	ConsensusStatus   resolution.Status                                    `json:"consensus_status"`
	OperationsCost    decimal.Decimal                                      `json:"operations_cost"`
	PoolID            string                                               `json:"pool_id,omitempty"`
	Date              time.Time                                            `json:"date"`
}

func toQuestionPayload(r *resolution.QuestionRecord) questionPayload {
	return questionPayload{
		ID:                r.ID,
		Question:          r.Question,
		FormattedQuestion: r.FormattedQuestion,
		Options:           r.Options,
		QuestionFileName:  r.QuestionFileName,
		ModelAnswers:      r.ModelAnswers,
		ConsensusAnswer:   r.ConsensusAnswer,
		ConsensusStatus:   r.ConsensusStatus,
		OperationsCost:    r.OperationsCost,
		PoolID:            r.PoolID,
		Date:              r.Date,
	}
}

// HandleResolve runs a resolution inline, or defers it when scheduledAt is
// set to a future time.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}

	req := body.domain()

	// A present scheduledAt always defers; it never falls through to an
	// inline resolution.
	if body.ScheduledAt != nil {
		if !body.ScheduledAt.After(time.Now()) {
			respondError(w, errors.NewValidationError("scheduledAt", "must be in the future", body.ScheduledAt.Format(time.RFC3339)))
			return
		}
		if err := req.Validate(); err != nil {
			respondError(w, err)
			return
		}
		req.QuestionFileName = req.CanonicalFileName(resolution.RequesterTag(req.UserID))

		record, err := h.scheduler.Defer(r.Context(), req, *body.ScheduledAt)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, deferredResponse{
			Success:            true,
			Message:            "Request scheduled for later execution",
			ScheduledRequestID: record.ID,
			ScheduledAt:        record.ScheduledAt,
			Status:             record.Status,
			EstimatedExecution: record.ScheduledAt,
		})
		return
	}

	resp, err := h.resolver.Resolve(r.Context(), req, resolution.Initial())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// HandleListScheduled lists scheduled requests with optional filters.
func (h *Handler) HandleListScheduled(w http.ResponseWriter, r *http.Request) {
	filter := schedule.Filter{
		Status: schedule.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 100),
	}

	var err error
	if filter.StartDate, err = queryTime(r, "startDate"); err != nil {
		respondError(w, err)
		return
	}
	if filter.EndDate, err = queryTime(r, "endDate"); err != nil {
		respondError(w, err)
		return
	}
	if filter.UserID, err = queryUUID(r, "userId"); err != nil {
		respondError(w, err)
		return
	}

	records, err := h.scheduler.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]scheduledRequestPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, toScheduledPayload(record))
	}
	respondJSON(w, http.StatusOK, payload)
}

// HandleGetScheduled returns one scheduled request by id.
func (h *Handler) HandleGetScheduled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request id"))
		return
	}

	userID, err := queryUUID(r, "userId")
	if err != nil {
		respondError(w, err)
		return
	}

	record, err := h.scheduler.Get(r.Context(), id, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toScheduledPayload(record))
}

// HandleCancelScheduled cancels a pending scheduled request.
func (h *Handler) HandleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request id"))
		return
	}

	userID, err := queryUUID(r, "userId")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.scheduler.Cancel(r.Context(), id, userID); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// HandleListQuestions lists persisted question records.
func (h *Handler) HandleListQuestions(w http.ResponseWriter, r *http.Request) {
	filter := resolution.RecordFilter{
		PoolID:           r.URL.Query().Get("poolId"),
		QuestionFileName: r.URL.Query().Get("fileName"),
		Limit:            queryInt(r, "limit", 100),
	}

	var err error
	if filter.StartDate, err = queryTime(r, "startDate"); err != nil {
		respondError(w, err)
		return
	}
	if filter.EndDate, err = queryTime(r, "endDate"); err != nil {
		respondError(w, err)
		return
	}
	if filter.UserID, err = queryUUID(r, "userId"); err != nil {
		respondError(w, err)
		return
	}

	records, err := h.records.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	payload := make([]questionPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, toQuestionPayload(record))
	}
	respondJSON(w, http.StatusOK, payload)
}

// HandleFileNames lists the distinct question file names seen so far.
func (h *Handler) HandleFileNames(w http.ResponseWriter, r *http.Request) {
	filter := resolution.RecordFilter{}

	userID, err := queryUUID(r, "userId")
	if err != nil {
		respondError(w, err)
		return
	}
	filter.UserID = userID

	names, err := h.records.DistinctFileNames(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string][]string{"file_names": names})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s must be RFC3339", key)
	}
	return &t, nil
}

func queryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s must be a UUID", key)
	}
	return &id, nil
}
