package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/adapters/ai"
	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	"oracle/internal/events"
	"oracle/internal/services/consensus"
	resolutionsvc "oracle/internal/services/resolution"
	schedulesvc "oracle/internal/services/schedule"
	"oracle/pkg/errors"
)

// fixedProvider answers with one option for every question
type fixedProvider struct {
	name   resolution.ProviderName
	answer string
}

func (p *fixedProvider) Name() resolution.ProviderName { return p.name }

func (p *fixedProvider) Ask(ctx context.Context, question string, options []string) (*ai.Reply, error) {
	return &ai.Reply{Text: p.answer, Raw: []byte(`"` + p.answer + `"`), Cost: decimal.NewFromFloat(0.001)}, nil
}

type matchNormalizer struct{}

func (matchNormalizer) Extract(ctx context.Context, options []string, rawAnswer string) (int, decimal.Decimal, error) {
	for i, opt := range options {
		if opt == rawAnswer {
			return i, decimal.Zero, nil
		}
	}
	return resolution.NoMatchIndex, decimal.Zero, nil
}

type passthroughFormatter struct{}

func (passthroughFormatter) Format(ctx context.Context, question string) (string, decimal.Decimal, error) {
	return question, decimal.Zero, nil
}

// memoryScheduleRepo is an in-memory schedule.Repository with domain errors
type memoryScheduleRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*schedule.ScheduledRequest
}

func newMemoryScheduleRepo() *memoryScheduleRepo {
	return &memoryScheduleRepo{records: make(map[uuid.UUID]*schedule.ScheduledRequest)}
}

func (m *memoryScheduleRepo) Create(ctx context.Context, req *schedule.ScheduledRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[req.ID] = req
	return nil
}

func (m *memoryScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*schedule.ScheduledRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "scheduled request %s", id)
	}
	copied := *record
	return &copied, nil
}

func (m *memoryScheduleRepo) List(ctx context.Context, filter schedule.Filter) ([]*schedule.ScheduledRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*schedule.ScheduledRequest, 0, len(m.records))
	for _, record := range m.records {
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryScheduleRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok || record.Status != schedule.StatusPending {
		return false, nil
	}
	record.Status = schedule.StatusProcessing
	return true, nil
}

func (m *memoryScheduleRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[id]; ok {
		record.Status = schedule.StatusCompleted
	}
	return nil
}

func (m *memoryScheduleRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[id]; ok {
		record.Status = schedule.StatusFailed
		record.LastError = reason
	}
	return nil
}

func (m *memoryScheduleRepo) CancelPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok || record.Status != schedule.StatusPending {
		return false, nil
	}
	record.Status = schedule.StatusFailed
	record.LastError = reason
	return true, nil
}

func (m *memoryScheduleRepo) ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*schedule.ScheduledRequest, error) {
	return nil, nil
}

type noopQueue struct{}

func (noopQueue) Schedule(ctx context.Context, jobKey string, at time.Time) error { return nil }
func (noopQueue) Cancel(ctx context.Context, jobKey string) error                 { return nil }
func (noopQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return nil, nil
}

// memoryQuestionRepo is an in-memory resolution.Repository
type memoryQuestionRepo struct {
	mu      sync.Mutex
	records []*resolution.QuestionRecord
}

func (m *memoryQuestionRepo) Create(ctx context.Context, record *resolution.QuestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memoryQuestionRepo) List(ctx context.Context, filter resolution.RecordFilter) ([]*resolution.QuestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *memoryQuestionRepo) DistinctFileNames(ctx context.Context, filter resolution.RecordFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var names []string
	for _, record := range m.records {
		if !seen[record.QuestionFileName] {
			seen[record.QuestionFileName] = true
			names = append(names, record.QuestionFileName)
		}
	}
	return names, nil
}

type testEnv struct {
	router       http.Handler
	scheduleRepo *memoryScheduleRepo
	questionRepo *memoryQuestionRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	providers := make([]ai.Provider, 0, 5)
	for _, name := range resolution.Providers() {
		providers = append(providers, &fixedProvider{name: name, answer: "Yes"})
	}

	scheduleRepo := newMemoryScheduleRepo()
	questionRepo := &memoryQuestionRepo{}
	publisher := events.NewResolutionPublisher(nil)

	scheduleService := schedulesvc.NewService(scheduleRepo, noopQueue{}, publisher)
	resolutionService := resolutionsvc.NewService(
		providers,
		matchNormalizer{},
		passthroughFormatter{},
		consensus.NewEngine(consensus.EqualWeights()),
		questionRepo,
		scheduleService,
		publisher,
	)
	scheduleService.SetResolver(resolutionService)

	handler := NewHandler(resolutionService, scheduleService, questionRepo)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/resolve", handler.HandleResolve)
		r.Route("/scheduled-requests", func(r chi.Router) {
			r.Get("/", handler.HandleListScheduled)
			r.Get("/{id}", handler.HandleGetScheduled)
			r.Delete("/{id}", handler.HandleCancelScheduled)
		})
		r.Route("/questions", func(r chi.Router) {
			r.Get("/", handler.HandleListQuestions)
			r.Get("/file-names", handler.HandleFileNames)
		})
	})

	return &testEnv{router: r, scheduleRepo: scheduleRepo, questionRepo: questionRepo}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleResolve_Inline(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question": "Will it rain in Berlin tomorrow?",
		"options":  []string{"Yes", "No"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Final            string `json:"final"`
		ConsensusStatus  string `json:"consensus_status"`
		ConsensusIndex   int    `json:"consensus_index"`
		QuestionFileName string `json:"question_file_name"`
		RetryScheduled   bool   `json:"retry_scheduled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Yes", resp.Final)
	assert.Equal(t, "consensus", resp.ConsensusStatus)
	assert.Equal(t, 0, resp.ConsensusIndex)
	assert.Contains(t, resp.QuestionFileName, "RAIN_")
	assert.False(t, resp.RetryScheduled)
}

func TestHandleResolve_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question": "",
		"options":  []string{"only one"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error   string `json:"error"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.GreaterOrEqual(t, len(body.Details), 2)
}

func TestHandleResolve_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/resolve", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolve_Deferred(t *testing.T) {
	env := newTestEnv(t)

	at := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	rec := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question":    "Will it rain in Berlin tomorrow?",
		"options":     []string{"Yes", "No"},
		"scheduledAt": at.Format(time.RFC3339),
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp deferredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
	assert.NotEqual(t, uuid.Nil, resp.ScheduledRequestID)
	assert.Equal(t, schedule.StatusPending, resp.Status)
	assert.True(t, resp.ScheduledAt.Equal(at))
	assert.True(t, resp.EstimatedExecution.Equal(at))

	// Nothing resolved inline.
	assert.Empty(t, env.questionRepo.records)

	// The persisted record carries the deferral.
	stored, err := env.scheduleRepo.GetByID(context.Background(), resp.ScheduledRequestID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ActionResolve, stored.Action)
	assert.Contains(t, stored.FileName, "RAIN_")
}

func TestHandleResolve_PastScheduledAtRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question":    "Will it rain in Berlin tomorrow?",
		"options":     []string{"Yes", "No"},
		"scheduledAt": time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339),
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "scheduledAt", body.Details[0].Field)

	// Neither resolved inline nor deferred.
	assert.Empty(t, env.questionRepo.records)
	assert.Empty(t, env.scheduleRepo.records)
}

func TestHandleListScheduled(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question":    "Will it rain in Berlin tomorrow?",
		"options":     []string{"Yes", "No"},
		"scheduledAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})

	rec := env.do(t, http.MethodGet, "/api/scheduled-requests/?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []scheduledRequestPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestHandleGetScheduled_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/scheduled-requests/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetScheduled_BadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/scheduled-requests/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCancelScheduled(t *testing.T) {
	env := newTestEnv(t)

	create := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question":    "Will it rain in Berlin tomorrow?",
		"options":     []string{"Yes", "No"},
		"scheduledAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusAccepted, create.Code)

	var created deferredResponse
	require.NoError(t, json.Unmarshal(create.Body.Bytes(), &created))

	rec := env.do(t, http.MethodDelete, "/api/scheduled-requests/"+created.ScheduledRequestID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// A second cancel finds nothing pending.
	rec = env.do(t, http.MethodDelete, "/api/scheduled-requests/"+created.ScheduledRequestID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelScheduled_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/scheduled-requests/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListQuestions(t *testing.T) {
	env := newTestEnv(t)

	resolve := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question": "Will it rain in Berlin tomorrow?",
		"options":  []string{"Yes", "No"},
	})
	require.Equal(t, http.StatusOK, resolve.Code)

	rec := env.do(t, http.MethodGet, "/api/questions/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []questionPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Yes", list[0].ConsensusAnswer)
	assert.Len(t, list[0].ModelAnswers, 5)
}

func TestHandleFileNames(t *testing.T) {
	env := newTestEnv(t)

	resolve := env.do(t, http.MethodPost, "/api/resolve", map[string]interface{}{
		"question":         "Will it rain in Berlin tomorrow?",
		"options":          []string{"Yes", "No"},
		"questionFileName": "berlin",
	})
	require.Equal(t, http.StatusOK, resolve.Code)

	rec := env.do(t, http.MethodGet, "/api/questions/file-names", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"RAIN_berlin"}, body["file_names"])
}
