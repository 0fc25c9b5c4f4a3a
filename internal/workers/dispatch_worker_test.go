package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/domain/resolution"
	"oracle/internal/domain/schedule"
	"oracle/internal/events"
	schedulesvc "oracle/internal/services/schedule"
)

// fakeScheduleRepo is an in-memory schedule.Repository
type fakeScheduleRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*schedule.ScheduledRequest
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{records: make(map[uuid.UUID]*schedule.ScheduledRequest)}
}

func (f *fakeScheduleRepo) Create(ctx context.Context, req *schedule.ScheduledRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[req.ID] = req
	return nil
}

func (f *fakeScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*schedule.ScheduledRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, context.Canceled
	}
	copied := *record
	return &copied, nil
}

func (f *fakeScheduleRepo) List(ctx context.Context, filter schedule.Filter) ([]*schedule.ScheduledRequest, error) {
	return nil, nil
}

func (f *fakeScheduleRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.Status != schedule.StatusPending {
		return false, nil
	}
	record.Status = schedule.StatusProcessing
	return true, nil
}

func (f *fakeScheduleRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return f.setStatus(id, schedule.StatusCompleted, "")
}

func (f *fakeScheduleRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return f.setStatus(id, schedule.StatusFailed, reason)
}

func (f *fakeScheduleRepo) CancelPending(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok || record.Status != schedule.StatusPending {
		return false, nil
	}
	record.Status = schedule.StatusFailed
	record.LastError = reason
	return true, nil
}

func (f *fakeScheduleRepo) setStatus(id uuid.UUID, status schedule.Status, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[id]; ok {
		record.Status = status
		record.LastError = reason
	}
	return nil
}

func (f *fakeScheduleRepo) ListDue(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*schedule.ScheduledRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []*schedule.ScheduledRequest
	for _, record := range f.records {
		if record.Status == schedule.StatusPending && record.ScheduledAt.Before(now.Add(-grace)) {
			copied := *record
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (f *fakeScheduleRepo) statusOf(id uuid.UUID) schedule.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].Status
}

// fakeDelayQueue is an in-memory scheduler.DelayQueue
type fakeDelayQueue struct {
	mu   sync.Mutex
	jobs map[string]time.Time
}

func newFakeDelayQueue() *fakeDelayQueue {
	return &fakeDelayQueue{jobs: make(map[string]time.Time)}
}

func (f *fakeDelayQueue) Schedule(ctx context.Context, jobKey string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobKey] = at
	return nil
}

func (f *fakeDelayQueue) Cancel(ctx context.Context, jobKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobKey)
	return nil
}

func (f *fakeDelayQueue) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []string
	for key, at := range f.jobs {
		if !at.After(now) && len(due) < limit {
			due = append(due, key)
			delete(f.jobs, key)
		}
	}
	return due, nil
}

// countingResolver counts re-executions
type countingResolver struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *countingResolver) ResolveScheduled(ctx context.Context, req resolution.Request, attempt resolution.Attempt) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.err
}

func (c *countingResolver) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func pendingRecord(at time.Time) *schedule.ScheduledRequest {
	return &schedule.ScheduledRequest{
		ID:          uuid.New(),
		Action:      schedule.ActionResolveRetry,
		Question:    "Will it rain tomorrow?",
		Options:     []string{"Yes", "No"},
		FileName:    "RAIN_test_1",
		RetryCount:  1,
		ScheduledAt: at,
		Status:      schedule.StatusPending,
	}
}

func TestDispatchWorker_FiresDueRequests(t *testing.T) {
	repo := newFakeScheduleRepo()
	queue := newFakeDelayQueue()
	resolver := &countingResolver{}

	svc := schedulesvc.NewService(repo, queue, events.NewResolutionPublisher(nil))
	svc.SetResolver(resolver)

	record := pendingRecord(time.Now().Add(-time.Minute))
	require.NoError(t, repo.Create(context.Background(), record))
	require.NoError(t, queue.Schedule(context.Background(), record.ID.String(), record.ScheduledAt))

	worker := NewDispatchWorker(queue, svc, time.Second, 10)
	require.NoError(t, worker.Run(context.Background()))

	assert.Equal(t, 1, resolver.Count())
	assert.Equal(t, schedule.StatusCompleted, repo.statusOf(record.ID))
}

func TestDispatchWorker_NotDueYet(t *testing.T) {
	repo := newFakeScheduleRepo()
	queue := newFakeDelayQueue()
	resolver := &countingResolver{}

	svc := schedulesvc.NewService(repo, queue, events.NewResolutionPublisher(nil))
	svc.SetResolver(resolver)

	record := pendingRecord(time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(context.Background(), record))
	require.NoError(t, queue.Schedule(context.Background(), record.ID.String(), record.ScheduledAt))

	worker := NewDispatchWorker(queue, svc, time.Second, 10)
	require.NoError(t, worker.Run(context.Background()))

	assert.Equal(t, 0, resolver.Count())
	assert.Equal(t, schedule.StatusPending, repo.statusOf(record.ID))
}

func TestDispatchWorker_CancelledEntryIsSkipped(t *testing.T) {
	repo := newFakeScheduleRepo()
	queue := newFakeDelayQueue()
	resolver := &countingResolver{}

	svc := schedulesvc.NewService(repo, queue, events.NewResolutionPublisher(nil))
	svc.SetResolver(resolver)

	// Queue entry survives but the record was cancelled meanwhile.
	record := pendingRecord(time.Now().Add(-time.Minute))
	record.Status = schedule.StatusFailed
	require.NoError(t, repo.Create(context.Background(), record))
	require.NoError(t, queue.Schedule(context.Background(), record.ID.String(), record.ScheduledAt))

	worker := NewDispatchWorker(queue, svc, time.Second, 10)
	require.NoError(t, worker.Run(context.Background()))

	assert.Equal(t, 0, resolver.Count())
	assert.Equal(t, schedule.StatusFailed, repo.statusOf(record.ID))
}

func TestReconcileWorker_RescuesLostRecord(t *testing.T) {
	repo := newFakeScheduleRepo()
	queue := newFakeDelayQueue()
	resolver := &countingResolver{}

	svc := schedulesvc.NewService(repo, queue, events.NewResolutionPublisher(nil))
	svc.SetResolver(resolver)

	// Pending and long past due, but never registered in the queue.
	record := pendingRecord(time.Now().Add(-time.Hour))
	require.NoError(t, repo.Create(context.Background(), record))

	worker := NewReconcileWorker(repo, svc, time.Minute, 2*time.Minute, 10)
	require.NoError(t, worker.Run(context.Background()))

	assert.Equal(t, 1, resolver.Count())
	assert.Equal(t, schedule.StatusCompleted, repo.statusOf(record.ID))
}

func TestReconcileWorker_LeavesFreshRecordsAlone(t *testing.T) {
	repo := newFakeScheduleRepo()
	queue := newFakeDelayQueue()
	resolver := &countingResolver{}

	svc := schedulesvc.NewService(repo, queue, events.NewResolutionPublisher(nil))
	svc.SetResolver(resolver)

	// Due, but within the grace window where normal dispatch still owns it.
	record := pendingRecord(time.Now().Add(-30 * time.Second))
	require.NoError(t, repo.Create(context.Background(), record))

	worker := NewReconcileWorker(repo, svc, time.Minute, 2*time.Minute, 10)
	require.NoError(t, worker.Run(context.Background()))

	assert.Equal(t, 0, resolver.Count())
	assert.Equal(t, schedule.StatusPending, repo.statusOf(record.ID))
}
