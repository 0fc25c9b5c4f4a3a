package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/pkg/errors"
)

func TestDelayFor_ProgressiveBackoff(t *testing.T) {
	expected := []time.Duration{
		5 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
		180 * time.Minute,
	}

	for i, want := range expected {
		got, err := DelayFor(i + 1)
		require.NoError(t, err)
		assert.Equal(t, want, got, "retry %d", i+1)
	}
}

func TestDelayFor_OutOfSchedule(t *testing.T) {
	_, err := DelayFor(0)
	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))

	_, err = DelayFor(MaxRetries + 1)
	assert.True(t, errors.Is(err, errors.ErrRetriesExhausted))
}

func TestScheduledRequest_Cancellable(t *testing.T) {
	record := &ScheduledRequest{Status: StatusPending}
	assert.True(t, record.Cancellable())

	for _, status := range []Status{StatusProcessing, StatusCompleted, StatusFailed} {
		record.Status = status
		assert.False(t, record.Cancellable(), "status %s", status)
	}
}

func TestScheduledRequest_RequestReconstruction(t *testing.T) {
	userID := uuid.New()
	record := &ScheduledRequest{
		PoolID:   "pool-7",
		Question: "Will it rain?",
		Options:  []string{"Yes", "No"},
		FileName: "RAIN_test_1",
		UserID:   &userID,
	}

	req := record.Request()
	assert.Equal(t, record.PoolID, req.PoolID)
	assert.Equal(t, record.Question, req.Question)
	assert.Equal(t, record.Options, req.Options)
	assert.Equal(t, record.FileName, req.QuestionFileName)
	assert.Equal(t, record.UserID, req.UserID)
}
