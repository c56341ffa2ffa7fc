package pipeline

import (
	"database/sql"
	"testing"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ns(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestNextStage(t *testing.T) {
	tests := []struct {
		name            string
		status          string
		retryAttempts   int
		containerID     sql.NullString
		containerStatus sql.NullString
		want            Stage
	}{
		{"pending without container", models.PostStatusPending, 0, sql.NullString{}, sql.NullString{}, StageCreateContainer},
		{"retry without container", models.PostStatusRetry, 1, sql.NullString{}, sql.NullString{}, StageCreateContainer},
		{"container in progress", models.PostStatusPending, 0, ns("c1"), ns(models.ContainerStatusInProgress), StageCheckStatus},
		{"container created but never polled", models.PostStatusPending, 0, ns("c1"), sql.NullString{}, StageCheckStatus},
		{"container with unrecognized code", models.PostStatusPending, 0, ns("c1"), ns("EXPIRED"), StageCheckStatus},
		{"container in error is re-polled", models.PostStatusRetry, 1, ns("c1"), ns(models.ContainerStatusError), StageCheckStatus},
		{"container finished", models.PostStatusPending, 0, ns("c1"), ns(models.ContainerStatusFinished), StagePublish},
		{"finished on retry", models.PostStatusRetry, 2, ns("c1"), ns(models.ContainerStatusFinished), StagePublish},
		{"posted never advances", models.PostStatusPosted, 0, ns("c1"), ns(models.ContainerStatusFinished), StageNone},
		{"failure never advances", models.PostStatusFailure, 3, sql.NullString{}, sql.NullString{}, StageNone},
		{"exhausted budget never advances", models.PostStatusRetry, 3, sql.NullString{}, sql.NullString{}, StageNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := &models.ScheduledPost{
				Status:          tt.status,
				RetryAttempts:   tt.retryAttempts,
				ContainerID:     tt.containerID,
				ContainerStatus: tt.containerStatus,
			}
			assert.Equal(t, tt.want, NextStage(post, 3))
		})
	}
}

func TestApplyCreateContainerSuccess(t *testing.T) {
	now := time.Now()
	post := models.ScheduledPost{
		Status:           models.PostStatusPending,
		LastErrorMessage: ns("old error"),
	}

	got := Apply(post, StageCreateContainer, StageResult{ContainerID: "c1"}, now, 3)

	assert.Equal(t, models.PostStatusPending, got.Status)
	assert.Equal(t, ns("c1"), got.ContainerID)
	assert.Equal(t, ns(models.ContainerStatusInProgress), got.ContainerStatus)
	assert.False(t, got.LastErrorMessage.Valid, "success must clear the recorded error")
	assert.True(t, got.LastAttemptAt.Valid)
	assert.Zero(t, got.RetryAttempts)
}

func TestApplyFailureIncrementsAndParks(t *testing.T) {
	now := time.Now()
	perr := &platform.Error{StatusCode: 500, Title: "Server error", Message: "boom"}

	post := models.ScheduledPost{Status: models.PostStatusPending}

	got := Apply(post, StageCreateContainer, StageResult{Err: perr}, now, 3)
	assert.Equal(t, 1, got.RetryAttempts)
	assert.Equal(t, models.PostStatusRetry, got.Status)
	require.True(t, got.LastErrorMessage.Valid)

	stored, err := platform.ParseError(got.LastErrorMessage.String)
	require.NoError(t, err)
	assert.Equal(t, "Server error", stored.Title)
	assert.Equal(t, 500, stored.StatusCode)
}

func TestApplyFailureAtCapMarksFailure(t *testing.T) {
	perr := &platform.Error{StatusCode: 500, Title: "Server error", Message: "boom"}
	post := models.ScheduledPost{Status: models.PostStatusRetry, RetryAttempts: 2}

	got := Apply(post, StageCreateContainer, StageResult{Err: perr}, time.Now(), 3)

	assert.Equal(t, 3, got.RetryAttempts)
	assert.Equal(t, models.PostStatusFailure, got.Status)
	assert.Equal(t, StageNone, NextStage(&got, 3))
}

func TestApplyCheckStatus(t *testing.T) {
	now := time.Now()
	base := models.ScheduledPost{
		Status:          models.PostStatusPending,
		ContainerID:     ns("c1"),
		ContainerStatus: ns(models.ContainerStatusInProgress),
	}

	t.Run("still in progress keeps status", func(t *testing.T) {
		got := Apply(base, StageCheckStatus, StageResult{StatusCode: models.ContainerStatusInProgress}, now, 3)
		assert.Equal(t, models.PostStatusPending, got.Status)
		assert.Equal(t, ns(models.ContainerStatusInProgress), got.ContainerStatus)
		assert.Zero(t, got.RetryAttempts)
	})

	t.Run("finished unlocks publish but does not change status", func(t *testing.T) {
		got := Apply(base, StageCheckStatus, StageResult{StatusCode: models.ContainerStatusFinished}, now, 3)
		assert.Equal(t, models.PostStatusPending, got.Status)
		assert.Equal(t, ns(models.ContainerStatusFinished), got.ContainerStatus)
		assert.Equal(t, StagePublish, NextStage(&got, 3))
	})

	t.Run("unrecognized code treated as in progress", func(t *testing.T) {
		got := Apply(base, StageCheckStatus, StageResult{StatusCode: "PUBLISHED_SOON"}, now, 3)
		assert.Equal(t, models.PostStatusPending, got.Status)
		assert.Zero(t, got.RetryAttempts)
		assert.Equal(t, StageCheckStatus, NextStage(&got, 3))
	})

	t.Run("platform error code burns an attempt", func(t *testing.T) {
		got := Apply(base, StageCheckStatus, StageResult{StatusCode: models.ContainerStatusError}, now, 3)
		assert.Equal(t, 1, got.RetryAttempts)
		assert.Equal(t, models.PostStatusRetry, got.Status)
		assert.Equal(t, ns(models.ContainerStatusError), got.ContainerStatus)
		assert.True(t, got.LastErrorMessage.Valid)
	})
}

func TestApplyPublish(t *testing.T) {
	now := time.Now()
	base := models.ScheduledPost{
		Status:          models.PostStatusRetry,
		RetryAttempts:   1,
		ContainerID:     ns("c1"),
		ContainerStatus: ns(models.ContainerStatusFinished),
	}

	t.Run("success is terminal", func(t *testing.T) {
		got := Apply(base, StagePublish, StageResult{}, now, 3)
		assert.Equal(t, models.PostStatusPosted, got.Status)
		require.True(t, got.PublishedAt.Valid)
		assert.Equal(t, now, got.PublishedAt.Time)
		assert.False(t, got.LastErrorMessage.Valid)
		assert.Equal(t, StageNone, NextStage(&got, 3))
	})

	t.Run("failure keeps the container", func(t *testing.T) {
		perr := &platform.Error{StatusCode: 400, Title: "Publish rejected", Message: "nope"}
		got := Apply(base, StagePublish, StageResult{Err: perr}, now, 3)
		assert.Equal(t, models.PostStatusRetry, got.Status)
		assert.Equal(t, 2, got.RetryAttempts)
		assert.Equal(t, ns("c1"), got.ContainerID)
		assert.Equal(t, ns(models.ContainerStatusFinished), got.ContainerStatus)
		// Next pass publishes again without recreating the container.
		assert.Equal(t, StagePublish, NextStage(&got, 3))
	})
}

func TestRetryCounterNeverDecreases(t *testing.T) {
	perr := &platform.Error{StatusCode: 500, Title: "Server error", Message: "boom"}
	post := models.ScheduledPost{Status: models.PostStatusPending}

	prev := 0
	results := []StageResult{
		{Err: perr},
		{ContainerID: "c1"},
		{StatusCode: models.ContainerStatusInProgress},
		{Err: perr},
		{StatusCode: models.ContainerStatusFinished},
		{},
	}
	stages := []Stage{
		StageCreateContainer, StageCreateContainer, StageCheckStatus,
		StageCheckStatus, StageCheckStatus, StagePublish,
	}

	for i := range results {
		post = Apply(post, stages[i], results[i], time.Now(), 10)
		assert.GreaterOrEqual(t, post.RetryAttempts, prev)
		prev = post.RetryAttempts
	}
}
