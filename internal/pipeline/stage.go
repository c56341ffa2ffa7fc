package pipeline

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
)

// Stage is one step of the publish pipeline. Within a single fast-forward
// the stage index only ever moves up, which is what keeps one invocation
// from looping on a failing call.
type Stage int

const (
	StageNone Stage = iota
	StageCreateContainer
	StageCheckStatus
	StagePublish
)

func (s Stage) String() string {
	switch s {
	case StageCreateContainer:
		return "create_container"
	case StageCheckStatus:
		return "check_status"
	case StagePublish:
		return "publish"
	default:
		return "none"
	}
}

// NextStage evaluates the stage preconditions in their fixed order and
// returns the first applicable stage, or StageNone when the post cannot be
// advanced. It performs no I/O.
//
// Posts in a terminal status or past the retry budget never advance. A post
// without a container must create one first; a container not yet FINISHED
// must be polled; a FINISHED container is ready to publish. A container in
// ERROR is re-polled (each ERROR poll consumes retry budget until the cap
// marks the post failed).
func NextStage(post *models.ScheduledPost, maxRetryAttempts int) Stage {
	if post.Status != models.PostStatusPending && post.Status != models.PostStatusRetry {
		return StageNone
	}
	if post.RetryAttempts >= maxRetryAttempts {
		return StageNone
	}
	if !post.ContainerID.Valid {
		return StageCreateContainer
	}
	if post.ContainerStatus.Valid && post.ContainerStatus.String == models.ContainerStatusFinished {
		return StagePublish
	}
	return StageCheckStatus
}

// StageResult is the outcome of a stage's external call. Err is nil on
// success; ContainerID is set by a successful create, StatusCode by a
// successful poll.
type StageResult struct {
	ContainerID string
	StatusCode  string
	Err         *platform.Error
}

// Apply folds one stage result into a copy of the post. It is pure: no
// clock (now is passed in), no I/O, no mutation of the input.
func Apply(post models.ScheduledPost, stage Stage, res StageResult, now time.Time, maxRetryAttempts int) models.ScheduledPost {
	switch stage {
	case StageCreateContainer:
		if res.Err != nil {
			return recordFailure(post, res.Err, now, maxRetryAttempts)
		}
		post.ContainerID = sql.NullString{String: res.ContainerID, Valid: true}
		post.ContainerStatus = sql.NullString{String: models.ContainerStatusInProgress, Valid: true}
		post.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
		post.LastErrorMessage = sql.NullString{}

	case StageCheckStatus:
		if res.Err != nil {
			return recordFailure(post, res.Err, now, maxRetryAttempts)
		}
		post.ContainerStatus = sql.NullString{String: res.StatusCode, Valid: true}
		if res.StatusCode == models.ContainerStatusError {
			return recordFailure(post, &platform.Error{
				StatusCode: http.StatusUnprocessableEntity,
				Title:      "Container processing failed",
				Message:    fmt.Sprintf("container %s reported status %s", post.ContainerID.String, res.StatusCode),
				Solution:   "The media could not be processed by the platform. Check the media format and size.",
			}, now, maxRetryAttempts)
		}
		// Anything other than FINISHED, recognized or not, counts as still
		// in progress; the post status is untouched either way.
		post.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
		post.LastErrorMessage = sql.NullString{}

	case StagePublish:
		if res.Err != nil {
			return recordFailure(post, res.Err, now, maxRetryAttempts)
		}
		post.Status = models.PostStatusPosted
		post.PublishedAt = sql.NullTime{Time: now, Valid: true}
		post.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
		post.LastErrorMessage = sql.NullString{}
	}

	return post
}

// recordFailure is the shared failure path of all three stages: one more
// attempt burned, the normalized error stored, and the post parked in retry
// or, when the increment reaches the cap, in failure.
func recordFailure(post models.ScheduledPost, perr *platform.Error, now time.Time, maxRetryAttempts int) models.ScheduledPost {
	post.RetryAttempts++
	post.LastAttemptAt = sql.NullTime{Time: now, Valid: true}
	post.LastErrorMessage = sql.NullString{String: perr.Serialize(), Valid: true}
	if post.RetryAttempts >= maxRetryAttempts {
		post.Status = models.PostStatusFailure
	} else {
		post.Status = models.PostStatusRetry
	}
	return post
}
