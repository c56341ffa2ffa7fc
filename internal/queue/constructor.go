package queue

import (
	"github.com/maheshrc27/postpipe/internal/pipeline"
	"github.com/maheshrc27/postpipe/internal/repository"
)

// Queue holds the worker-side dependencies for scheduled publish tasks.
type Queue struct {
	pr     repository.ScheduledPostRepository
	runner *pipeline.OnDemandRunner
}

func NewQueue(pr repository.ScheduledPostRepository, runner *pipeline.OnDemandRunner) *Queue {
	return &Queue{pr: pr, runner: runner}
}

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
