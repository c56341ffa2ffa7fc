package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/postpipe/internal/pipeline"
)

// PublishJob is the cron-facing wrapper around the batch driver.
type PublishJob struct {
	runner *pipeline.BatchRunner
}

func NewPublishJob(runner *pipeline.BatchRunner) *PublishJob {
	return &PublishJob{runner: runner}
}

// Run executes one batch tick.
func (j *PublishJob) Run() {
	ctx := context.Background()

	summary := j.runner.RunBatch(ctx)

	slog.Info("publish batch finished",
		"containers_created", summary.ContainersCreated,
		"container_errors", summary.ContainerErrors,
		"containers_checked", summary.ContainersChecked,
		"containers_finished", summary.ContainersFinished,
		"published_success", summary.PublishedSuccess,
		"published_failure", summary.PublishedFailure,
	)
}
