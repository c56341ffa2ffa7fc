package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpipe/internal/pipeline"
)

// HandlePublishPostTask fires at the post's scheduled time and fast-forwards
// it through the pipeline. Posts left mid-pipeline (container still
// processing) and transient failures are picked up by the periodic batch
// driver, so the task itself is never retried by asynq.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %v", asynq.SkipRetry, err)
	}

	existing, err := q.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		slog.Error("failed to load scheduled post", "post_id", payload.PostID, "error", err)
		return nil
	}
	if existing == nil {
		slog.Info("scheduled post no longer exists", "post_id", payload.PostID)
		return nil
	}
	if existing.ScheduledTime.After(time.Now()) {
		// Rescheduled after this task was enqueued; the task enqueued by
		// the edit owns the new time.
		slog.Info("scheduled post moved to a later time", "post_id", payload.PostID)
		return nil
	}

	post, err := q.runner.RunOnDemand(ctx, payload.PostID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrPostNotFound):
			// Deleted after being enqueued; nothing to do.
			slog.Info("scheduled post no longer exists", "post_id", payload.PostID)
		case errors.Is(err, pipeline.ErrNoLinkedAccount):
			slog.Info("scheduled post has no linked account", "post_id", payload.PostID)
		default:
			slog.Error("scheduled publish failed", "post_id", payload.PostID, "error", err)
		}
		return nil
	}

	slog.Info("scheduled publish ran", "post_id", post.ID, "status", post.Status)
	return nil
}
