package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/maheshrc27/postpipe/internal/repository"
)

// Summary aggregates what one batch run did.
type Summary struct {
	ContainersCreated  int `json:"containers_created"`
	ContainerErrors    int `json:"container_errors"`
	ContainersChecked  int `json:"containers_checked"`
	ContainersFinished int `json:"containers_finished"`
	PublishedSuccess   int `json:"published_success"`
	PublishedFailure   int `json:"published_failure"`
}

// BatchRunner is the periodic driver: each run selects up to batchSize due
// posts and advances each by exactly one stage. One stage per post per tick
// keeps external calls per tick bounded; unattended multi-stage progress
// spreads across ticks.
type BatchRunner struct {
	posts            repository.ScheduledPostRepository
	history          repository.PublishHistoryRepository
	resolver         AccountResolver
	engine           *Engine
	batchSize        int
	maxRetryAttempts int
	now              func() time.Time
}

func NewBatchRunner(
	posts repository.ScheduledPostRepository,
	history repository.PublishHistoryRepository,
	resolver AccountResolver,
	engine *Engine,
	batchSize int,
	maxRetryAttempts int) *BatchRunner {
	return &BatchRunner{
		posts:            posts,
		history:          history,
		resolver:         resolver,
		engine:           engine,
		batchSize:        batchSize,
		maxRetryAttempts: maxRetryAttempts,
		now:              time.Now,
	}
}

// RunBatch processes one tick. It never returns an error: per-post failures
// are recorded on the post and in the history, and the summary is always
// produced.
func (b *BatchRunner) RunBatch(ctx context.Context) Summary {
	var summary Summary

	posts, err := b.posts.ListEligible(ctx, b.now(), b.maxRetryAttempts, b.batchSize)
	if err != nil {
		slog.Error("failed to select eligible posts", "error", err)
		return summary
	}

	for _, post := range posts {
		b.processPost(ctx, post, &summary)
	}

	return summary
}

func (b *BatchRunner) processPost(ctx context.Context, post *models.ScheduledPost, summary *Summary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing post", "post_id", post.ID, "panic", r)
		}
	}()

	acc, err := b.resolver.Resolve(ctx, post.UserID)
	if err != nil {
		if errors.Is(err, ErrNoLinkedAccount) {
			b.markAccountMissing(ctx, post)
			summary.ContainerErrors++
			return
		}
		slog.Error("failed to resolve account", "post_id", post.ID, "error", err)
		return
	}

	stage := NextStage(post, b.maxRetryAttempts)
	updated, outcome, err := b.engine.AdvanceOnce(ctx, post, acc)
	if err != nil {
		// Stale writes mean another run already advanced this post; both
		// are left for the next tick.
		slog.Info("post not advanced", "post_id", post.ID, "error", err)
		return
	}

	switch outcome {
	case OutcomeContainerCreated:
		summary.ContainersCreated++
	case OutcomeContainerError:
		summary.ContainerErrors++
	case OutcomeChecked:
		summary.ContainersChecked++
	case OutcomeFinished:
		summary.ContainersChecked++
		summary.ContainersFinished++
	case OutcomePublished:
		summary.PublishedSuccess++
	case OutcomePublishFailed:
		summary.PublishedFailure++
	}

	b.recordHistory(ctx, updated, stage, outcome)
}

// markAccountMissing fails the post outright: a missing account is not
// transient, so no retry budget is consumed.
func (b *BatchRunner) markAccountMissing(ctx context.Context, post *models.ScheduledPost) {
	perr := &platform.Error{
		StatusCode: http.StatusNotFound,
		Title:      "No linked account",
		Message:    "the post owner has no linked Instagram account",
		Solution:   "Link an Instagram account, then edit the post to schedule it again.",
	}

	updated := *post
	updated.Status = models.PostStatusFailure
	updated.LastAttemptAt = sql.NullTime{Time: b.now(), Valid: true}
	updated.LastErrorMessage = sql.NullString{String: perr.Serialize(), Valid: true}

	if err := b.posts.UpdateStageResult(ctx, &updated, post.Status, post.ContainerID); err != nil {
		slog.Error("failed to mark post failed", "post_id", post.ID, "error", err)
		return
	}

	b.recordHistory(ctx, &updated, StageNone, OutcomeNone)
}

func (b *BatchRunner) recordHistory(ctx context.Context, post *models.ScheduledPost, stage Stage, outcome Outcome) {
	if b.history == nil {
		return
	}

	ph := models.PublishHistory{
		UserID:  post.UserID,
		PostID:  post.ID,
		Stage:   stage.String(),
		Outcome: outcome.String(),
	}
	if post.LastErrorMessage.Valid {
		ph.ErrorMessage = post.LastErrorMessage.String
	}

	if _, err := b.history.Create(ctx, &ph); err != nil {
		slog.Error("failed to record publish history", "post_id", post.ID, "error", err)
	}
}
