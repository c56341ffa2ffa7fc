package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/maheshrc27/postpipe/internal/repository"
)

// Outcome classifies what a single advance did, for the batch summary.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeContainerCreated
	OutcomeContainerError
	OutcomeChecked
	OutcomeFinished
	OutcomePublished
	OutcomePublishFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContainerCreated:
		return "container_created"
	case OutcomeContainerError:
		return "container_error"
	case OutcomeChecked:
		return "checked"
	case OutcomeFinished:
		return "finished"
	case OutcomePublished:
		return "published"
	case OutcomePublishFailed:
		return "publish_failed"
	default:
		return "none"
	}
}

// Engine advances scheduled posts through the container protocol. It owns
// the two side effects of the pipeline: the platform call and the store
// write. All decision logic lives in NextStage/Apply.
type Engine struct {
	posts            repository.ScheduledPostRepository
	client           platform.Client
	maxRetryAttempts int
	now              func() time.Time
}

func NewEngine(posts repository.ScheduledPostRepository, client platform.Client, maxRetryAttempts int) *Engine {
	return &Engine{
		posts:            posts,
		client:           client,
		maxRetryAttempts: maxRetryAttempts,
		now:              time.Now,
	}
}

// AdvanceOnce runs at most the first applicable stage for the post and
// persists the result. The write is conditioned on the status/container the
// post was read with; if another run got there first the write is dropped
// and ErrStalePost is returned.
func (e *Engine) AdvanceOnce(ctx context.Context, post *models.ScheduledPost, acc platform.Account) (*models.ScheduledPost, Outcome, error) {
	stage := NextStage(post, e.maxRetryAttempts)
	if stage == StageNone {
		return post, OutcomeNone, nil
	}

	res := e.runStage(ctx, post, acc, stage)
	updated := Apply(*post, stage, res, e.now(), e.maxRetryAttempts)

	if err := e.posts.UpdateStageResult(ctx, &updated, post.Status, post.ContainerID); err != nil {
		if errors.Is(err, repository.ErrStalePost) {
			slog.Info("dropping stale stage result", "post_id", post.ID, "stage", stage.String())
		}
		return post, OutcomeNone, err
	}

	return &updated, outcomeOf(stage, res), nil
}

// FastForward advances the post through as many stages as are immediately
// applicable, in order, within this one call. It returns once the post is
// terminal or the next applicable stage does not follow the one just run
// (a failed or still-in-progress stage would be the same stage again).
func (e *Engine) FastForward(ctx context.Context, post *models.ScheduledPost, acc platform.Account) (*models.ScheduledPost, error) {
	prev := StageNone
	for {
		stage := NextStage(post, e.maxRetryAttempts)
		if stage == StageNone || stage <= prev {
			return post, nil
		}

		updated, _, err := e.AdvanceOnce(ctx, post, acc)
		if err != nil {
			return post, err
		}

		post = updated
		if post.Terminal() {
			return post, nil
		}
		prev = stage
	}
}

func (e *Engine) runStage(ctx context.Context, post *models.ScheduledPost, acc platform.Account, stage Stage) StageResult {
	switch stage {
	case StageCreateContainer:
		containerID, err := e.client.CreateContainer(ctx, acc, platform.ContainerParams{
			MediaURL:  post.MediaURL,
			MediaType: post.MediaType,
			Caption:   post.Caption,
		})
		if err != nil {
			return StageResult{Err: platform.Normalize(err)}
		}
		return StageResult{ContainerID: containerID}

	case StageCheckStatus:
		statusCode, err := e.client.GetContainerStatus(ctx, acc, post.ContainerID.String)
		if err != nil {
			return StageResult{Err: platform.Normalize(err)}
		}
		return StageResult{StatusCode: statusCode}

	case StagePublish:
		if err := e.client.PublishContainer(ctx, acc, post.ContainerID.String); err != nil {
			return StageResult{Err: platform.Normalize(err)}
		}
		return StageResult{}
	}

	return StageResult{}
}

func outcomeOf(stage Stage, res StageResult) Outcome {
	switch stage {
	case StageCreateContainer:
		if res.Err != nil {
			return OutcomeContainerError
		}
		return OutcomeContainerCreated
	case StageCheckStatus:
		if res.Err != nil || res.StatusCode == models.ContainerStatusError {
			return OutcomeContainerError
		}
		if res.StatusCode == models.ContainerStatusFinished {
			return OutcomeFinished
		}
		return OutcomeChecked
	case StagePublish:
		if res.Err != nil {
			return OutcomePublishFailed
		}
		return OutcomePublished
	}
	return OutcomeNone
}
