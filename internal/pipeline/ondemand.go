package pipeline

import (
	"context"
	"errors"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/repository"
)

var ErrPostNotFound = errors.New("post not found")

// OnDemandRunner is the synchronous driver behind "publish now" and the
// scheduled-time queue task. Unlike the batch driver it fast-forwards
// through every immediately applicable stage in one call.
type OnDemandRunner struct {
	posts    repository.ScheduledPostRepository
	resolver AccountResolver
	engine   *Engine
}

func NewOnDemandRunner(posts repository.ScheduledPostRepository, resolver AccountResolver, engine *Engine) *OnDemandRunner {
	return &OnDemandRunner{posts: posts, resolver: resolver, engine: engine}
}

// RunOnDemand fast-forwards one post and returns its final record. A missing
// post or account returns an error without mutating anything.
func (r *OnDemandRunner) RunOnDemand(ctx context.Context, postID int64) (*models.ScheduledPost, error) {
	post, err := r.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	if post.Terminal() {
		return post, nil
	}

	acc, err := r.resolver.Resolve(ctx, post.UserID)
	if err != nil {
		return nil, err
	}

	return r.engine.FastForward(ctx, post, acc)
}
