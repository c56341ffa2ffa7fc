package pipeline

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/maheshrc27/postpipe/internal/repository"
)

// fakeStore is an in-memory ScheduledPostRepository with the same
// conditional-update semantics as the postgres implementation.
type fakeStore struct {
	posts  map[int64]*models.ScheduledPost
	nextID int64
}

func newFakeStore(posts ...*models.ScheduledPost) *fakeStore {
	s := &fakeStore{posts: make(map[int64]*models.ScheduledPost), nextID: 1}
	for _, p := range posts {
		cp := *p
		if cp.ID == 0 {
			cp.ID = s.nextID
		}
		if cp.ID >= s.nextID {
			s.nextID = cp.ID + 1
		}
		s.posts[cp.ID] = &cp
	}
	return s
}

func (s *fakeStore) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	cp := *post
	cp.ID = s.nextID
	s.nextID++
	s.posts[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	var out []*models.ScheduledPost
	for _, p := range s.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	p, ok := s.posts[postID]
	return ok && p.UserID == userID, nil
}

func (s *fakeStore) ListEligible(ctx context.Context, now time.Time, maxRetryAttempts, limit int) ([]*models.ScheduledPost, error) {
	var out []*models.ScheduledPost
	for _, p := range s.posts {
		if p.ScheduledTime.After(now) {
			continue
		}
		if p.RetryAttempts >= maxRetryAttempts {
			continue
		}
		if p.Status != models.PostStatusPending && p.Status != models.PostStatusRetry {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateStageResult(ctx context.Context, post *models.ScheduledPost, prevStatus string, prevContainerID sql.NullString) error {
	current, ok := s.posts[post.ID]
	if !ok {
		return repository.ErrStalePost
	}
	if current.Status != prevStatus || current.ContainerID != prevContainerID {
		return repository.ErrStalePost
	}
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateContent(ctx context.Context, post *models.ScheduledPost) error {
	current, ok := s.posts[post.ID]
	if !ok || current.Status == models.PostStatusPosted {
		return repository.ErrStalePost
	}
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *fakeStore) Remove(ctx context.Context, id int64) error {
	delete(s.posts, id)
	return nil
}

// fakeClient scripts the platform's responses and counts calls.
type fakeClient struct {
	containerID string
	createErr   error
	statusCodes []string
	statusErr   error
	publishErr  error

	createCalls  int
	statusCalls  int
	publishCalls int
}

func (c *fakeClient) CreateContainer(ctx context.Context, acc platform.Account, params platform.ContainerParams) (string, error) {
	c.createCalls++
	if c.createErr != nil {
		return "", c.createErr
	}
	if c.containerID == "" {
		return "c1", nil
	}
	return c.containerID, nil
}

func (c *fakeClient) GetContainerStatus(ctx context.Context, acc platform.Account, containerID string) (string, error) {
	c.statusCalls++
	if c.statusErr != nil {
		return "", c.statusErr
	}
	if len(c.statusCodes) == 0 {
		return models.ContainerStatusInProgress, nil
	}
	code := c.statusCodes[0]
	if len(c.statusCodes) > 1 {
		c.statusCodes = c.statusCodes[1:]
	}
	return code, nil
}

func (c *fakeClient) PublishContainer(ctx context.Context, acc platform.Account, containerID string) error {
	c.publishCalls++
	return c.publishErr
}

// fakeResolver maps owners to accounts; unknown owners get
// ErrNoLinkedAccount.
type fakeResolver struct {
	accounts map[int64]platform.Account
}

func (r *fakeResolver) Resolve(ctx context.Context, userID int64) (platform.Account, error) {
	acc, ok := r.accounts[userID]
	if !ok {
		return platform.Account{}, ErrNoLinkedAccount
	}
	return acc, nil
}

// fakeHistory records publish history rows in memory.
type fakeHistory struct {
	rows []*models.PublishHistory
}

func (h *fakeHistory) Create(ctx context.Context, ph *models.PublishHistory) (int64, error) {
	cp := *ph
	cp.ID = int64(len(h.rows) + 1)
	h.rows = append(h.rows, &cp)
	return cp.ID, nil
}

func (h *fakeHistory) GetByPostID(ctx context.Context, postID int64) ([]*models.PublishHistory, error) {
	var out []*models.PublishHistory
	for _, r := range h.rows {
		if r.PostID == postID {
			out = append(out, r)
		}
	}
	return out, nil
}

func pendingPost(id, userID int64, scheduled time.Time) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:            id,
		UserID:        userID,
		MediaURL:      "https://cdn.example.com/media.jpg",
		MediaType:     models.MediaTypeImage,
		Caption:       "caption",
		ScheduledTime: scheduled,
		Status:        models.PostStatusPending,
	}
}
