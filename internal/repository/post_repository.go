package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpipe/internal/models"
)

// ErrStalePost means a stage-advancing write found the row changed since it
// was read. The caller must drop its result; another run already advanced
// the post.
var ErrStalePost = errors.New("post changed since read")

const scheduledPostColumns = `id, user_id, media_url, media_type, caption, scheduled_time,
		status, retry_attempts, container_id, container_status,
		last_attempt_at, last_error_message, published_at, created_at, updated_at`

type ScheduledPostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)
	ListEligible(ctx context.Context, now time.Time, maxRetryAttempts, limit int) ([]*models.ScheduledPost, error)
	UpdateStageResult(ctx context.Context, post *models.ScheduledPost, prevStatus string, prevContainerID sql.NullString) error
	UpdateContent(ctx context.Context, post *models.ScheduledPost) error
	Remove(ctx context.Context, id int64) error
}

type scheduledPostRepository struct {
	db *sql.DB
}

func NewScheduledPostRepository(db *sql.DB) ScheduledPostRepository {
	return &scheduledPostRepository{db: db}
}

func (r *scheduledPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	query := `
		INSERT INTO scheduled_posts (user_id, media_url, media_type, caption, scheduled_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.UserID, post.MediaURL, post.MediaType, post.Caption, post.ScheduledTime, post.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.UserID, post.MediaURL, post.MediaType, post.Caption, post.ScheduledTime, post.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *scheduledPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanScheduledPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *scheduledPostRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_time DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectScheduledPosts(rows)
}

func (r *scheduledPostRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM scheduled_posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// ListEligible selects the posts a batch run may advance: due, inside the
// retry budget, and still in a live status. Ordered by id so runs are
// deterministic.
func (r *scheduledPostRepository) ListEligible(ctx context.Context, now time.Time, maxRetryAttempts, limit int) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + `
		FROM scheduled_posts
		WHERE scheduled_time <= $1
		  AND retry_attempts < $2
		  AND status IN ($3, $4)
		ORDER BY id
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, query, now, maxRetryAttempts, models.PostStatusPending, models.PostStatusRetry, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectScheduledPosts(rows)
}

// UpdateStageResult writes the outcome of one engine stage. The UPDATE is
// conditioned on the status and container_id the engine read before calling
// the platform, so overlapping runs cannot clobber each other; a zero-row
// update surfaces as ErrStalePost.
func (r *scheduledPostRepository) UpdateStageResult(ctx context.Context, post *models.ScheduledPost, prevStatus string, prevContainerID sql.NullString) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			retry_attempts = $2,
			container_id = $3,
			container_status = $4,
			last_attempt_at = $5,
			last_error_message = $6,
			published_at = $7,
			updated_at = $8
		WHERE id = $9
		  AND status = $10
		  AND container_id IS NOT DISTINCT FROM $11
	`

	result, err := r.db.ExecContext(ctx, query,
		post.Status,
		post.RetryAttempts,
		post.ContainerID,
		post.ContainerStatus,
		post.LastAttemptAt,
		post.LastErrorMessage,
		post.PublishedAt,
		time.Now(),
		post.ID,
		prevStatus,
		prevContainerID,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrStalePost
	}

	return nil
}

// UpdateContent writes a user edit. A post that already reached posted is
// immutable; the condition makes that hold even against a concurrent
// publish.
func (r *scheduledPostRepository) UpdateContent(ctx context.Context, post *models.ScheduledPost) error {
	query := `
		UPDATE scheduled_posts
		SET media_url = $1,
			media_type = $2,
			caption = $3,
			scheduled_time = $4,
			status = $5,
			retry_attempts = $6,
			container_id = $7,
			container_status = $8,
			last_error_message = $9,
			updated_at = $10
		WHERE id = $11
		  AND status <> $12
	`

	result, err := r.db.ExecContext(ctx, query,
		post.MediaURL,
		post.MediaType,
		post.Caption,
		post.ScheduledTime,
		post.Status,
		post.RetryAttempts,
		post.ContainerID,
		post.ContainerStatus,
		post.LastErrorMessage,
		time.Now(),
		post.ID,
		models.PostStatusPosted,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrStalePost
	}

	return nil
}

func (r *scheduledPostRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScheduledPost(row rowScanner) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	err := row.Scan(
		&post.ID, &post.UserID, &post.MediaURL, &post.MediaType, &post.Caption,
		&post.ScheduledTime, &post.Status, &post.RetryAttempts,
		&post.ContainerID, &post.ContainerStatus,
		&post.LastAttemptAt, &post.LastErrorMessage, &post.PublishedAt,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func collectScheduledPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
