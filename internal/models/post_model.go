package models

import (
	"database/sql"
	"time"
)

// ScheduledPost is the unit of work for the publish pipeline. A post is
// created in status pending with no container; only the pipeline engine
// (and the media-edit reset) mutate it after that.
type ScheduledPost struct {
	ID               int64          `db:"id" json:"id"`
	UserID           int64          `db:"user_id" json:"user_id"`
	MediaURL         string         `db:"media_url" json:"media_url"`
	MediaType        string         `db:"media_type" json:"media_type"`
	Caption          string         `db:"caption" json:"caption"`
	ScheduledTime    time.Time      `db:"scheduled_time" json:"scheduled_time"`
	Status           string         `db:"status" json:"status"`
	RetryAttempts    int            `db:"retry_attempts" json:"retry_attempts"`
	ContainerID      sql.NullString `db:"container_id" json:"container_id"`
	ContainerStatus  sql.NullString `db:"container_status" json:"container_status"`
	LastAttemptAt    sql.NullTime   `db:"last_attempt_at" json:"last_attempt_at"`
	LastErrorMessage sql.NullString `db:"last_error_message" json:"last_error_message"`
	PublishedAt      sql.NullTime   `db:"published_at" json:"published_at"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusPending = "pending"
	PostStatusRetry   = "retry"
	PostStatusPosted  = "posted"
	PostStatusFailure = "failure"
)

const (
	MediaTypeImage = "IMAGE"
	MediaTypeVideo = "VIDEO"
	MediaTypeReels = "REELS"
)

// Container status codes mirror the platform's own vocabulary. Anything
// outside these two is treated as still in progress.
const (
	ContainerStatusInProgress = "IN_PROGRESS"
	ContainerStatusFinished   = "FINISHED"
	ContainerStatusError      = "ERROR"
)

// Terminal reports whether the post has left the pipeline for good.
func (p *ScheduledPost) Terminal() bool {
	return p.Status == PostStatusPosted || p.Status == PostStatusFailure
}
