package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/pipeline"
	"github.com/maheshrc27/postpipe/internal/repository"
	"github.com/maheshrc27/postpipe/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const scheduledTimeLayout = "2006-01-02T15:04"

// ErrPostAlreadyPublished guards the terminal status: a posted post can be
// neither edited nor removed.
var ErrPostAlreadyPublished = errors.New("post already published")

// MediaUploader stores a media file and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, key string, file []byte, contentType string) (string, error)
}

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error)
	EditPost(ctx context.Context, userID, postID int64, edit *transfer.PostEdit) (*models.ScheduledPost, error)
	PublishNow(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr       repository.ScheduledPostRepository
	uploader MediaUploader
	runner   *pipeline.OnDemandRunner
}

func NewPostService(pr repository.ScheduledPostRepository, uploader MediaUploader, runner *pipeline.OnDemandRunner) PostService {
	return &postService{
		pr:       pr,
		uploader: uploader,
		runner:   runner,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, file *multipart.FileHeader) (int64, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, 0, err
	}
	if pc.Caption == "" {
		err := errors.New("caption cannot be empty")
		slog.Info(err.Error())
		return 0, 0, err
	}
	if file == nil {
		err := errors.New("no media file provided for the post")
		slog.Info(err.Error())
		return 0, 0, err
	}

	scheduledTime, err := time.Parse(scheduledTimeLayout, pc.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return 0, 0, err
	}

	mediaURL, mediaType, err := s.uploadMedia(ctx, file, pc.MediaType)
	if err != nil {
		return 0, 0, err
	}

	post := models.ScheduledPost{
		UserID:        userID,
		MediaURL:      mediaURL,
		MediaType:     mediaType,
		Caption:       pc.Caption,
		ScheduledTime: scheduledTime,
		Status:        models.PostStatusPending,
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, 0, fmt.Errorf("error creating post: %w", err)
	}

	delay := time.Until(scheduledTime)
	if delay < 0 {
		delay = 0
	}

	return postID, delay, nil
}

func (s *postService) uploadMedia(ctx context.Context, file *multipart.FileHeader, requestedType string) (string, string, error) {
	fileContent, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return "", "", fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return "", "", fmt.Errorf("unsupported file type: %w", err)
	}

	mediaType, err := resolveMediaType(fileType.MIME.Value, requestedType)
	if err != nil {
		return "", "", err
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", "", err
	}

	mediaURL, err := s.uploader.Upload(ctx, key, fileBytes, fileType.MIME.Value)
	if err != nil {
		return "", "", fmt.Errorf("error uploading file: %w", err)
	}

	return mediaURL, mediaType, nil
}

// resolveMediaType reconciles the sniffed MIME type with what the caller
// asked for. Videos may be scheduled as plain VIDEO or as REELS; images are
// always IMAGE.
func resolveMediaType(mime, requested string) (string, error) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.MediaTypeImage, nil
	case strings.HasPrefix(mime, "video/"):
		if requested == models.MediaTypeReels {
			return models.MediaTypeReels, nil
		}
		return models.MediaTypeVideo, nil
	default:
		return "", fmt.Errorf("file type %s is not allowed", mime)
	}
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.New("error listing posts")
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// EditPost applies a user edit. Changing the media URL or type invalidates
// any container already created for the old media, so the pipeline state is
// reset to the start. Posted posts are immutable.
func (s *postService) EditPost(ctx context.Context, userID, postID int64, edit *transfer.PostEdit) (*models.ScheduledPost, error) {
	if edit == nil {
		return nil, errors.New("edit data is nil")
	}

	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	if post.Status == models.PostStatusPosted {
		slog.Info("rejecting edit of published post", "post_id", postID)
		return nil, ErrPostAlreadyPublished
	}

	mediaChanged := false
	if edit.MediaURL != nil && *edit.MediaURL != post.MediaURL {
		post.MediaURL = *edit.MediaURL
		mediaChanged = true
	}
	if edit.MediaType != nil && *edit.MediaType != post.MediaType {
		switch *edit.MediaType {
		case models.MediaTypeImage, models.MediaTypeVideo, models.MediaTypeReels:
		default:
			return nil, fmt.Errorf("invalid media type %q", *edit.MediaType)
		}
		post.MediaType = *edit.MediaType
		mediaChanged = true
	}
	if edit.Caption != nil {
		if *edit.Caption == "" {
			return nil, errors.New("caption cannot be empty")
		}
		post.Caption = *edit.Caption
	}
	if edit.ScheduledTime != nil {
		scheduledTime, err := time.Parse(scheduledTimeLayout, *edit.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled time format: %w", err)
		}
		post.ScheduledTime = scheduledTime
	}

	if mediaChanged {
		// A container staged for the old media must never be published.
		post.ContainerID = sql.NullString{}
		post.ContainerStatus = sql.NullString{}
		post.Status = models.PostStatusPending
		post.RetryAttempts = 0
		post.LastErrorMessage = sql.NullString{}
	}

	if err := s.pr.UpdateContent(ctx, post); err != nil {
		if errors.Is(err, repository.ErrStalePost) {
			return nil, ErrPostAlreadyPublished
		}
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	return post, nil
}

// PublishNow runs the on-demand driver for one of the user's posts.
func (s *postService) PublishNow(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error) {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return nil, err
	}
	return s.runner.RunOnDemand(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	if post.Status == models.PostStatusPosted {
		slog.Info("rejecting removal of published post", "post_id", postID)
		return ErrPostAlreadyPublished
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return errors.New("error removing post")
	}

	return nil
}

func (s *postService) ownedPost(ctx context.Context, userID, postID int64) (*models.ScheduledPost, error) {
	if userID == 0 {
		err := errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, err
	}
	if postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.UserID != userID {
		slog.Info("post not found for user", "post_id", postID, "user_id", userID)
		return nil, pipeline.ErrPostNotFound
	}

	return post, nil
}
