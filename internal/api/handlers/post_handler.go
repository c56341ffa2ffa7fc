package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpipe/internal/pipeline"
	"github.com/maheshrc27/postpipe/internal/queue"
	"github.com/maheshrc27/postpipe/internal/service"
	"github.com/maheshrc27/postpipe/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	AsynqClient *asynq.Client
}

func NewPostHandler(s service.PostService, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: s, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	file, err := c.FormFile("media")
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No media file selected",
		})
	}

	postID, delay, err := h.s.CreatePost(c.Context(), userID, &transfer.PostCreation{
		Caption:       c.FormValue("caption"),
		MediaType:     c.FormValue("media_type"),
		ScheduledTime: c.FormValue("scheduled_time"),
	}, file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: postID}, delay); err != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"error": "Error scheduling post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Post scheduled successfully",
		"post_id": postID,
	})
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), int64(postID), userID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to get post",
			})
		}

		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) EditPost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	var edit transfer.PostEdit
	if err := c.BodyParser(&edit); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse edit",
		})
	}

	post, err := h.s.EditPost(c.Context(), userID, int64(postID), &edit)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, pipeline.ErrPostNotFound) {
			status = fiber.StatusNotFound
		}
		if errors.Is(err, service.ErrPostAlreadyPublished) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if edit.ScheduledTime != nil {
		delay := time.Until(post.ScheduledTime)
		if delay < 0 {
			delay = 0
		}
		if err := queue.EnqueuePost(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
			slog.Error("failed to reschedule post", "post_id", post.ID, "error", err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// PublishNow runs the full pipeline synchronously for one post.
func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	post, err := h.s.PublishNow(c.Context(), userID, int64(postID))
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Post doesn't exist",
			})
		case errors.Is(err, pipeline.ErrNoLinkedAccount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No linked Instagram account",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(postID))
	if err != nil {
		if errors.Is(err, service.ErrPostAlreadyPublished) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "A published post cannot be removed",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
