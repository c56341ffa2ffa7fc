package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/transfer"
)

// InstagramClient drives the Graph API container protocol: stage media into
// a container, poll its status_code, then publish the finished container.
type InstagramClient struct {
	baseURL string
	http    *http.Client
}

func NewInstagramClient(baseURL string, httpClient *http.Client) *InstagramClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &InstagramClient{baseURL: baseURL, http: httpClient}
}

func (c *InstagramClient) CreateContainer(ctx context.Context, acc Account, params ContainerParams) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/media", c.baseURL, acc.AccountID)

	payload := map[string]interface{}{
		"caption":      params.Caption,
		"access_token": acc.AccessToken,
	}
	switch params.MediaType {
	case models.MediaTypeVideo, models.MediaTypeReels:
		payload["video_url"] = params.MediaURL
		payload["media_type"] = "REELS"
	default:
		payload["image_url"] = params.MediaURL
	}
	if params.LocationID != "" {
		payload["location_id"] = params.LocationID
	}
	if len(params.UserTags) > 0 {
		tags := make([]map[string]string, 0, len(params.UserTags))
		for _, username := range params.UserTags {
			tags = append(tags, map[string]string{"username": username})
		}
		payload["user_tags"] = tags
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, reqURL, payload, &result); err != nil {
		return "", err
	}

	if result.ID == "" {
		return "", &Error{
			StatusCode: http.StatusBadGateway,
			Title:      "No container ID returned",
			Message:    "the platform accepted the request but returned no container id",
		}
	}

	return result.ID, nil
}

func (c *InstagramClient) GetContainerStatus(ctx context.Context, acc Account, containerID string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s",
		c.baseURL, containerID, url.QueryEscape(acc.AccessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", mapError(resp.StatusCode, body)
	}

	var result struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing status response: %w", err)
	}

	if result.StatusCode == "" {
		return "", &Error{
			StatusCode: http.StatusBadGateway,
			Title:      "No status code returned",
			Message:    fmt.Sprintf("container %s returned an empty status_code", containerID),
		}
	}

	return result.StatusCode, nil
}

func (c *InstagramClient) PublishContainer(ctx context.Context, acc Account, containerID string) error {
	reqURL := fmt.Sprintf("%s/%s/media_publish", c.baseURL, acc.AccountID)

	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": acc.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	return c.postJSON(ctx, reqURL, payload, &result)
}

func (c *InstagramClient) postJSON(ctx context.Context, reqURL string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return mapError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}

	return nil
}

// mapError turns a non-200 Graph response into the structured error shape.
// The Graph error envelope carries user-facing title/message fields for some
// failures; fall back to the machine fields otherwise.
func mapError(httpStatus int, body []byte) *Error {
	var igErr transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &igErr); err != nil || igErr.Error.Message == "" {
		slog.Info("unparseable platform error response", "status", httpStatus)
		return &Error{
			StatusCode: httpStatus,
			Title:      "Platform error",
			Message:    string(body),
		}
	}

	title := igErr.Error.ErrorUserTitle
	if title == "" {
		title = igErr.Error.Type
	}

	return &Error{
		StatusCode: httpStatus,
		Title:      title,
		Message:    igErr.Error.Message,
		Solution:   igErr.Error.ErrorUserMsg,
	}
}
