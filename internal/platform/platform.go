package platform

import (
	"context"
	"encoding/json"
	"fmt"
)

// Account is the credential pair needed to call the platform on behalf of
// a user. The access token arrives already decrypted from the resolver.
type Account struct {
	AccountID   string
	AccessToken string
}

// ContainerParams describes the media staged into a container.
type ContainerParams struct {
	MediaURL   string
	MediaType  string
	Caption    string
	LocationID string
	UserTags   []string
}

// Client is the capability surface of the external platform. Every call may
// return a *Error; anything else returned as error is a transport failure
// that callers should normalize through Normalize.
type Client interface {
	CreateContainer(ctx context.Context, acc Account, params ContainerParams) (string, error)
	GetContainerStatus(ctx context.Context, acc Account, containerID string) (string, error)
	PublishContainer(ctx context.Context, acc Account, containerID string) error
}

// Error is the normalized shape every platform failure is mapped into before
// it is recorded on a post. It is serialized only at the storage boundary.
type Error struct {
	StatusCode int    `json:"status_code"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Solution   string `json:"solution,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Title, e.StatusCode, e.Message)
}

// Normalize coerces any error into the structured form. Errors that are
// already *Error pass through untouched; transport failures (timeouts,
// connection resets) get status code 0.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*Error); ok {
		return pe
	}
	return &Error{
		StatusCode: 0,
		Title:      "Request failed",
		Message:    err.Error(),
		Solution:   "The platform could not be reached. The post will be retried.",
	}
}

// Serialize renders the error as the JSON payload stored in
// last_error_message.
func (e *Error) Serialize() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"status_code":%d,"title":%q,"message":%q}`, e.StatusCode, e.Title, e.Message)
	}
	return string(b)
}

// ParseError is the inverse of Serialize, used by callers that surface the
// recorded failure to users.
func ParseError(raw string) (*Error, error) {
	var e Error
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
