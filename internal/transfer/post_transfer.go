package transfer

import "github.com/golang-jwt/jwt/v5"

// PostCreation carries the multipart form fields of the create endpoint.
type PostCreation struct {
	Caption       string
	MediaType     string
	ScheduledTime string
}

// PostEdit carries the fields of the edit endpoint. Nil means "leave
// unchanged"; changing MediaURL or MediaType resets the pipeline.
type PostEdit struct {
	Caption       *string `json:"caption"`
	MediaURL      *string `json:"media_url"`
	MediaType     *string `json:"media_type"`
	ScheduledTime *string `json:"scheduled_time"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
