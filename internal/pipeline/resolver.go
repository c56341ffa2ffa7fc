package pipeline

import (
	"context"
	"errors"

	"github.com/maheshrc27/postpipe/internal/platform"
)

// ErrNoLinkedAccount means the post's owner has no usable platform account.
// This is not transient: the drivers fail the post without burning retry
// budget on it.
var ErrNoLinkedAccount = errors.New("no linked social account")

// AccountResolver maps a post's owner to the credential needed to call the
// platform on their behalf.
type AccountResolver interface {
	Resolve(ctx context.Context, userID int64) (platform.Account, error)
}
