package service

import (
	"context"
	"errors"
	"log/slog"

	config "github.com/maheshrc27/postpipe/configs"
	"github.com/maheshrc27/postpipe/internal/models"
	"github.com/maheshrc27/postpipe/internal/pipeline"
	"github.com/maheshrc27/postpipe/internal/platform"
	"github.com/maheshrc27/postpipe/internal/repository"
	"github.com/maheshrc27/postpipe/pkg/utils"
)

type AccountService interface {
	Resolve(ctx context.Context, userID int64) (platform.Account, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Remove(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewAccountService(cfg config.Config, sa repository.SocialAccountRepository) AccountService {
	return &accountService{cfg: cfg, sa: sa}
}

// Resolve satisfies pipeline.AccountResolver: it looks up the owner's linked
// Instagram account and decrypts the stored access token.
func (s *accountService) Resolve(ctx context.Context, userID int64) (platform.Account, error) {
	sa, err := s.sa.GetByUserID(ctx, userID)
	if err != nil {
		return platform.Account{}, err
	}
	if sa == nil {
		return platform.Account{}, pipeline.ErrNoLinkedAccount
	}

	accessToken, err := utils.Decrypt(sa.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		slog.Error("failed to decrypt access token", "user_id", userID)
		return platform.Account{}, err
	}

	return platform.Account{
		AccountID:   sa.AccountID,
		AccessToken: accessToken,
	}, nil
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, errors.New("error listing social accounts")
	}
	return accounts, nil
}

func (s *accountService) Remove(ctx context.Context, userID, accountID int64) error {
	sa, err := s.sa.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if sa == nil || sa.ID != accountID {
		return errors.New("account doesn't exist")
	}
	return s.sa.Remove(ctx, accountID)
}
