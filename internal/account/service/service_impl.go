package service

import (
	"context"
	"time"

	"github.com/smallbiznis/topup/internal/account/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("account.service"),
		repo: p.Repo,
	}
}

func (s *Service) CreditPoints(ctx context.Context, db *gorm.DB, accountID int64, points int64) error {
	if accountID <= 0 {
		return domain.ErrInvalidAccount
	}
	if points < 0 {
		return domain.ErrInvalidPoints
	}
	if points == 0 {
		return nil
	}

	now := time.Now().UTC()
	if err := s.repo.UpsertCredit(ctx, db, accountID, points, now); err != nil {
		return err
	}

	s.log.Info("points credited",
		zap.Int64("account_id", accountID),
		zap.Int64("points", points),
	)
	return nil
}

func (s *Service) ImprovePriority(ctx context.Context, db *gorm.DB, accountID int64, tier int) error {
	if accountID <= 0 {
		return domain.ErrInvalidAccount
	}
	if tier < 0 {
		return domain.ErrInvalidTier
	}

	now := time.Now().UTC()
	if err := s.repo.UpsertPriority(ctx, db, accountID, tier, now); err != nil {
		return err
	}

	s.log.Info("priority updated",
		zap.Int64("account_id", accountID),
		zap.Int("tier", tier),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, accountID int64) (*domain.Account, error) {
	if accountID <= 0 {
		return nil, domain.ErrInvalidAccount
	}
	account, err := s.repo.Find(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}
