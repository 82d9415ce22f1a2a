package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/topup/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) UpsertCredit(ctx context.Context, db *gorm.DB, accountID int64, points int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (account_id, points_balance, priority_tier, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
			points_balance = accounts.points_balance + excluded.points_balance,
			updated_at = excluded.updated_at`,
		accountID,
		points,
		domain.DefaultPriorityTier,
		now,
		now,
	).Error
}

func (r *repo) UpsertPriority(ctx context.Context, db *gorm.DB, accountID int64, tier int, now time.Time) error {
	// The tier only ever improves (numerically decreases); a late or
	// duplicate delivery carrying a worse tier must not regress it.
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (account_id, points_balance, priority_tier, created_at, updated_at)
		 VALUES (?, 0, ?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET
			priority_tier = CASE
				WHEN accounts.priority_tier <= excluded.priority_tier THEN accounts.priority_tier
				ELSE excluded.priority_tier
			END,
			updated_at = excluded.updated_at`,
		accountID,
		tier,
		now,
		now,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, accountID int64) (*domain.Account, error) {
	var item domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT account_id, points_balance, priority_tier, created_at, updated_at
		 FROM accounts
		 WHERE account_id = ?
		 LIMIT 1`,
		accountID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.AccountID == 0 {
		return nil, nil
	}
	return &item, nil
}
