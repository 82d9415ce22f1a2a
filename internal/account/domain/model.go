package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// DefaultPriorityTier is the queue tier assigned when an account is first
// seen without an explicit boost. Lower values are served sooner.
const DefaultPriorityTier = 2

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidPoints  = errors.New("invalid_points")
	ErrInvalidTier    = errors.New("invalid_tier")
	ErrNotFound       = errors.New("account_not_found")
)

// Account is one bot user's durable balance record.
type Account struct {
	AccountID     int64     `json:"account_id" gorm:"primaryKey;autoIncrement:false"`
	PointsBalance int64     `json:"points_balance" gorm:"not null;default:0"`
	PriorityTier  int       `json:"priority_tier" gorm:"not null;default:2"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// Service mutates account balances. Both writes take the caller's
// handle so they can join an enclosing transaction, and both are safe
// to issue concurrently for the same account: the credit is additive
// at the store and the priority write never raises the tier value.
type Service interface {
	CreditPoints(ctx context.Context, db *gorm.DB, accountID int64, points int64) error
	ImprovePriority(ctx context.Context, db *gorm.DB, accountID int64, tier int) error
	Get(ctx context.Context, accountID int64) (*Account, error)
}

type Repository interface {
	UpsertCredit(ctx context.Context, db *gorm.DB, accountID int64, points int64, now time.Time) error
	UpsertPriority(ctx context.Context, db *gorm.DB, accountID int64, tier int, now time.Time) error
	Find(ctx context.Context, db *gorm.DB, accountID int64) (*Account, error)
}
