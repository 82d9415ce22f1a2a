package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/topup/internal/account/domain"
	"github.com/smallbiznis/topup/internal/account/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	if err := db.Exec(`CREATE TABLE accounts (
		account_id BIGINT PRIMARY KEY,
		points_balance BIGINT NOT NULL DEFAULT 0,
		priority_tier INTEGER NOT NULL DEFAULT 2,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error; err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestUpsertCreditAccumulates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	now := time.Now().UTC()

	if err := repo.UpsertCredit(ctx, db, 42, 500, now); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	if err := repo.UpsertCredit(ctx, db, 42, 2000, now); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	account, err := repo.Find(ctx, db, 42)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account == nil {
		t.Fatalf("expected account")
	}
	if account.PointsBalance != 2500 {
		t.Fatalf("expected balance 2500, got %d", account.PointsBalance)
	}
	if account.PriorityTier != domain.DefaultPriorityTier {
		t.Fatalf("expected default tier %d, got %d", domain.DefaultPriorityTier, account.PriorityTier)
	}
}

func TestUpsertPriorityOnlyImproves(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	now := time.Now().UTC()

	tests := []struct {
		name     string
		apply    []int
		wantTier int
	}{{
		name:     "fresh account takes the given tier",
		apply:    []int{1},
		wantTier: 1,
	}, {
		name:     "better tier wins",
		apply:    []int{2, 0},
		wantTier: 0,
	}, {
		name:     "worse tier is ignored",
		apply:    []int{1, 3},
		wantTier: 1,
	}, {
		name:     "equal tier is a no-op",
		apply:    []int{1, 1},
		wantTier: 1,
	}}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accountID := int64(100 + i)
			for _, tier := range tt.apply {
				if err := repo.UpsertPriority(ctx, db, accountID, tier, now); err != nil {
					t.Fatalf("upsert priority %d: %v", tier, err)
				}
			}
			account, err := repo.Find(ctx, db, accountID)
			if err != nil {
				t.Fatalf("find account: %v", err)
			}
			if account.PriorityTier != tt.wantTier {
				t.Fatalf("expected tier %d, got %d", tt.wantTier, account.PriorityTier)
			}
		})
	}
}

func TestUpsertPriorityKeepsBalance(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()
	now := time.Now().UTC()

	if err := repo.UpsertCredit(ctx, db, 7, 500, now); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := repo.UpsertPriority(ctx, db, 7, 1, now); err != nil {
		t.Fatalf("priority: %v", err)
	}

	account, err := repo.Find(ctx, db, 7)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account.PointsBalance != 500 {
		t.Fatalf("expected balance untouched at 500, got %d", account.PointsBalance)
	}
	if account.PriorityTier != 1 {
		t.Fatalf("expected tier 1, got %d", account.PriorityTier)
	}
}

func TestFindMissingAccount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.Provide()

	account, err := repo.Find(ctx, db, 999)
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if account != nil {
		t.Fatalf("expected nil for missing account, got %+v", account)
	}
}
