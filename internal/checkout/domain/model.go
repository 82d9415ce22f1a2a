package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrUnknownPackage = errors.New("unknown_package")
	ErrInvalidConfig  = errors.New("invalid_config")
	ErrUpstream       = errors.New("stripe_unavailable")
)

// CreateSessionRequest is the purchase intent sent by the bot.
// PriorityBoost overrides the package's default queue tier when present.
type CreateSessionRequest struct {
	TelegramUserID string
	PackageID      string
	PriorityBoost  *int
}

// CreateSessionResponse carries the hosted checkout redirect URL.
type CreateSessionResponse struct {
	URL string `json:"url"`
}

type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResponse, error)
}
