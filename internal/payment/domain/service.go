package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrProjectMismatch       = errors.New("project_mismatch")
	ErrMissingAccount        = errors.New("missing_account")
	ErrUnknownPackage        = errors.New("unknown_package")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)

// Service reconciles inbound provider webhooks against the account store.
type Service interface {
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

// Adapter verifies and parses one provider's webhook envelope.
// Verify runs against the raw bytes; nothing reads payload fields
// before it has passed.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*CheckoutEvent, error)
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
