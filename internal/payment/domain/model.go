package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the processed-event ledger used to absorb provider
// redeliveries: one row per unique provider event id, inserted before
// any account mutation.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event_id,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event_id,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	AccountID       int64          `json:"account_id" gorm:"not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	OccurredAt      time.Time      `json:"occurred_at" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// EventTypeCheckoutCompleted is the only provider event this service
// acts on; everything else is acknowledged and dropped.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// CheckoutEvent is a verified, parsed provider event. Metadata carries
// the reconciliation fields attached at session-creation time, all as
// strings the way the provider round-trips them.
type CheckoutEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	Metadata        map[string]string
	OccurredAt      time.Time
	RawPayload      []byte
}

// Purchase is the fully coerced and validated reconciliation value.
// No account mutation happens except through one of these.
type Purchase struct {
	AccountID    int64
	PackageID    string
	Points       int64
	PriorityTier int
}
