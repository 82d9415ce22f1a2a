package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountrepo "github.com/smallbiznis/topup/internal/account/repository"
	accountservice "github.com/smallbiznis/topup/internal/account/service"
	"github.com/smallbiznis/topup/internal/config"
	"github.com/smallbiznis/topup/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/topup/internal/payment/repository"
	paymentservice "github.com/smallbiznis/topup/internal/payment/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testSecret  = "whsec_test"
	testProject = "videos2hotbot"
)

type recordingNotifier struct {
	messages []string
	chatIDs  []int64
	fail     bool
}

func (n *recordingNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if n.fail {
		return errors.New("telegram unreachable")
	}
	n.chatIDs = append(n.chatIDs, chatID)
	n.messages = append(n.messages, text)
	return nil
}

func TestIngestWebhookCreditsAccount(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := newPaymentService(t, db, notifier)

	payload, header := signedCheckoutEvent(t, "evt_1", map[string]any{
		"telegram_user_id": "8111",
		"package_id":       "p500",
		"points_awarded":   "2000",
		"priority_boost":   "1",
		"project":          testProject,
	})

	if err := svc.IngestWebhook(ctx, payload, header); err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}

	account := findAccount(t, db, 8111)
	if account.PointsBalance != 2000 {
		t.Fatalf("expected balance 2000, got %d", account.PointsBalance)
	}
	if account.PriorityTier != 1 {
		t.Fatalf("expected tier 1, got %d", account.PriorityTier)
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected one confirmation message, got %d", len(notifier.messages))
	}
	if notifier.chatIDs[0] != 8111 {
		t.Fatalf("expected message to chat 8111, got %d", notifier.chatIDs[0])
	}
	if !strings.Contains(notifier.messages[0], "<b>2000</b>") {
		t.Fatalf("expected points in message, got %q", notifier.messages[0])
	}
	if !strings.Contains(notifier.messages[0], "<b>1</b>") {
		t.Fatalf("expected resulting tier in message, got %q", notifier.messages[0])
	}

	record := findEvent(t, db, "evt_1")
	if record == nil {
		t.Fatalf("expected event record")
	}
	if record.ProcessedAt == nil {
		t.Fatalf("expected event marked processed")
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected provider timestamp stored on event")
	}
}

func TestIngestWebhookDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := newPaymentService(t, db, notifier)

	payload, header := signedCheckoutEvent(t, "evt_dup", map[string]any{
		"telegram_user_id": "8222",
		"package_id":       "p200",
		"points_awarded":   "500",
		"priority_boost":   "1",
		"project":          testProject,
	})

	if err := svc.IngestWebhook(ctx, payload, header); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	account := findAccount(t, db, 8222)
	if account.PointsBalance != 500 {
		t.Fatalf("expected balance 500 after redelivery, got %d", account.PointsBalance)
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one message despite redelivery, got %d", len(notifier.messages))
	}
}

func TestIngestWebhookClaimedEventIsNeverReplayed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := newPaymentService(t, db, notifier)

	payload, header := signedCheckoutEvent(t, "evt_claimed", map[string]any{
		"telegram_user_id": "8333",
		"package_id":       "p200",
		"points_awarded":   "500",
		"priority_boost":   "1",
		"project":          testProject,
	})

	// Another delivery claimed the event id and already credited the
	// account, but its processed marker is not visible yet.
	seeded := time.Now().UTC().Add(-time.Minute)
	if err := db.Exec(
		`INSERT INTO payment_events (id, provider, provider_event_id, event_type, account_id, payload, occurred_at, received_at)
		 VALUES (?, 'stripe', 'evt_claimed', ?, 8333, ?, ?, ?)`,
		1001, paymentdomain.EventTypeCheckoutCompleted, string(payload), seeded, seeded,
	).Error; err != nil {
		t.Fatalf("seed claimed event: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO accounts (account_id, points_balance, priority_tier, created_at, updated_at)
		 VALUES (8333, 500, 1, ?, ?)`,
		seeded, seeded,
	).Error; err != nil {
		t.Fatalf("seed credited account: %v", err)
	}

	if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	account := findAccount(t, db, 8333)
	if account.PointsBalance != 500 {
		t.Fatalf("expected balance to stay at 500, got %d", account.PointsBalance)
	}
	if count := countEvents(t, db); count != 1 {
		t.Fatalf("expected single event row, got %d", count)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("expected no message for a claimed event, got %d", len(notifier.messages))
	}
}

func TestIngestWebhookProjectMismatch(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	svc := newPaymentService(t, db, notifier)

	payload, header := signedCheckoutEvent(t, "evt_other", map[string]any{
		"telegram_user_id": "8444",
		"package_id":       "p500",
		"points_awarded":   "2000",
		"priority_boost":   "1",
		"project":          "siblingbot",
	})

	if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, paymentdomain.ErrProjectMismatch) {
		t.Fatalf("expected project mismatch, got %v", err)
	}

	assertNoAccount(t, db, 8444)
	if count := countEvents(t, db); count != 0 {
		t.Fatalf("expected no stored events, got %d", count)
	}
	if len(notifier.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(notifier.messages))
	}
}

func TestIngestWebhookRejectsBadMetadata(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	tests := []struct {
		name     string
		metadata map[string]any
		wantErr  error
	}{{
		name: "non numeric account id",
		metadata: map[string]any{
			"telegram_user_id": "not-a-number",
			"package_id":       "p500",
			"points_awarded":   "2000",
			"priority_boost":   "1",
			"project":          testProject,
		},
		wantErr: paymentdomain.ErrMissingAccount,
	}, {
		name: "missing account id",
		metadata: map[string]any{
			"package_id":     "p500",
			"points_awarded": "2000",
			"priority_boost": "1",
			"project":        testProject,
		},
		wantErr: paymentdomain.ErrMissingAccount,
	}, {
		name: "unknown package",
		metadata: map[string]any{
			"telegram_user_id": "8555",
			"package_id":       "p9999",
			"points_awarded":   "2000",
			"priority_boost":   "1",
			"project":          testProject,
		},
		wantErr: paymentdomain.ErrUnknownPackage,
	}}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, header := signedCheckoutEvent(t, fmt.Sprintf("evt_bad_%d", i), tt.metadata)
			if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	assertNoAccount(t, db, 8555)
}

func TestIngestWebhookMetadataFallbacks(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	payload, header := signedCheckoutEvent(t, "evt_fallback", map[string]any{
		"telegram_user_id": "8666",
		"package_id":       "p200",
		"points_awarded":   "n/a",
		"priority_boost":   "urgent",
		"project":          testProject,
	})

	if err := svc.IngestWebhook(ctx, payload, header); err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}

	account := findAccount(t, db, 8666)
	if account.PointsBalance != 0 {
		t.Fatalf("expected zero points for unparsable amount, got %d", account.PointsBalance)
	}
	if account.PriorityTier != 2 {
		t.Fatalf("expected default tier 2, got %d", account.PriorityTier)
	}
	record := findEvent(t, db, "evt_fallback")
	if record.ProcessedAt == nil {
		t.Fatalf("expected event marked processed")
	}
}

func TestIngestWebhookNegativeAmountsFallBack(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	payload, header := signedCheckoutEvent(t, "evt_negative", map[string]any{
		"telegram_user_id": "8667",
		"package_id":       "p200",
		"points_awarded":   "-500",
		"priority_boost":   "-1",
		"project":          testProject,
	})

	if err := svc.IngestWebhook(ctx, payload, header); err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}

	account := findAccount(t, db, 8667)
	if account.PointsBalance != 0 {
		t.Fatalf("expected zero points for negative amount, got %d", account.PointsBalance)
	}
	if account.PriorityTier != 2 {
		t.Fatalf("expected default tier 2, got %d", account.PriorityTier)
	}
}

func TestIngestWebhookPriorityNeverRegresses(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	first, firstHeader := signedCheckoutEvent(t, "evt_tier_a", map[string]any{
		"telegram_user_id": "8777",
		"package_id":       "p1000",
		"points_awarded":   "5000",
		"priority_boost":   "0",
		"project":          testProject,
	})
	if err := svc.IngestWebhook(ctx, first, firstHeader); err != nil {
		t.Fatalf("first purchase: %v", err)
	}

	second, secondHeader := signedCheckoutEvent(t, "evt_tier_b", map[string]any{
		"telegram_user_id": "8777",
		"package_id":       "p200",
		"points_awarded":   "500",
		"priority_boost":   "3",
		"project":          testProject,
	})
	if err := svc.IngestWebhook(ctx, second, secondHeader); err != nil {
		t.Fatalf("second purchase: %v", err)
	}

	account := findAccount(t, db, 8777)
	if account.PriorityTier != 0 {
		t.Fatalf("expected tier to stay at 0, got %d", account.PriorityTier)
	}
	if account.PointsBalance != 5500 {
		t.Fatalf("expected accumulated balance 5500, got %d", account.PointsBalance)
	}
}

func TestIngestWebhookNotifierFailureStillSettles(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{fail: true})

	payload, header := signedCheckoutEvent(t, "evt_notify", map[string]any{
		"telegram_user_id": "8888",
		"package_id":       "p500",
		"points_awarded":   "2000",
		"priority_boost":   "1",
		"project":          testProject,
	})

	if err := svc.IngestWebhook(ctx, payload, header); err != nil {
		t.Fatalf("expected settlement despite notifier failure, got %v", err)
	}

	account := findAccount(t, db, 8888)
	if account.PointsBalance != 2000 {
		t.Fatalf("expected balance 2000, got %d", account.PointsBalance)
	}
	record := findEvent(t, db, "evt_notify")
	if record.ProcessedAt == nil {
		t.Fatalf("expected event marked processed")
	}
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	payload, _ := signedCheckoutEvent(t, "evt_forged", map[string]any{
		"telegram_user_id": "8999",
		"package_id":       "p500",
		"points_awarded":   "2000",
		"priority_boost":   "1",
		"project":          testProject,
	})

	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_wrong", payload, time.Now().Unix()))

	if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	assertNoAccount(t, db, 8999)
}

func TestIngestWebhookIgnoresUnrelatedEventTypes(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newPaymentService(t, db, &recordingNotifier{})

	payload := []byte(`{"id":"evt_invoice","type":"invoice.paid","data":{"object":{}}}`)
	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader(testSecret, payload, time.Now().Unix()))

	if err := svc.IngestWebhook(ctx, payload, header); !errors.Is(err, paymentdomain.ErrEventIgnored) {
		t.Fatalf("expected ignored event, got %v", err)
	}
	if count := countEvents(t, db); count != 0 {
		t.Fatalf("expected no stored events, got %d", count)
	}
}

func newPaymentService(t *testing.T, db *gorm.DB, notifier *recordingNotifier) paymentdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	adapter, err := stripe.NewAdapter(testSecret)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	accountSvc := accountservice.NewService(accountservice.Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: accountrepo.Provide(),
	})

	return paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Cfg:        config.Config{ProjectTag: testProject},
		Catalog:    config.NewStaticCatalogHolder(config.DefaultCatalog()),
		GenID:      node,
		AccountSvc: accountSvc,
		Notifier:   notifier,
		Adapter:    adapter,
		Repo:       paymentrepo.Provide(),
	})
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE accounts (
			account_id BIGINT PRIMARY KEY,
			points_balance BIGINT NOT NULL DEFAULT 0,
			priority_tier INTEGER NOT NULL DEFAULT 2,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payment_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			account_id BIGINT NOT NULL,
			payload TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			received_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
		`CREATE UNIQUE INDEX ux_payment_events_provider_event_id ON payment_events(provider, provider_event_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

func signedCheckoutEvent(t *testing.T, eventID string, metadata map[string]any) ([]byte, http.Header) {
	t.Helper()

	now := time.Now().UTC()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    paymentdomain.EventTypeCheckoutCompleted,
		"created": now.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":       "cs_" + eventID,
				"created":  now.Unix(),
				"metadata": metadata,
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	header := http.Header{}
	header.Set("Stripe-Signature", buildStripeSignatureHeader(testSecret, payload, now.Unix()))
	return payload, header
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}

func findAccount(t *testing.T, db *gorm.DB, accountID int64) accountRow {
	t.Helper()

	var row accountRow
	err := db.Raw(
		`SELECT account_id, points_balance, priority_tier FROM accounts WHERE account_id = ?`,
		accountID,
	).Scan(&row).Error
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	if row.AccountID == 0 {
		t.Fatalf("expected account %d to exist", accountID)
	}
	return row
}

func assertNoAccount(t *testing.T, db *gorm.DB, accountID int64) {
	t.Helper()

	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM accounts WHERE account_id = ?`, accountID).Scan(&count).Error; err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no account row for %d", accountID)
	}
}

func findEvent(t *testing.T, db *gorm.DB, providerEventID string) *eventRow {
	t.Helper()

	var row eventRow
	err := db.Raw(
		`SELECT id, provider_event_id, occurred_at, processed_at FROM payment_events WHERE provider = 'stripe' AND provider_event_id = ?`,
		providerEventID,
	).Scan(&row).Error
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if row.ID == 0 {
		return nil
	}
	return &row
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM payment_events`).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

type accountRow struct {
	AccountID     int64
	PointsBalance int64
	PriorityTier  int
}

type eventRow struct {
	ID              int64
	ProviderEventID string
	OccurredAt      time.Time
	ProcessedAt     *time.Time
}
