package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/topup/internal/account/domain"
	"github.com/smallbiznis/topup/internal/config"
	obsmetrics "github.com/smallbiznis/topup/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
	"github.com/smallbiznis/topup/internal/providers/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Catalog    *config.CatalogHolder
	GenID      *snowflake.Node
	AccountSvc accountdomain.Service
	Notifier   telegram.Provider
	Adapter    paymentdomain.Adapter
	Repo       paymentdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	catalog    *config.CatalogHolder
	genID      *snowflake.Node
	accountSvc accountdomain.Service
	notifier   telegram.Provider
	adapter    paymentdomain.Adapter
	repo       paymentdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		cfg:        p.Cfg,
		catalog:    p.Catalog,
		genID:      p.GenID,
		accountSvc: p.AccountSvc,
		notifier:   p.Notifier,
		adapter:    p.Adapter,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook runs the reconciliation pipeline for one delivery:
// authenticate, filter by event type and project tag, coerce metadata,
// record the event id, mutate the account, notify. Only authentication
// and parse failures bubble up as 4xx; everything after that is either
// a sentinel acknowledged with 200 or a store error worth a retry.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Error("webhook signature verification failed", zap.Error(err))
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.recordEvent(ctx, "other", "ignored")
			return err
		}
		s.log.Error("webhook payload rejected", zap.Error(err))
		return err
	}

	if project := event.Metadata["project"]; project != s.cfg.ProjectTag {
		s.log.Info("event belongs to a sibling deployment",
			zap.String("event_project", project),
			zap.String("project", s.cfg.ProjectTag),
		)
		s.recordEvent(ctx, event.Type, "project_mismatch")
		return paymentdomain.ErrProjectMismatch
	}

	purchase, err := s.reconcile(event)
	if err != nil {
		s.recordEvent(ctx, event.Type, "skipped")
		return err
	}

	// Claim, mutate and mark in one transaction. A crash mid-settlement
	// rolls the claim back, so a redelivery either finds no claim and
	// retries in full, or finds a committed row and stops.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.claimEvent(ctx, tx, event, purchase.AccountID)
		if err != nil {
			return err
		}
		if record == nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
		if err := s.applyPurchase(ctx, tx, purchase); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, record.ID, time.Now().UTC())
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			s.recordEvent(ctx, event.Type, "duplicate")
		}
		return err
	}

	s.notify(ctx, purchase)
	s.recordEvent(ctx, event.Type, "processed")
	return nil
}

// reconcile coerces the string metadata into a typed Purchase. Account
// and package must be valid; points and priority degrade to defaults so
// a partial payload still settles what it can.
func (s *Service) reconcile(event *paymentdomain.CheckoutEvent) (*paymentdomain.Purchase, error) {
	accountRaw := strings.TrimSpace(event.Metadata["telegram_user_id"])
	accountID, err := strconv.ParseInt(accountRaw, 10, 64)
	if err != nil || accountID <= 0 {
		s.log.Error("webhook metadata has invalid account id",
			zap.String("telegram_user_id", accountRaw),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		return nil, paymentdomain.ErrMissingAccount
	}

	packageID := strings.TrimSpace(event.Metadata["package_id"])
	if _, ok := s.catalog.Get().Lookup(packageID); !ok {
		s.log.Warn("webhook metadata has unknown package",
			zap.String("package_id", packageID),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		return nil, paymentdomain.ErrUnknownPackage
	}

	points, err := strconv.ParseInt(strings.TrimSpace(event.Metadata["points_awarded"]), 10, 64)
	if err != nil || points < 0 {
		s.log.Warn("webhook metadata has invalid points_awarded; defaulting to 0",
			zap.String("points_awarded", event.Metadata["points_awarded"]),
			zap.String("provider_event_id", event.ProviderEventID),
		)
		points = 0
	}

	tier, err := strconv.Atoi(strings.TrimSpace(event.Metadata["priority_boost"]))
	if err != nil || tier < 0 {
		s.log.Warn("webhook metadata has invalid priority_boost; using default tier",
			zap.String("priority_boost", event.Metadata["priority_boost"]),
			zap.Int("default_tier", accountdomain.DefaultPriorityTier),
		)
		tier = accountdomain.DefaultPriorityTier
	}

	return &paymentdomain.Purchase{
		AccountID:    accountID,
		PackageID:    packageID,
		Points:       points,
		PriorityTier: tier,
	}, nil
}

// claimEvent records the provider event id under the caller's
// transaction. A nil record with nil error means another delivery
// already owns this event.
func (s *Service) claimEvent(ctx context.Context, tx *gorm.DB, event *paymentdomain.CheckoutEvent, accountID int64) (*paymentdomain.EventRecord, error) {
	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        s.adapter.Provider(),
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		AccountID:       accountID,
		Payload:         datatypes.JSON(event.RawPayload),
		OccurredAt:      event.OccurredAt,
		ReceivedAt:      time.Now().UTC(),
	}

	inserted, err := s.repo.InsertEvent(ctx, tx, &record)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &record, nil
	}

	stored, err := s.repo.FindEvent(ctx, tx, s.adapter.Provider(), event.ProviderEventID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		s.log.Info("event already recorded",
			zap.String("provider_event_id", stored.ProviderEventID),
			zap.Time("received_at", stored.ReceivedAt),
		)
	}
	return nil, nil
}

func (s *Service) applyPurchase(ctx context.Context, tx *gorm.DB, purchase *paymentdomain.Purchase) error {
	if err := s.accountSvc.CreditPoints(ctx, tx, purchase.AccountID, purchase.Points); err != nil {
		s.log.Error("points credit failed",
			zap.Int64("account_id", purchase.AccountID),
			zap.Error(err),
		)
		return err
	}
	if err := s.accountSvc.ImprovePriority(ctx, tx, purchase.AccountID, purchase.PriorityTier); err != nil {
		s.log.Error("priority update failed",
			zap.Int64("account_id", purchase.AccountID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// notify sends the confirmation message. Failures are logged and
// counted but never affect the webhook response or the settled balance.
func (s *Service) notify(ctx context.Context, purchase *paymentdomain.Purchase) {
	tier := purchase.PriorityTier
	if account, err := s.accountSvc.Get(ctx, purchase.AccountID); err == nil {
		tier = account.PriorityTier
	}

	text := fmt.Sprintf(
		"🎉 <b>¡Recarga exitosa!</b> <b>%d</b> puntos han sido añadidos a tu cuenta. Tu prioridad en la cola es ahora <b>%d</b> (0=Más alta).",
		purchase.Points,
		tier,
	)

	if err := s.notifier.SendMessage(ctx, purchase.AccountID, text); err != nil {
		s.log.Error("confirmation message failed",
			zap.Int64("account_id", purchase.AccountID),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordNotification(ctx, "failed")
		}
		return
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordNotification(ctx, "sent")
	}
}

func (s *Service) recordEvent(ctx context.Context, eventType, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, eventType, outcome)
	}
}
