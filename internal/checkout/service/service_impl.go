package service

import (
	"context"
	"strconv"
	"strings"

	checkoutdomain "github.com/smallbiznis/topup/internal/checkout/domain"
	"github.com/smallbiznis/topup/internal/config"
	obsmetrics "github.com/smallbiznis/topup/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Catalog    *config.CatalogHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	cfg        config.Config
	catalog    *config.CatalogHolder
	stripe     *stripeClient
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) checkoutdomain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		cfg:        p.Cfg,
		catalog:    p.Catalog,
		stripe:     newStripeClient(p.Cfg.StripeSecretKey, ""),
		obsMetrics: p.ObsMetrics,
	}
}

// NewServiceWithBaseURL points the Stripe client at an alternate host.
func NewServiceWithBaseURL(p Params, baseURL string) checkoutdomain.Service {
	svc := NewService(p).(*Service)
	svc.stripe = newStripeClient(p.Cfg.StripeSecretKey, baseURL)
	return svc
}

func (s *Service) CreateSession(ctx context.Context, req checkoutdomain.CreateSessionRequest) (checkoutdomain.CreateSessionResponse, error) {
	userID := strings.TrimSpace(req.TelegramUserID)
	if userID == "" {
		return checkoutdomain.CreateSessionResponse{}, checkoutdomain.ErrInvalidAccount
	}

	pkg, ok := s.catalog.Get().Lookup(strings.TrimSpace(req.PackageID))
	if !ok {
		return checkoutdomain.CreateSessionResponse{}, checkoutdomain.ErrUnknownPackage
	}

	if s.cfg.ProjectTag == "" || s.cfg.StripeSecretKey == "" {
		return checkoutdomain.CreateSessionResponse{}, checkoutdomain.ErrInvalidConfig
	}

	boost := pkg.DefaultPriority
	if req.PriorityBoost != nil {
		boost = *req.PriorityBoost
	}

	session, err := s.stripe.createCheckoutSession(ctx, checkoutSessionParams{
		Currency:    s.cfg.Currency,
		UnitAmount:  pkg.UnitAmount,
		ProductName: pkg.Label,
		SuccessURL:  s.cfg.SuccessURL,
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			"telegram_user_id": userID,
			"package_id":       pkg.ID,
			"points_awarded":   strconv.FormatInt(pkg.Points, 10),
			"priority_boost":   strconv.Itoa(boost),
			"project":          s.cfg.ProjectTag,
		},
	})
	if err != nil {
		s.log.Error("checkout session creation failed",
			zap.String("package_id", pkg.ID),
			zap.Error(err),
		)
		return checkoutdomain.CreateSessionResponse{}, checkoutdomain.ErrUpstream
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("package_id", pkg.ID),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, pkg.ID)
	}

	return checkoutdomain.CreateSessionResponse{URL: session.URL}, nil
}
