package payment

import (
	"github.com/smallbiznis/topup/internal/config"
	"github.com/smallbiznis/topup/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/topup/internal/payment/domain"
	"github.com/smallbiznis/topup/internal/payment/repository"
	paymentservice "github.com/smallbiznis/topup/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) (paymentdomain.Adapter, error) {
		return stripe.NewAdapter(cfg.StripeWebhookSecret)
	}),
	fx.Provide(paymentservice.NewService),
)
