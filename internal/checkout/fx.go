package checkout

import (
	checkoutservice "github.com/smallbiznis/topup/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout.service",
	fx.Provide(checkoutservice.NewService),
)
