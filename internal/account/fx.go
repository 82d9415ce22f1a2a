package account

import (
	"github.com/smallbiznis/topup/internal/account/repository"
	accountservice "github.com/smallbiznis/topup/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.Provide),
	fx.Provide(accountservice.NewService),
)
