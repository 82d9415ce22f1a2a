package telegram

import (
	"github.com/smallbiznis/topup/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.telegram",
	fx.Provide(NewFromConfig),
)

// NewFromConfig degrades to a no-op provider when no bot token is
// configured; purchases still settle, only confirmations are skipped.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.TelegramBotToken == "" {
		log.Warn("BOT_TOKEN not configured; purchase confirmations will not be sent")
		return &NoOpProvider{}
	}
	return NewBot(Config{Token: cfg.TelegramBotToken})
}
