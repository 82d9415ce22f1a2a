package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "topup", cfg.AppName)
	assert.Equal(t, "videos2hotbot", cfg.ProjectTag)
	assert.Equal(t, "mxn", cfg.Currency)
	assert.Equal(t, "https://t.me/videos2hotbot", cfg.SuccessURL)
	assert.Equal(t, "https://t.me/videos2hotbot", cfg.CancelURL)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 10, cfg.DBMaxIdleConn)
	assert.Equal(t, 100, cfg.DBMaxOpenConn)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PROJECT_TAG", "  otherbot  ")
	t.Setenv("CHECKOUT_CURRENCY", "USD")
	t.Setenv("REDIRECT_URL", "https://t.me/otherbot")
	t.Setenv("CHECKOUT_CANCEL_URL", "https://example.com/cancel")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_abc")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "25")

	cfg := Load()

	require.Equal(t, "otherbot", cfg.ProjectTag)
	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, "https://t.me/otherbot", cfg.SuccessURL)
	assert.Equal(t, "https://example.com/cancel", cfg.CancelURL)
	assert.Equal(t, "sk_test_abc", cfg.StripeSecretKey)
	assert.Equal(t, 25, cfg.DBMaxOpenConn)
}

func TestLoadIgnoresInvalidPoolSizes(t *testing.T) {
	t.Setenv("DATABASE_MAX_IDLE_CONN", "many")

	cfg := Load()
	assert.Equal(t, 10, cfg.DBMaxIdleConn)
}
