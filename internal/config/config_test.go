package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CMC_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "https://pro-api.coinmarketcap.com/v1", cfg.CMCBaseURL)
	assert.Equal(t, "https://api.alternative.me/fng/", cfg.FearGreedURL)
	assert.Equal(t, 25, cfg.CMCRateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CMC_API_KEY", "test-key")
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CMC_BASE_URL", "https://sandbox-api.coinmarketcap.com/v1")
	t.Setenv("CMC_RATE_LIMIT", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://sandbox-api.coinmarketcap.com/v1", cfg.CMCBaseURL)
	assert.Equal(t, 100, cfg.CMCRateLimit)
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("CMC_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CMC_API_KEY")
}

func TestLoad_RateLimitValidation(t *testing.T) {
	t.Setenv("CMC_API_KEY", "test-key")

	t.Setenv("CMC_RATE_LIMIT", "abc")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CMC_RATE_LIMIT", "0")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CMC_RATE_LIMIT", "-5")
	_, err = Load()
	require.Error(t, err)
}
