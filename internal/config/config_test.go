package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":    "postgres://localhost:5432/kasir",
		"REDIS_URL":       "redis://localhost:6379/0",
		"AUTH_JWT_SECRET": "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, 1100, cfg.PricingTaxRateBPS)
	require.Equal(t, "IDR", cfg.CurrencyCode)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsTaxRateOutOfRange(t *testing.T) {
	env := baseEnv()
	env["PRICING_TAX_RATE_BPS"] = "20000"
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestTaxRateOverride(t *testing.T) {
	env := baseEnv()
	env["PRICING_TAX_RATE_BPS"] = "1000"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.PricingTaxRateBPS)
}
