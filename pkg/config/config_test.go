package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.False(t, cfg.Production)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Second, cfg.DepositInterval)
	assert.Equal(t, uint8(6), cfg.TokenDecimals)
	assert.Equal(t, "0.0001", cfg.TokenPriceSol.String())
	assert.Len(t, cfg.PumpAPIURLs, 3)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("JUP_BASE", "https://a.example/v6/, https://b.example/v6")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ENABLE_TELEGRAM", "yes")
	t.Setenv("SLIPPAGE_BPS", "120")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Production)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"https://a.example/v6", "https://b.example/v6"}, cfg.JupiterBaseURLs)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.EnableTelegram)
	assert.Equal(t, 120, cfg.SlippageBps)
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("TOKEN_DECIMALS", "300")
	t.Setenv("RATE_LIMIT_RPS", "fast")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_DECIMALS")
	assert.Contains(t, err.Error(), "RATE_LIMIT_RPS")
}

func TestFromEnvRejectsNegativePriorityFee(t *testing.T) {
	t.Setenv("PRIORITY_FEE_MICROLAMPORTS", "-1")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIORITY_FEE_MICROLAMPORTS")

	t.Setenv("PRIORITY_FEE_MICROLAMPORTS", "2500")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, uint64(2500), cfg.PriorityFeeMicroLamports)
}

func TestValidate(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	cfg.SessionSecret = ""
	cfg.SessionBackend = "redis"
	cfg.MerchantPubkey = "not-a-key"
	cfg.EnableDepositMonitor = true
	cfg.DepositWallet = ""

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "MERCHANT_PUBKEY")
	assert.Contains(t, err.Error(), "DEPOSIT_WALLET")
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "veilfi.yaml")
	content := `
rpc_url: https://rpc.example
jupiter_base_urls:
  - https://jup-mirror.example/v6
raydium:
  swap_host: https://ray.example
pump_api_urls:
  - https://pump-mirror.example/tokens
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.applyFile(path))

	assert.Equal(t, "https://rpc.example", cfg.SolanaRpcURL)
	assert.Equal(t, []string{"https://jup-mirror.example/v6"}, cfg.JupiterBaseURLs)
	assert.Equal(t, "https://ray.example", cfg.RaydiumSwapHost)
	assert.Equal(t, "https://api-v3.raydium.io", cfg.RaydiumAPIHost)
	assert.Equal(t, []string{"https://pump-mirror.example/tokens"}, cfg.PumpAPIURLs)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@localhost:5432/veilfi"}
	assert.Equal(t, "postgres://u:p@localhost:5432/veilfi?sslmode=disable", cfg.PostgresDSN())

	cfg.DBSSL = true
	assert.Equal(t, "postgres://u:p@localhost:5432/veilfi?sslmode=require", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://h/db?sslmode=verify-full"
	assert.Equal(t, "postgres://h/db?sslmode=verify-full", cfg.PostgresDSN())
}
