package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration parameters for the application
type Config struct {
	Port       string
	Production bool
	Debug      bool
	LogLevel   string
	LogFormat  string

	SolanaRpcURL string
	DatabaseURL  string
	DBSSL        bool
	RedisURL     string

	SessionBackend  string // memory | redis
	SessionSecret   string
	SessionTTL      time.Duration
	ServerMasterKey string

	JupiterAPIKey   string
	JupiterBaseURLs []string
	JupiterPriceURL string
	RaydiumSwapHost string
	RaydiumAPIHost  string
	PumpAPIURLs     []string
	PumpPortalURL   string
	CoinGeckoURL    string

	TokenMint        string
	TokenName        string
	TokenDecimals    uint8
	TokenPriceSol    decimal.Decimal
	FallbackPriceSol float64
	FallbackPriceUsd float64
	MerchantPubkey   string
	TreasurySecret   string

	DepositWallet        string
	DepositInterval      time.Duration
	EnableDepositMonitor bool
	StatusInterval       time.Duration

	SlippageBps              int
	PriorityFeeMicroLamports uint64

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	TelegramBotToken string
	TelegramChatID   string
	EnableTelegram   bool
}

// fileConfig is the subset of settings that may be overridden from CONFIG_FILE.
type fileConfig struct {
	RPCURL       string   `yaml:"rpc_url"`
	Jupiter      []string `yaml:"jupiter_base_urls"`
	JupiterPrice string   `yaml:"jupiter_price_url"`
	Raydium      struct {
		SwapHost string `yaml:"swap_host"`
		APIHost  string `yaml:"api_host"`
	} `yaml:"raydium"`
	PumpAPIURLs   []string `yaml:"pump_api_urls"`
	PumpPortalURL string   `yaml:"pumpportal_url"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// Load reads .env (when present), the process environment and an optional
// YAML file named by CONFIG_FILE, in that order of precedence (file last).
func Load() (*Config, error) {
	// A missing .env is normal in deployed environments.
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	var errs []error

	decimals, err := strconv.ParseUint(getEnv("TOKEN_DECIMALS", "6"), 10, 8)
	if err != nil {
		errs = append(errs, fmt.Errorf("TOKEN_DECIMALS: %w", err))
	}
	tokenPrice, err := decimal.NewFromString(getEnv("TOKEN_PRICE_SOL", "0.0001"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TOKEN_PRICE_SOL: %w", err))
	}

	env := strings.ToLower(getEnv("APP_ENV", getEnv("NODE_ENV", "development")))

	cfg := &Config{
		Port:       getEnv("PORT", "3001"),
		Production: env == "production",
		Debug:      getEnvBool("DEBUG", false),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),

		SolanaRpcURL: getEnv("RPC_URL", getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DBSSL:        getEnvBool("DB_SSL", false),
		RedisURL:     getEnv("REDIS_URL", ""),

		SessionBackend:  strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionTTL:      parseEnvDuration("SESSION_TTL", 24*time.Hour),
		ServerMasterKey: getEnv("SERVER_MASTER_KEY", ""),

		JupiterAPIKey:   getEnv("JUPITER_API_KEY", ""),
		JupiterBaseURLs: getEnvList("JUP_BASE", []string{"https://quote-api.jup.ag/v6", "https://lite-api.jup.ag/swap/v1"}),
		JupiterPriceURL: getEnv("JUP_PRICE_URL", "https://lite-api.jup.ag/price/v2"),
		RaydiumSwapHost: getEnv("RAYDIUM_SWAP_HOST", "https://transaction-v1.raydium.io"),
		RaydiumAPIHost:  getEnv("RAYDIUM_API_HOST", "https://api-v3.raydium.io"),
		PumpAPIURLs: getEnvList("PUMP_API_URLS", []string{
			"https://frontend-api.pump.fun/api/v2/tokens",
			"https://pump.fun/api/v2/tokens",
			"https://pump.fun/v1/tokens",
		}),
		PumpPortalURL: getEnv("PUMPPORTAL_URL", "https://pumpportal.fun/api"),
		CoinGeckoURL:  getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"),

		TokenMint:        getEnv("TOKEN_MINT", ""),
		TokenName:        getEnv("TOKEN_NAME", "VEIL"),
		TokenDecimals:    uint8(decimals),
		TokenPriceSol:    tokenPrice,
		FallbackPriceSol: getEnvFloat("FALLBACK_PRICE_SOL", 0.00001, &errs),
		FallbackPriceUsd: getEnvFloat("FALLBACK_PRICE_USD", 0.002, &errs),
		MerchantPubkey:   getEnv("MERCHANT_PUBKEY", ""),
		TreasurySecret:   getEnv("TREASURY_SECRET", ""),

		DepositWallet:        getEnv("DEPOSIT_WALLET", ""),
		DepositInterval:      parseEnvDuration("DEPOSIT_INTERVAL", 15*time.Second),
		EnableDepositMonitor: getEnvBool("ENABLE_DEPOSIT_MONITOR", false),
		StatusInterval:       parseEnvDuration("STATUS_INTERVAL", 6*time.Hour),

		SlippageBps:              getEnvInt("SLIPPAGE_BPS", 50, &errs),
		PriorityFeeMicroLamports: getEnvUint("PRIORITY_FEE_MICROLAMPORTS", 100000, &errs),

		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 10, &errs),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20, &errs),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		EnableTelegram:   getEnvBool("ENABLE_TELEGRAM", false),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.RPCURL != "" {
		c.SolanaRpcURL = fc.RPCURL
	}
	if len(fc.Jupiter) > 0 {
		c.JupiterBaseURLs = fc.Jupiter
	}
	if fc.JupiterPrice != "" {
		c.JupiterPriceURL = fc.JupiterPrice
	}
	if fc.Raydium.SwapHost != "" {
		c.RaydiumSwapHost = fc.Raydium.SwapHost
	}
	if fc.Raydium.APIHost != "" {
		c.RaydiumAPIHost = fc.Raydium.APIHost
	}
	if len(fc.PumpAPIURLs) > 0 {
		c.PumpAPIURLs = fc.PumpAPIURLs
	}
	if fc.PumpPortalURL != "" {
		c.PumpPortalURL = fc.PumpPortalURL
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	switch c.SessionBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	for name, value := range map[string]string{
		"TOKEN_MINT":      c.TokenMint,
		"MERCHANT_PUBKEY": c.MerchantPubkey,
		"DEPOSIT_WALLET":  c.DepositWallet,
	} {
		if value == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.EnableDepositMonitor && c.DepositWallet == "" {
		errs = append(errs, errors.New("DEPOSIT_WALLET is required when ENABLE_DEPOSIT_MONITOR=true"))
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("SLIPPAGE_BPS out of range: %d", c.SlippageBps))
	}

	return errors.Join(errs...)
}

// PostgresDSN returns DATABASE_URL with sslmode applied from DB_SSL when the
// URL does not already choose one.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL == "" || strings.Contains(c.DatabaseURL, "sslmode=") {
		return c.DatabaseURL
	}
	mode := "disable"
	if c.DBSSL {
		mode = "require"
	}
	sep := "?"
	if strings.Contains(c.DatabaseURL, "?") {
		sep = "&"
	}
	return c.DatabaseURL + sep + "sslmode=" + mode
}

// Helper functions for working with environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvUint(key string, defaultValue uint64, errs *[]error) uint64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: must be a non-negative integer: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.TrimRight(part, "/"))
		}
	}
	return out
}

func parseEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
