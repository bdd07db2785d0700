package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Chain     ChainConfig       `mapstructure:"chain"`
	Wallet    WalletConfig      `mapstructure:"wallet"`
	Relay     RelayConfig       `mapstructure:"relay"`
	Clob      ClobConfig        `mapstructure:"clob"`
	Transport TransportConfig   `mapstructure:"transport"`
	RateLimit []RateLimitBucket `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	// Inbound per-key protection, distinct from upstream admission control
	InboundQPS   float64 `mapstructure:"inbound_qps"`
	InboundBurst int     `mapstructure:"inbound_burst"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr             string `mapstructure:"addr"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	WalletTTLSeconds int    `mapstructure:"wallet_ttl_seconds"`
}

type ChainConfig struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
}

type WalletConfig struct {
	// Master BIP-39 mnemonic every per-user signer is derived from.
	// e.g. SAFEGATE_WALLET_MNEMONIC
	Mnemonic string `mapstructure:"mnemonic"`
}

type RelayConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	PollIntervalMs  int    `mapstructure:"poll_interval_ms"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	TransientRetries int   `mapstructure:"transient_retries"`
}

type ClobConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// L2 API credentials attached to authenticated CLOB requests
	ApiKey        string `mapstructure:"api_key"`
	ApiSecret     string `mapstructure:"api_secret"`
	ApiPassphrase string `mapstructure:"api_passphrase"`
	WSURL         string `mapstructure:"ws_url"`
}

type TransportConfig struct {
	ProxyURL       string `mapstructure:"proxy_url"` // http:// or socks5://
	MaxRedirects   int    `mapstructure:"max_redirects"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RateLimitBucket is one row of the declarative rate-limit table.
type RateLimitBucket struct {
	Name     string `mapstructure:"name"`
	Max      int    `mapstructure:"max"`
	WindowMs int    `mapstructure:"window_ms"`
	Burst    int    `mapstructure:"burst"`
}

func (b RateLimitBucket) Window() time.Duration {
	return time.Duration(b.WindowMs) * time.Millisecond
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. SAFEGATE_WALLET_MNEMONIC
	viper.SetEnvPrefix("safegate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.inbound_qps", 10)
	viper.SetDefault("auth.inbound_burst", 20)
	viper.SetDefault("chain.rpc_url", "https://polygon-rpc.com")
	viper.SetDefault("chain.chain_id", 137)
	viper.SetDefault("relay.base_url", "https://relayer-v2.polymarket.com")
	viper.SetDefault("relay.poll_interval_ms", 2000)
	viper.SetDefault("relay.timeout_seconds", 60)
	viper.SetDefault("relay.transient_retries", 3)
	viper.SetDefault("clob.base_url", "https://clob.polymarket.com")
	viper.SetDefault("clob.ws_url", "wss://ws-subscriptions-clob.polymarket.com/ws/user")
	viper.SetDefault("transport.max_redirects", 5)
	viper.SetDefault("transport.timeout_seconds", 10)
	viper.SetDefault("redis.wallet_ttl_seconds", 300)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.RateLimit) == 0 {
		cfg.RateLimit = DefaultRateLimits()
	}

	return &cfg, nil
}

// DefaultRateLimits mirrors the upstream exchange's published burst and
// sustained ceilings for order placement and cancellation.
func DefaultRateLimits() []RateLimitBucket {
	return []RateLimitBucket{
		{Name: "order_submit_burst", Max: 30, WindowMs: 10_000},
		{Name: "order_submit", Max: 1500, WindowMs: 600_000},
		{Name: "order_cancel_burst", Max: 60, WindowMs: 10_000},
		{Name: "order_cancel", Max: 3000, WindowMs: 600_000},
	}
}
