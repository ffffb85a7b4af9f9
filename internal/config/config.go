package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.yaml"

// Upstream quote providers.
const (
	ProviderMetals    = "metals"
	ProviderCoinGecko = "coingecko"

	DefaultMetalsURL    = "https://api.metals.live/v1/spot/gold"
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3/simple/price?ids=pax-gold&vs_currencies=usd&include_24hr_change=true"
)

type Config struct {
	// HTTP
	Port            int     `yaml:"port"`
	CORSAllowOrigin string  `yaml:"cors_allow_origin"`
	ServerTag       string  `yaml:"server_tag"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`

	// Upstream quote source (empty URL = demo mode, always fallback)
	GoldAPIProvider       string `yaml:"gold_api_provider"`
	GoldAPIURL            string `yaml:"gold_api_url"`
	GoldAPITimeoutSeconds int    `yaml:"gold_api_timeout_seconds"`

	// Synthetic series
	SeriesConsistentOHLC bool `yaml:"series_consistent_ohlc"`

	// Scheduler
	SchedulerEnabled           bool `yaml:"scheduler_enabled"`
	SchedulerForceEnabled      bool `yaml:"scheduler_force_enabled"`
	PriceUpdateIntervalSeconds int  `yaml:"price_update_interval_seconds"`

	// Alerts / notifications
	WebhookURL         string  `yaml:"webhook_url"`
	BotName            string  `yaml:"bot_name"`
	AlertChangePercent float64 `yaml:"alert_change_percent"`
	AlertPriceAbove    float64 `yaml:"alert_price_above"`
	AlertPriceBelow    float64 `yaml:"alert_price_below"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogOutput string `yaml:"log_output"`
	LogFile   string `yaml:"log_file"`

	// Broker feed (cmd/watch)
	FeedURL                  string `yaml:"feed_url"`
	FeedTopic                string `yaml:"feed_topic"`
	FeedHeartbeatMS          int    `yaml:"feed_heartbeat_ms"`
	FeedReconnectMaxAttempts int    `yaml:"feed_reconnect_max_attempts"`
}

func defaults() *Config {
	return &Config{
		Port:                       3001,
		CORSAllowOrigin:            "*",
		ServerTag:                  "gold-price-monitor",
		RateLimitRPS:               20,
		RateLimitBurst:             40,
		GoldAPIProvider:            ProviderMetals,
		GoldAPIURL:                 DefaultMetalsURL,
		GoldAPITimeoutSeconds:      5,
		SchedulerEnabled:           true,
		PriceUpdateIntervalSeconds: 30,
		BotName:                    "GoldPriceMonitor",
		LogLevel:                   "info",
		LogFormat:                  "text",
		LogOutput:                  "stdout",
		LogFile:                    "logs/gold-monitor.log",
		FeedURL:                    "ws://localhost:8080/ws/gold-price",
		FeedTopic:                  "/topic/gold-price",
		FeedHeartbeatMS:            4000,
	}
}

// Load reads .env, then an optional YAML file (CONFIG_PATH, default
// config.yaml), then applies environment variable overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := envStr("CONFIG_PATH", defaultConfigPath)
	if err := loadYAML(path, cfg); err != nil {
		return nil, err
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.CORSAllowOrigin = envStr("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)
	cfg.ServerTag = envStr("SERVER_TAG", cfg.ServerTag)
	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	cfg.GoldAPIProvider = strings.ToLower(envStr("GOLD_API_PROVIDER", cfg.GoldAPIProvider))
	if v, ok := os.LookupEnv("GOLD_API_URL"); ok {
		// an explicitly empty value switches to demo mode
		cfg.GoldAPIURL = v
	}
	if cfg.GoldAPIProvider == ProviderCoinGecko && cfg.GoldAPIURL == DefaultMetalsURL {
		cfg.GoldAPIURL = DefaultCoinGeckoURL
	}
	cfg.GoldAPITimeoutSeconds = envInt("GOLD_API_TIMEOUT_SECONDS", cfg.GoldAPITimeoutSeconds)

	cfg.SeriesConsistentOHLC = envBool("SERIES_CONSISTENT_OHLC", cfg.SeriesConsistentOHLC)

	cfg.SchedulerEnabled = envBool("SCHEDULER_ENABLED", cfg.SchedulerEnabled)
	cfg.SchedulerForceEnabled = envBool("SCHEDULER_FORCE_ENABLED", cfg.SchedulerForceEnabled)
	cfg.PriceUpdateIntervalSeconds = envInt("PRICE_UPDATE_INTERVAL_SECONDS", cfg.PriceUpdateIntervalSeconds)

	cfg.WebhookURL = envStr("WEBHOOK_URL", cfg.WebhookURL)
	cfg.BotName = envStr("BOT_NAME", cfg.BotName)
	cfg.AlertChangePercent = envFloat("ALERT_CHANGE_PERCENT", cfg.AlertChangePercent)
	cfg.AlertPriceAbove = envFloat("ALERT_PRICE_ABOVE", cfg.AlertPriceAbove)
	cfg.AlertPriceBelow = envFloat("ALERT_PRICE_BELOW", cfg.AlertPriceBelow)

	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envStr("LOG_FORMAT", cfg.LogFormat)
	cfg.LogOutput = envStr("LOG_OUTPUT", cfg.LogOutput)
	cfg.LogFile = envStr("LOG_FILE", cfg.LogFile)

	cfg.FeedURL = envStr("FEED_URL", cfg.FeedURL)
	cfg.FeedTopic = envStr("FEED_TOPIC", cfg.FeedTopic)
	cfg.FeedHeartbeatMS = envInt("FEED_HEARTBEAT_MS", cfg.FeedHeartbeatMS)
	cfg.FeedReconnectMaxAttempts = envInt("FEED_RECONNECT_MAX_ATTEMPTS", cfg.FeedReconnectMaxAttempts)

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate returns an error for unusable settings and logs warnings for
// settings that only degrade behaviour.
func (c *Config) Validate(log logrus.FieldLogger) error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.GoldAPIProvider != ProviderMetals && c.GoldAPIProvider != ProviderCoinGecko {
		errs = append(errs, fmt.Sprintf("GOLD_API_PROVIDER %q unknown (want %s or %s)", c.GoldAPIProvider, ProviderMetals, ProviderCoinGecko))
	}
	if c.GoldAPITimeoutSeconds <= 0 {
		errs = append(errs, "GOLD_API_TIMEOUT_SECONDS must be positive")
	}
	if c.PriceUpdateIntervalSeconds <= 0 {
		errs = append(errs, "PRICE_UPDATE_INTERVAL_SECONDS must be positive")
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, "RATE_LIMIT_RPS must not be negative")
	}
	if c.AlertPriceAbove > 0 && c.AlertPriceBelow > 0 && c.AlertPriceBelow >= c.AlertPriceAbove {
		errs = append(errs, "ALERT_PRICE_BELOW must be lower than ALERT_PRICE_ABOVE")
	}
	if c.GoldAPIURL != "" {
		if _, err := url.ParseRequestURI(c.GoldAPIURL); err != nil {
			errs = append(errs, fmt.Sprintf("GOLD_API_URL invalid: %v", err))
		}
	}

	if c.GoldAPIURL == "" {
		log.Warn("GOLD_API_URL not set, every quote will use fallback data (demo mode)")
	}
	if c.WebhookURL == "" {
		log.Warn("WEBHOOK_URL not set, price alerts are logged only")
	}
	if c.RateLimitRPS == 0 {
		log.Warn("RATE_LIMIT_RPS is 0, rate limiting disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"port":           c.Port,
		"corsOrigin":     c.CORSAllowOrigin,
		"provider":       c.GoldAPIProvider,
		"upstream":       boolLabel(c.GoldAPIURL != "", c.GoldAPIURL, "demo (fallback only)"),
		"timeout":        c.UpstreamTimeout().String(),
		"consistentOHLC": c.SeriesConsistentOHLC,
		"scheduler":      boolLabel(c.SchedulerEnabled, c.PriceUpdateInterval().String(), "disabled"),
		"forceEnabled":   c.SchedulerForceEnabled,
		"webhook":        boolLabel(c.WebhookURL != "", "configured", "not set"),
		"rateLimit":      c.RateLimitRPS,
	}).Info("gold price monitor configuration")
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.GoldAPITimeoutSeconds) * time.Second
}

func (c *Config) PriceUpdateInterval() time.Duration {
	return time.Duration(c.PriceUpdateIntervalSeconds) * time.Second
}

func (c *Config) FeedHeartbeat() time.Duration {
	return time.Duration(c.FeedHeartbeatMS) * time.Millisecond
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
