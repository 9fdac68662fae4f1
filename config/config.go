package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Bitget credentials
	BitgetAPIKey     string
	BitgetAPISecret  string
	BitgetPassphrase string

	// Instrument
	Symbol    string
	Timeframe string
	Leverage  int

	// Strategy parameters
	EMAFast    int
	EMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int

	// Risk parameters
	RiskPerTrade    float64 // fraction of equity risked between entry and stop
	StopMult        float64
	TP1Mult         float64
	TP2Mult         float64
	MaxTradesPerDay int
	MaxPositions    int

	// Live loop
	PollInterval time.Duration
	CandleSource string // "rest" or "ws"

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MetricsAddr   string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
}

// Load reads configuration from environment variables with sensible defaults.
// Exchange credentials are required; everything else has a default.
func Load() *Config {
	cfg := &Config{
		BitgetAPIKey:     mustEnv("BITGET_API_KEY"),
		BitgetAPISecret:  mustEnv("BITGET_API_SECRET"),
		BitgetPassphrase: mustEnv("BITGET_PASSPHRASE"),

		Symbol:    getEnv("SYMBOL", "BTCUSDT"),
		Timeframe: getEnv("TIMEFRAME", "15m"),
		Leverage:  getEnvInt("LEVERAGE", 1),

		EMAFast:    getEnvInt("EMA_FAST", 9),
		EMASlow:    getEnvInt("EMA_SLOW", 21),
		MACDFast:   getEnvInt("MACD_FAST", 12),
		MACDSlow:   getEnvInt("MACD_SLOW", 26),
		MACDSignal: getEnvInt("MACD_SIGNAL", 9),
		ATRPeriod:  getEnvInt("ATR_PERIOD", 14),

		RiskPerTrade:    getEnvFloat("RISK_PER_TRADE", 0.5),
		StopMult:        getEnvFloat("STOP_MULT", 2),
		TP1Mult:         getEnvFloat("TP1_MULT", 3),
		TP2Mult:         getEnvFloat("TP2_MULT", 5),
		MaxTradesPerDay: getEnvInt("MAX_TRADES_PER_DAY", 6),
		MaxPositions:    getEnvInt("MAX_POSITIONS", 2),

		PollInterval: getEnvDuration("POLL_INTERVAL", 30*time.Second),
		CandleSource: getEnv("CANDLE_SOURCE", "rest"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

// Validate checks strategy and risk parameters for internally consistent
// values. A misconfigured period is fatal at startup, never at trade time.
func (c *Config) Validate() error {
	switch {
	case c.EMAFast <= 0 || c.EMASlow <= 0 || c.EMAFast >= c.EMASlow:
		return fmt.Errorf("EMA periods must satisfy 0 < fast < slow, got %d/%d", c.EMAFast, c.EMASlow)
	case c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 || c.MACDFast >= c.MACDSlow:
		return fmt.Errorf("MACD periods must satisfy 0 < fast < slow and signal > 0, got %d/%d/%d",
			c.MACDFast, c.MACDSlow, c.MACDSignal)
	case c.ATRPeriod <= 0:
		return fmt.Errorf("ATR_PERIOD must be positive, got %d", c.ATRPeriod)
	case c.RiskPerTrade <= 0:
		return fmt.Errorf("RISK_PER_TRADE must be positive, got %g", c.RiskPerTrade)
	case c.StopMult <= 0 || c.TP1Mult <= 0 || c.TP2Mult <= c.TP1Mult:
		return fmt.Errorf("multipliers must satisfy stop > 0 and 0 < tp1 < tp2, got stop=%g tp1=%g tp2=%g",
			c.StopMult, c.TP1Mult, c.TP2Mult)
	case c.MaxTradesPerDay <= 0 || c.MaxPositions <= 0:
		return fmt.Errorf("trade caps must be positive, got per-day=%d positions=%d",
			c.MaxTradesPerDay, c.MaxPositions)
	case c.Leverage < 1:
		return fmt.Errorf("LEVERAGE must be at least 1, got %d", c.Leverage)
	case c.CandleSource != "rest" && c.CandleSource != "ws":
		return fmt.Errorf("CANDLE_SOURCE must be rest or ws, got %q", c.CandleSource)
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid integer %q", key, v)
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("[config] %s: invalid number %q", key, v)
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("[config] %s: invalid duration %q", key, v)
	}
	return d
}
