// Package config loads the scalper configuration from environment variables.
// A local .env file is honoured when present so staging setups do not need
// exported shells.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration. It is loaded once at startup and
// treated as immutable afterwards.
type Config struct {
	// Trading parameters.
	Watchlist     []string      `envconfig:"WATCHLIST" default:"RELIANCE,TCS,INFY,HDFCBANK"`
	TradeNotional float64       `envconfig:"TRADE_NOTIONAL" default:"5000"`
	ProfitTarget  float64       `envconfig:"PROFIT_TARGET" default:"0.001"`
	StopLossPct   float64       `envconfig:"STOP_LOSS_PCT" default:"0.004"`
	PressureMin   float64       `envconfig:"PRESSURE_MIN" default:"0.005"`
	SpreadMax     float64       `envconfig:"SPREAD_MAX" default:"0.02"`
	LoopDelay     time.Duration `envconfig:"LOOP_DELAY" default:"1s"`
	MaxHold       time.Duration `envconfig:"MAX_HOLD" default:"60s"`
	MonitorPoll   time.Duration `envconfig:"MONITOR_POLL" default:"1s"`

	// Market data.
	FeedURL     string        `envconfig:"FEED_URL" default:"ws://localhost:8081/ws"`
	BarInterval time.Duration `envconfig:"BAR_INTERVAL" default:"1m"`
	Lookback    int           `envconfig:"LOOKBACK" default:"40"`
	QuoteMaxAge time.Duration `envconfig:"QUOTE_MAX_AGE" default:"10s"`

	// Broker. Mode "paper" fills against the local quote cache; "rest" talks
	// to the broker HTTP API and requires the credential fields.
	BrokerMode   string        `envconfig:"BROKER" default:"paper"`
	SlippageBps  float64       `envconfig:"SLIPPAGE_BPS" default:"2"`
	BrokerURL    string        `envconfig:"BROKER_URL"`
	APIKey       string        `envconfig:"BROKER_API_KEY"`
	ClientCode   string        `envconfig:"BROKER_CLIENT_CODE"`
	Password     string        `envconfig:"BROKER_PASSWORD"`
	TOTPSecret   string        `envconfig:"BROKER_TOTP_SECRET"`
	FillPoll     time.Duration `envconfig:"FILL_POLL" default:"200ms"`
	FillTimeout  time.Duration `envconfig:"FILL_TIMEOUT" default:"5s"`

	// Storage and status.
	SQLitePath string `envconfig:"SQLITE_PATH" default:"scalper.db"`
	RedisAddr  string `envconfig:"REDIS_ADDR"`

	// Observability.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9100"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`

	// Notifications. All optional.
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID string `envconfig:"TELEGRAM_CHAT_ID"`
	WebhookURL     string `envconfig:"WEBHOOK_URL"`

	// Session gating.
	MarketHoursEnabled bool `envconfig:"MARKET_HOURS_ENABLED" default:"false"`
}

// Load reads .env (if present) and the process environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; env vars alone are enough.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.BrokerMode = strings.ToLower(strings.TrimSpace(cfg.BrokerMode))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("config: WATCHLIST must not be empty")
	}
	if c.TradeNotional <= 0 {
		return fmt.Errorf("config: TRADE_NOTIONAL must be positive, got %v", c.TradeNotional)
	}
	if c.ProfitTarget <= 0 {
		return fmt.Errorf("config: PROFIT_TARGET must be positive, got %v", c.ProfitTarget)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("config: STOP_LOSS_PCT must be in (0,1), got %v", c.StopLossPct)
	}
	if c.LoopDelay <= 0 {
		return fmt.Errorf("config: LOOP_DELAY must be positive, got %v", c.LoopDelay)
	}
	if c.Lookback < 2 {
		return fmt.Errorf("config: LOOKBACK must be at least 2, got %d", c.Lookback)
	}
	switch c.BrokerMode {
	case "paper":
	case "rest":
		if c.BrokerURL == "" || c.APIKey == "" || c.ClientCode == "" || c.Password == "" || c.TOTPSecret == "" {
			return fmt.Errorf("config: BROKER=rest requires BROKER_URL, BROKER_API_KEY, BROKER_CLIENT_CODE, BROKER_PASSWORD and BROKER_TOTP_SECRET")
		}
	default:
		return fmt.Errorf("config: BROKER must be paper or rest, got %q", c.BrokerMode)
	}
	return nil
}
