package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `json:"is_prod"`

	// Bot backend API
	Bot BotConfig `json:"bot"`

	// Status polling cadence
	Poller PollerConfig `json:"poller"`

	// Price-freshness thresholds
	Freshness FreshnessConfig `json:"freshness"`

	// Terminal UI
	UI UIConfig `json:"ui"`

	// Discord alerts
	Discord DiscordConfig `json:"discord"`

	// Telegram alerts
	Telegram TelegramConfig `json:"telegram"`

	// Bot-health watchdog
	Watchdog WatchdogConfig `json:"watchdog"`

	// Logging
	Logging LoggingConfig `json:"logging"`
}

// BotConfig holds the bot backend API configuration.
type BotConfig struct {
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
	UseWebSocket  bool          `json:"use_websocket"`  // If false, use polling mode (default)
	WebSocketPath string        `json:"websocket_path"` // Path of the snapshot push channel
}

// PollerConfig holds the two refresh cadences.
type PollerConfig struct {
	StatusInterval time.Duration `json:"status_interval"` // Full snapshot poll
	BadgeInterval  time.Duration `json:"badge_interval"`  // Local price-badge tick
}

// FreshnessConfig holds the price-badge age thresholds.
type FreshnessConfig struct {
	StaleAfter time.Duration `json:"stale_after"` // Fresh below this
	DeadAfter  time.Duration `json:"dead_after"`  // Dead at or above this
}

// UIConfig holds terminal UI configuration.
type UIConfig struct {
	Enabled       bool   `json:"enabled"`
	MaxTableRows  int    `json:"max_table_rows"`
	QuestionWidth int    `json:"question_width"` // Truncation width for free text
	Timezone      string `json:"timezone"`       // IANA name; empty = local
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `json:"-"` // Excluded - env var only
	ProdChannelID string `json:"prod_channel_id"`
	BetaChannelID string `json:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `json:"-"` // Excluded - env var only
	ProdChatID string `json:"prod_chat_id"`
	BetaChatID string `json:"beta_chat_id"`
}

// WatchdogConfig holds bot-health alerting configuration.
type WatchdogConfig struct {
	Enabled       bool          `json:"enabled"`
	AlertCooldown time.Duration `json:"alert_cooldown"` // Minimum gap between repeat alerts per reason
	MaxFailures   int           `json:"max_failures"`   // Consecutive fetch failures before alerting
}

// LoggingConfig holds log output configuration. The TUI owns the terminal,
// so logs go to a file.
type LoggingConfig struct {
	FilePath string `json:"file_path"`
	Level    string `json:"level"`
}

// Clone creates a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ToJSON serializes the config to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ConfigFromJSON deserializes JSON into a config, merging with base.
func ConfigFromJSON(data []byte, base *Config) (*Config, error) {
	if base == nil {
		base = Defaults()
	}
	cfg := base.Clone()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd: false,
		Bot: BotConfig{
			BaseURL:       "http://127.0.0.1:5000",
			Timeout:       10 * time.Second,
			UseWebSocket:  false,
			WebSocketPath: "/ws",
		},
		Poller: PollerConfig{
			StatusInterval: 5 * time.Second,
			BadgeInterval:  1 * time.Second,
		},
		Freshness: FreshnessConfig{
			StaleAfter: 60 * time.Second,
			DeadAfter:  120 * time.Second,
		},
		UI: UIConfig{
			Enabled:       true,
			MaxTableRows:  20,
			QuestionWidth: 48,
		},
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
		Watchdog: WatchdogConfig{
			Enabled:       true,
			AlertCooldown: 5 * time.Minute,
			MaxFailures:   3,
		},
		Logging: LoggingConfig{
			FilePath: "polydash.log",
			Level:    "info",
		},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Bot: BotConfig{
			BaseURL:       envString("BOT_API_URL", "http://127.0.0.1:5000"),
			Timeout:       envDuration("BOT_API_TIMEOUT", 10*time.Second),
			UseWebSocket:  envBoolDefault("USE_WEBSOCKET", false),
			WebSocketPath: envString("BOT_WS_PATH", "/ws"),
		},

		Poller: PollerConfig{
			StatusInterval: envDuration("STATUS_POLL_INTERVAL", 5*time.Second),
			BadgeInterval:  envDuration("BADGE_TICK_INTERVAL", 1*time.Second),
		},

		Freshness: FreshnessConfig{
			StaleAfter: envDuration("PRICE_STALE_AFTER", 60*time.Second),
			DeadAfter:  envDuration("PRICE_DEAD_AFTER", 120*time.Second),
		},

		UI: UIConfig{
			Enabled:       envBoolDefault("UI_ENABLED", true),
			MaxTableRows:  envInt("UI_MAX_TABLE_ROWS", 20),
			QuestionWidth: envInt("UI_QUESTION_WIDTH", 48),
			Timezone:      envString("UI_TIMEZONE", ""),
		},

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},

		Watchdog: WatchdogConfig{
			Enabled:       envBoolDefault("WATCHDOG_ENABLED", true),
			AlertCooldown: envDuration("WATCHDOG_ALERT_COOLDOWN", 5*time.Minute),
			MaxFailures:   envInt("WATCHDOG_MAX_FAILURES", 3),
		},

		Logging: LoggingConfig{
			FilePath: envString("LOG_FILE", "polydash.log"),
			Level:    envString("LOG_LEVEL", "info"),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
