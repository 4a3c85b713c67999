package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any env vars that might affect the test
	envVars := []string{
		"STAGE", "BOT_API_URL", "BOT_API_TIMEOUT", "USE_WEBSOCKET", "BOT_WS_PATH",
		"STATUS_POLL_INTERVAL", "BADGE_TICK_INTERVAL",
		"PRICE_STALE_AFTER", "PRICE_DEAD_AFTER",
		"UI_ENABLED", "UI_MAX_TABLE_ROWS", "UI_QUESTION_WIDTH", "UI_TIMEZONE",
		"DISCORD_BOT_TOKEN", "DISCORD_PROD_CHANNEL_ID", "DISCORD_BETA_CHANNEL_ID",
		"TELEGRAM_BOT_KEY", "TELEGRAM_PROD_CHAT_ID", "TELEGRAM_BETA_CHAT_ID",
		"WATCHDOG_ENABLED", "WATCHDOG_ALERT_COOLDOWN", "WATCHDOG_MAX_FAILURES",
		"LOG_FILE", "LOG_LEVEL",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.IsProd {
		t.Error("expected IsProd to be false by default")
	}

	if cfg.Bot.BaseURL != "http://127.0.0.1:5000" {
		t.Errorf("unexpected bot base URL: %s", cfg.Bot.BaseURL)
	}
	if cfg.Bot.Timeout != 10*time.Second {
		t.Errorf("unexpected bot timeout: %v", cfg.Bot.Timeout)
	}
	if cfg.Bot.UseWebSocket {
		t.Error("expected websocket mode to be off by default")
	}
	if cfg.Bot.WebSocketPath != "/ws" {
		t.Errorf("unexpected websocket path: %s", cfg.Bot.WebSocketPath)
	}

	if cfg.Poller.StatusInterval != 5*time.Second {
		t.Errorf("unexpected status interval: %v", cfg.Poller.StatusInterval)
	}
	if cfg.Poller.BadgeInterval != 1*time.Second {
		t.Errorf("unexpected badge interval: %v", cfg.Poller.BadgeInterval)
	}

	if cfg.Freshness.StaleAfter != 60*time.Second {
		t.Errorf("unexpected stale threshold: %v", cfg.Freshness.StaleAfter)
	}
	if cfg.Freshness.DeadAfter != 120*time.Second {
		t.Errorf("unexpected dead threshold: %v", cfg.Freshness.DeadAfter)
	}

	if !cfg.UI.Enabled {
		t.Error("expected UI to be enabled by default")
	}
	if cfg.UI.MaxTableRows != 20 {
		t.Errorf("unexpected max table rows: %d", cfg.UI.MaxTableRows)
	}
	if cfg.UI.QuestionWidth != 48 {
		t.Errorf("unexpected question width: %d", cfg.UI.QuestionWidth)
	}

	if cfg.Discord.BotToken != "" {
		t.Error("expected empty discord token by default")
	}
	if cfg.Telegram.BotToken != "" {
		t.Error("expected empty telegram token by default")
	}

	if !cfg.Watchdog.Enabled {
		t.Error("expected watchdog to be enabled by default")
	}
	if cfg.Watchdog.AlertCooldown != 5*time.Minute {
		t.Errorf("unexpected alert cooldown: %v", cfg.Watchdog.AlertCooldown)
	}
	if cfg.Watchdog.MaxFailures != 3 {
		t.Errorf("unexpected max failures: %d", cfg.Watchdog.MaxFailures)
	}

	if cfg.Logging.FilePath != "polydash.log" {
		t.Errorf("unexpected log file path: %s", cfg.Logging.FilePath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unexpected log level: %s", cfg.Logging.Level)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	os.Setenv("STAGE", "PROD")
	os.Setenv("BOT_API_URL", "http://bot.internal:8080")
	os.Setenv("BOT_API_TIMEOUT", "30s")
	os.Setenv("USE_WEBSOCKET", "true")
	os.Setenv("BOT_WS_PATH", "/events")
	os.Setenv("STATUS_POLL_INTERVAL", "10s")
	os.Setenv("BADGE_TICK_INTERVAL", "500ms")
	os.Setenv("PRICE_STALE_AFTER", "90s")
	os.Setenv("PRICE_DEAD_AFTER", "3m")
	os.Setenv("UI_MAX_TABLE_ROWS", "50")
	os.Setenv("UI_QUESTION_WIDTH", "64")
	os.Setenv("UI_TIMEZONE", "America/New_York")
	os.Setenv("DISCORD_BOT_TOKEN", "test-token")
	os.Setenv("TELEGRAM_BOT_KEY", "tg-token")
	os.Setenv("WATCHDOG_ALERT_COOLDOWN", "10m")
	os.Setenv("WATCHDOG_MAX_FAILURES", "5")
	os.Setenv("LOG_FILE", "custom.log")
	os.Setenv("LOG_LEVEL", "debug")

	defer func() {
		for _, v := range []string{
			"STAGE", "BOT_API_URL", "BOT_API_TIMEOUT", "USE_WEBSOCKET", "BOT_WS_PATH",
			"STATUS_POLL_INTERVAL", "BADGE_TICK_INTERVAL",
			"PRICE_STALE_AFTER", "PRICE_DEAD_AFTER",
			"UI_MAX_TABLE_ROWS", "UI_QUESTION_WIDTH", "UI_TIMEZONE",
			"DISCORD_BOT_TOKEN", "TELEGRAM_BOT_KEY",
			"WATCHDOG_ALERT_COOLDOWN", "WATCHDOG_MAX_FAILURES",
			"LOG_FILE", "LOG_LEVEL",
		} {
			os.Unsetenv(v)
		}
	}()

	cfg := Load()

	if !cfg.IsProd {
		t.Error("expected IsProd to be true")
	}
	if cfg.Bot.BaseURL != "http://bot.internal:8080" {
		t.Errorf("unexpected bot base URL: %s", cfg.Bot.BaseURL)
	}
	if cfg.Bot.Timeout != 30*time.Second {
		t.Errorf("unexpected bot timeout: %v", cfg.Bot.Timeout)
	}
	if !cfg.Bot.UseWebSocket {
		t.Error("expected websocket mode to be on")
	}
	if cfg.Bot.WebSocketPath != "/events" {
		t.Errorf("unexpected websocket path: %s", cfg.Bot.WebSocketPath)
	}
	if cfg.Poller.StatusInterval != 10*time.Second {
		t.Errorf("unexpected status interval: %v", cfg.Poller.StatusInterval)
	}
	if cfg.Poller.BadgeInterval != 500*time.Millisecond {
		t.Errorf("unexpected badge interval: %v", cfg.Poller.BadgeInterval)
	}
	if cfg.Freshness.StaleAfter != 90*time.Second {
		t.Errorf("unexpected stale threshold: %v", cfg.Freshness.StaleAfter)
	}
	if cfg.Freshness.DeadAfter != 3*time.Minute {
		t.Errorf("unexpected dead threshold: %v", cfg.Freshness.DeadAfter)
	}
	if cfg.UI.MaxTableRows != 50 {
		t.Errorf("unexpected max table rows: %d", cfg.UI.MaxTableRows)
	}
	if cfg.UI.QuestionWidth != 64 {
		t.Errorf("unexpected question width: %d", cfg.UI.QuestionWidth)
	}
	if cfg.UI.Timezone != "America/New_York" {
		t.Errorf("unexpected timezone: %s", cfg.UI.Timezone)
	}
	if cfg.Discord.BotToken != "test-token" {
		t.Errorf("unexpected discord token: %s", cfg.Discord.BotToken)
	}
	if cfg.Telegram.BotToken != "tg-token" {
		t.Errorf("unexpected telegram token: %s", cfg.Telegram.BotToken)
	}
	if cfg.Watchdog.AlertCooldown != 10*time.Minute {
		t.Errorf("unexpected alert cooldown: %v", cfg.Watchdog.AlertCooldown)
	}
	if cfg.Watchdog.MaxFailures != 5 {
		t.Errorf("unexpected max failures: %d", cfg.Watchdog.MaxFailures)
	}
	if cfg.Logging.FilePath != "custom.log" {
		t.Errorf("unexpected log file path: %s", cfg.Logging.FilePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %s", cfg.Logging.Level)
	}
}

func TestEnvString(t *testing.T) {
	os.Setenv("TEST_STRING", "hello")
	defer os.Unsetenv("TEST_STRING")

	if v := envString("TEST_STRING", "default"); v != "hello" {
		t.Errorf("expected 'hello', got '%s'", v)
	}
	if v := envString("NONEXISTENT", "default"); v != "default" {
		t.Errorf("expected 'default', got '%s'", v)
	}

	// Test whitespace trimming
	os.Setenv("TEST_WHITESPACE", "  trimmed  ")
	defer os.Unsetenv("TEST_WHITESPACE")
	if v := envString("TEST_WHITESPACE", "default"); v != "trimmed" {
		t.Errorf("expected 'trimmed', got '%s'", v)
	}
}

func TestEnvInt(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")

	if v := envInt("TEST_INT", 0); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if v := envInt("NONEXISTENT", 100); v != 100 {
		t.Errorf("expected 100, got %d", v)
	}

	// Test invalid int
	os.Setenv("TEST_INVALID_INT", "not-a-number")
	defer os.Unsetenv("TEST_INVALID_INT")
	if v := envInt("TEST_INVALID_INT", 50); v != 50 {
		t.Errorf("expected 50 for invalid int, got %d", v)
	}
}

func TestEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "5m30s")
	defer os.Unsetenv("TEST_DURATION")

	expected := 5*time.Minute + 30*time.Second
	if v := envDuration("TEST_DURATION", 0); v != expected {
		t.Errorf("expected %v, got %v", expected, v)
	}
	if v := envDuration("NONEXISTENT", 10*time.Second); v != 10*time.Second {
		t.Errorf("expected 10s, got %v", v)
	}

	// Test invalid duration
	os.Setenv("TEST_INVALID_DURATION", "not-a-duration")
	defer os.Unsetenv("TEST_INVALID_DURATION")
	if v := envDuration("TEST_INVALID_DURATION", 1*time.Minute); v != 1*time.Minute {
		t.Errorf("expected 1m for invalid duration, got %v", v)
	}
}

func TestEnvBool(t *testing.T) {
	os.Setenv("TEST_BOOL_TRUE", "PROD")
	os.Setenv("TEST_BOOL_FALSE", "DEV")
	os.Setenv("TEST_BOOL_CASE", "prod")
	defer func() {
		os.Unsetenv("TEST_BOOL_TRUE")
		os.Unsetenv("TEST_BOOL_FALSE")
		os.Unsetenv("TEST_BOOL_CASE")
	}()

	if !envBool("TEST_BOOL_TRUE", "PROD") {
		t.Error("expected true for PROD")
	}
	if envBool("TEST_BOOL_FALSE", "PROD") {
		t.Error("expected false for DEV")
	}
	// Test case insensitivity
	if !envBool("TEST_BOOL_CASE", "PROD") {
		t.Error("expected true for case-insensitive match")
	}
	if envBool("NONEXISTENT", "PROD") {
		t.Error("expected false for nonexistent")
	}
}

func TestEnvBoolDefault(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "unset uses default true", value: "", def: true, expected: true},
		{name: "unset uses default false", value: "", def: false, expected: false},
		{name: "true", value: "true", def: false, expected: true},
		{name: "one", value: "1", def: false, expected: true},
		{name: "yes", value: "yes", def: false, expected: true},
		{name: "false overrides default", value: "false", def: true, expected: false},
		{name: "garbage is false", value: "banana", def: true, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("TEST_BOOL_DEFAULT")
			if tt.value != "" {
				os.Setenv("TEST_BOOL_DEFAULT", tt.value)
				defer os.Unsetenv("TEST_BOOL_DEFAULT")
			}
			if v := envBoolDefault("TEST_BOOL_DEFAULT", tt.def); v != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, v)
			}
		})
	}
}

func TestConfig_Clone(t *testing.T) {
	original := Defaults()
	original.Bot.BaseURL = "http://original:5000"

	clone := original.Clone()
	clone.Bot.BaseURL = "http://changed:5000"
	clone.Poller.StatusInterval = 99 * time.Second

	if original.Bot.BaseURL != "http://original:5000" {
		t.Error("clone mutation leaked into original")
	}
	if original.Poller.StatusInterval != 5*time.Second {
		t.Error("clone mutation leaked into original poller")
	}
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Bot.BaseURL = "http://bot:9999"
	cfg.Poller.StatusInterval = 7 * time.Second
	cfg.Discord.BotToken = "secret-token"

	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	// Tokens must never be serialized
	if strings.Contains(string(data), "secret-token") {
		t.Error("discord token leaked into JSON")
	}

	restored, err := ConfigFromJSON(data, Defaults())
	if err != nil {
		t.Fatalf("ConfigFromJSON failed: %v", err)
	}
	if restored.Bot.BaseURL != "http://bot:9999" {
		t.Errorf("unexpected base URL after round trip: %s", restored.Bot.BaseURL)
	}
	if restored.Poller.StatusInterval != 7*time.Second {
		t.Errorf("unexpected status interval after round trip: %v", restored.Poller.StatusInterval)
	}
}

func TestValidate_Defaults(t *testing.T) {
	result := Defaults().Validate()
	if !result.Valid {
		t.Errorf("expected default config to be valid, got errors: %v", result.Errors)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty base URL",
			mutate: func(c *Config) { c.Bot.BaseURL = "" },
			field:  "bot.base_url",
		},
		{
			name:   "timeout too short",
			mutate: func(c *Config) { c.Bot.Timeout = 100 * time.Millisecond },
			field:  "bot.timeout",
		},
		{
			name: "websocket without path",
			mutate: func(c *Config) {
				c.Bot.UseWebSocket = true
				c.Bot.WebSocketPath = ""
			},
			field: "bot.websocket_path",
		},
		{
			name:   "status interval too short",
			mutate: func(c *Config) { c.Poller.StatusInterval = 500 * time.Millisecond },
			field:  "poller.status_interval",
		},
		{
			name:   "status interval too long",
			mutate: func(c *Config) { c.Poller.StatusInterval = 11 * time.Minute },
			field:  "poller.status_interval",
		},
		{
			name:   "badge interval too short",
			mutate: func(c *Config) { c.Poller.BadgeInterval = 50 * time.Millisecond },
			field:  "poller.badge_interval",
		},
		{
			name:   "dead not above stale",
			mutate: func(c *Config) { c.Freshness.DeadAfter = c.Freshness.StaleAfter },
			field:  "freshness.dead_after",
		},
		{
			name:   "zero table rows",
			mutate: func(c *Config) { c.UI.MaxTableRows = 0 },
			field:  "ui.max_table_rows",
		},
		{
			name:   "question width too narrow",
			mutate: func(c *Config) { c.UI.QuestionWidth = 4 },
			field:  "ui.question_width",
		},
		{
			name:   "bad timezone",
			mutate: func(c *Config) { c.UI.Timezone = "Mars/Olympus_Mons" },
			field:  "ui.timezone",
		},
		{
			name:   "negative cooldown",
			mutate: func(c *Config) { c.Watchdog.AlertCooldown = -1 * time.Second },
			field:  "watchdog.alert_cooldown",
		},
		{
			name:   "zero max failures",
			mutate: func(c *Config) { c.Watchdog.MaxFailures = 0 },
			field:  "watchdog.max_failures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			result := cfg.Validate()
			if result.Valid {
				t.Fatal("expected validation to fail")
			}
			found := false
			for _, e := range result.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %s, got %v", tt.field, result.Errors)
			}
		})
	}
}

type testObserver struct {
	updates []*Config
}

func (o *testObserver) OnConfigUpdate(cfg *Config) {
	o.updates = append(o.updates, cfg)
}

func TestLiveConfig_GetReturnsCopy(t *testing.T) {
	lc := NewLiveConfig(Defaults())

	got := lc.Get()
	got.Bot.BaseURL = "http://mutated:5000"

	if lc.Get().Bot.BaseURL != "http://127.0.0.1:5000" {
		t.Error("mutation of Get() result leaked into live config")
	}
}

func TestLiveConfig_UpdateValidates(t *testing.T) {
	lc := NewLiveConfig(Defaults())

	bad := Defaults()
	bad.Bot.BaseURL = ""
	if err := lc.Update(bad); err == nil {
		t.Fatal("expected update with invalid config to fail")
	}

	// The stored config must be untouched
	if lc.Get().Bot.BaseURL != "http://127.0.0.1:5000" {
		t.Error("failed update modified stored config")
	}
}

func TestLiveConfig_UpdateNotifiesObservers(t *testing.T) {
	lc := NewLiveConfig(Defaults())
	obs := &testObserver{}
	lc.AddObserver(obs)

	updated := Defaults()
	updated.Poller.StatusInterval = 8 * time.Second
	if err := lc.Update(updated); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if len(obs.updates) != 1 {
		t.Fatalf("expected 1 observer notification, got %d", len(obs.updates))
	}
	if obs.updates[0].Poller.StatusInterval != 8*time.Second {
		t.Errorf("observer got wrong config: %v", obs.updates[0].Poller.StatusInterval)
	}

	lc.RemoveObserver(obs)
	if err := lc.Update(Defaults()); err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if len(obs.updates) != 1 {
		t.Error("removed observer was still notified")
	}
}

func TestLiveConfig_UpdatePartial(t *testing.T) {
	lc := NewLiveConfig(Defaults())

	err := lc.UpdatePartial(func(c *Config) {
		c.Poller.StatusInterval = 15 * time.Second
	})
	if err != nil {
		t.Fatalf("partial update failed: %v", err)
	}

	if lc.Get().Poller.StatusInterval != 15*time.Second {
		t.Errorf("unexpected status interval: %v", lc.Get().Poller.StatusInterval)
	}

	// Invalid partial updates must be rejected
	err = lc.UpdatePartial(func(c *Config) {
		c.Poller.StatusInterval = 0
	})
	if err == nil {
		t.Fatal("expected invalid partial update to fail")
	}
	if lc.Get().Poller.StatusInterval != 15*time.Second {
		t.Error("rejected update modified stored config")
	}
}

func TestSettingsStore_LoadMissingFile(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg != nil {
		t.Error("expected nil config for missing file")
	}
}

func TestSettingsStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewSettingsStore(path)

	cfg := Defaults()
	cfg.Poller.StatusInterval = 12 * time.Second
	if err := store.Save(cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if store.Version() != 1 {
		t.Errorf("expected version 1 after first save, got %d", store.Version())
	}

	if err := store.Save(cfg); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if store.Version() != 2 {
		t.Errorf("expected version 2 after second save, got %d", store.Version())
	}

	fresh := NewSettingsStore(path)
	loaded, err := fresh.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected config from load")
	}
	if loaded.Poller.StatusInterval != 12*time.Second {
		t.Errorf("unexpected status interval after load: %v", loaded.Poller.StatusInterval)
	}
	if fresh.Version() != 2 {
		t.Errorf("expected loaded version 2, got %d", fresh.Version())
	}
}

func TestSettingsStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewSettingsStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for corrupt settings file")
	}
}
