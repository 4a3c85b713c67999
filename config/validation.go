package config

import (
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateBot(&c.Bot)...)
	errors = append(errors, validatePoller(&c.Poller)...)
	errors = append(errors, validateFreshness(&c.Freshness)...)
	errors = append(errors, validateUI(&c.UI)...)
	errors = append(errors, validateWatchdog(&c.Watchdog)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateBot(b *BotConfig) []ValidationError {
	var errors []ValidationError

	if b.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "bot.base_url",
			Message: "must not be empty",
		})
	}

	if b.Timeout < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "bot.timeout",
			Message: "must be at least 1 second",
		})
	}

	if b.UseWebSocket && b.WebSocketPath == "" {
		errors = append(errors, ValidationError{
			Field:   "bot.websocket_path",
			Message: "must not be empty when websocket mode is enabled",
		})
	}

	return errors
}

func validatePoller(p *PollerConfig) []ValidationError {
	var errors []ValidationError

	if p.StatusInterval < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "poller.status_interval",
			Message: "must be at least 1 second",
		})
	}

	if p.StatusInterval > 10*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "poller.status_interval",
			Message: "must be at most 10 minutes",
		})
	}

	if p.BadgeInterval < 100*time.Millisecond {
		errors = append(errors, ValidationError{
			Field:   "poller.badge_interval",
			Message: "must be at least 100ms",
		})
	}

	return errors
}

func validateFreshness(f *FreshnessConfig) []ValidationError {
	var errors []ValidationError

	if f.StaleAfter < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "freshness.stale_after",
			Message: "must be at least 1 second",
		})
	}

	if f.DeadAfter <= f.StaleAfter {
		errors = append(errors, ValidationError{
			Field:   "freshness.dead_after",
			Message: "must be greater than stale_after",
		})
	}

	return errors
}

func validateUI(u *UIConfig) []ValidationError {
	var errors []ValidationError

	if u.MaxTableRows < 1 {
		errors = append(errors, ValidationError{
			Field:   "ui.max_table_rows",
			Message: "must be at least 1",
		})
	}

	if u.QuestionWidth < 8 {
		errors = append(errors, ValidationError{
			Field:   "ui.question_width",
			Message: "must be at least 8",
		})
	}

	if u.Timezone != "" {
		if _, err := time.LoadLocation(u.Timezone); err != nil {
			errors = append(errors, ValidationError{
				Field:   "ui.timezone",
				Message: "unknown IANA timezone",
			})
		}
	}

	return errors
}

func validateWatchdog(w *WatchdogConfig) []ValidationError {
	var errors []ValidationError

	if w.AlertCooldown < 0 {
		errors = append(errors, ValidationError{
			Field:   "watchdog.alert_cooldown",
			Message: "must be non-negative",
		})
	}

	if w.MaxFailures < 1 {
		errors = append(errors, ValidationError{
			Field:   "watchdog.max_failures",
			Message: "must be at least 1",
		})
	}

	return errors
}
