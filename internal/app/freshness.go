package app

import (
	"fmt"
	"time"

	"polydash/config"
)

// FreshnessState describes how current the bot's price feed is.
type FreshnessState int

const (
	// FreshnessNoData means no price update has ever been observed.
	FreshnessNoData FreshnessState = iota
	// FreshnessFeedDown means the bot reported its price thread dead.
	FreshnessFeedDown
	// FreshnessFresh means the last update is younger than the stale threshold.
	FreshnessFresh
	// FreshnessStale means the last update is between the stale and dead thresholds.
	FreshnessStale
	// FreshnessDead means the last update is older than the dead threshold.
	FreshnessDead
)

func (s FreshnessState) String() string {
	switch s {
	case FreshnessNoData:
		return "no_data"
	case FreshnessFeedDown:
		return "feed_down"
	case FreshnessFresh:
		return "fresh"
	case FreshnessStale:
		return "stale"
	case FreshnessDead:
		return "dead"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// FreshnessClassifier turns a last-update timestamp and a thread-alive flag
// into a badge state. Thresholds come from config and do not change at
// runtime.
type FreshnessClassifier struct {
	staleAfter time.Duration
	deadAfter  time.Duration
}

func NewFreshnessClassifier(cfg *config.Config) *FreshnessClassifier {
	return &FreshnessClassifier{
		staleAfter: cfg.Freshness.StaleAfter,
		deadAfter:  cfg.Freshness.DeadAfter,
	}
}

// Classify maps the price feed inputs to a badge state.
// A dead thread wins over any timestamp-derived state except NoData.
func (fc *FreshnessClassifier) Classify(lastUpdate time.Time, threadAlive bool, now time.Time) FreshnessState {
	if lastUpdate.IsZero() {
		return FreshnessNoData
	}
	if !threadAlive {
		return FreshnessFeedDown
	}

	age := now.Sub(lastUpdate)
	switch {
	case age < fc.staleAfter:
		return FreshnessFresh
	case age < fc.deadAfter:
		return FreshnessStale
	default:
		return FreshnessDead
	}
}
