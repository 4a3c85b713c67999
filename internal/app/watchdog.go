package app

import (
	"sync"
	"time"

	"polydash/clients/botapi"
	"polydash/clients/notifier"
	"polydash/config"

	"go.uber.org/zap"
)

// Watchdog observes applied snapshots and fetch failures and raises
// notifier alerts on state transitions: the bot stopping or starting,
// the price feed dying or recovering, and the status endpoint becoming
// unreachable. Each reason has a cooldown so a flapping condition does
// not spam the channels.
type Watchdog struct {
	logger    *zap.Logger
	notifier  notifier.Notifier
	clock     func() time.Time
	freshness *FreshnessClassifier

	cooldown    time.Duration
	maxFailures int
	enabled     bool

	mu sync.Mutex

	// Last observed states, nil until first observation
	lastBotRunning *bool
	lastFeedDead   *bool

	consecutiveFailures int
	unreachableAlerted  bool

	lastAlertAt map[notifier.AlertReason]time.Time
}

func NewWatchdog(logger *zap.Logger, n notifier.Notifier, cfg *config.Config) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}

	enabled := cfg.Watchdog.Enabled && n != nil
	if mn, ok := n.(*notifier.MultiNotifier); ok && mn.Count() == 0 {
		enabled = false
	}

	return &Watchdog{
		logger:      logger,
		notifier:    n,
		clock:       time.Now,
		freshness:   NewFreshnessClassifier(cfg),
		cooldown:    cfg.Watchdog.AlertCooldown,
		maxFailures: cfg.Watchdog.MaxFailures,
		enabled:     enabled,
		lastAlertAt: make(map[notifier.AlertReason]time.Time),
	}
}

// Enabled reports whether the watchdog will send alerts.
func (w *Watchdog) Enabled() bool {
	return w.enabled
}

// ObserveSnapshot processes one applied snapshot.
func (w *Watchdog) ObserveSnapshot(snap *botapi.StatusSnapshot) {
	if !w.enabled || snap == nil {
		return
	}

	now := w.clock()

	w.mu.Lock()
	defer w.mu.Unlock()

	// A successful fetch clears the unreachable condition
	if w.unreachableAlerted {
		w.unreachableAlerted = false
		w.consecutiveFailures = 0
		w.sendLocked(notifier.AlertReasonStatusRecovered, snap, now)
	} else {
		w.consecutiveFailures = 0
	}

	running := snap.BotStatus == "running"
	if w.lastBotRunning != nil && *w.lastBotRunning != running {
		reason := notifier.AlertReasonBotStopped
		if running {
			reason = notifier.AlertReasonBotStarted
		}
		w.sendLocked(reason, snap, now)
	}
	w.lastBotRunning = &running

	state := w.freshness.Classify(snap.LastPriceUpdateTime(), snap.PriceFeedAlive(), now)
	feedDead := state == FreshnessDead || state == FreshnessFeedDown
	if w.lastFeedDead != nil && *w.lastFeedDead != feedDead {
		reason := notifier.AlertReasonPriceFeedRecovered
		if feedDead {
			reason = notifier.AlertReasonPriceFeedDown
		}
		w.sendLocked(reason, snap, now)
	}
	w.lastFeedDead = &feedDead
}

// ObserveFetchError processes one failed status fetch.
func (w *Watchdog) ObserveFetchError(err error) {
	if !w.enabled || err == nil {
		return
	}

	now := w.clock()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.consecutiveFailures++
	if w.consecutiveFailures < w.maxFailures || w.unreachableAlerted {
		return
	}

	w.unreachableAlerted = true
	alert := notifier.StatusAlert{
		Reason:              notifier.AlertReasonStatusUnreachable,
		BotStatus:           "unknown",
		ConsecutiveFailures: w.consecutiveFailures,
		LastError:           err.Error(),
		Timestamp:           now,
	}
	w.dispatchLocked(alert, now)
}

func (w *Watchdog) sendLocked(reason notifier.AlertReason, snap *botapi.StatusSnapshot, now time.Time) {
	alert := notifier.StatusAlert{
		Reason:          reason,
		BotStatus:       snap.BotStatus,
		CapitalTotal:    snap.CapitalTotal,
		PnL:             snap.PnL,
		ROI:             snap.ROI,
		OpenCount:       len(snap.OpenPositions),
		PriceFeedAlive:  snap.PriceFeedAlive(),
		LastPriceUpdate: snap.LastPriceUpdateTime(),
		Timestamp:       now,
	}
	if !alert.LastPriceUpdate.IsZero() {
		alert.PriceAge = now.Sub(alert.LastPriceUpdate)
	}
	w.dispatchLocked(alert, now)
}

func (w *Watchdog) dispatchLocked(alert notifier.StatusAlert, now time.Time) {
	if last, ok := w.lastAlertAt[alert.Reason]; ok && now.Sub(last) < w.cooldown {
		w.logger.Debug("alert suppressed by cooldown",
			zap.String("reason", string(alert.Reason)),
		)
		return
	}
	w.lastAlertAt[alert.Reason] = now

	w.logger.Info("sending status alert",
		zap.String("reason", string(alert.Reason)),
		zap.String("botStatus", alert.BotStatus),
	)
	w.notifier.SendStatusAlert(alert)
}
