package notifier

import (
	"time"
)

// AlertReason indicates why an alert was triggered.
type AlertReason string

const (
	AlertReasonBotStarted         AlertReason = "bot_started"
	AlertReasonBotStopped         AlertReason = "bot_stopped"
	AlertReasonPriceFeedDown      AlertReason = "price_feed_down"      // Price thread dead or feed stale past the dead threshold
	AlertReasonPriceFeedRecovered AlertReason = "price_feed_recovered" // Fresh prices again after a feed-down alert
	AlertReasonStatusUnreachable  AlertReason = "status_unreachable"   // Consecutive status fetch failures
	AlertReasonStatusRecovered    AlertReason = "status_recovered"     // Status endpoint responding again
)

// StatusAlert contains all the data needed for a bot-health alert.
type StatusAlert struct {
	Reason AlertReason

	// Bot state at the time of the alert
	BotStatus    string
	CapitalTotal float64
	PnL          float64
	ROI          float64
	OpenCount    int

	// Price feed info
	PriceFeedAlive  bool
	LastPriceUpdate time.Time
	PriceAge        time.Duration

	// Failure info for unreachable alerts
	ConsecutiveFailures int
	LastError           string

	Timestamp time.Time
}

// Notifier is the interface for sending bot-health alerts to various channels.
type Notifier interface {
	// SendStatusAlert sends a bot-health alert notification.
	SendStatusAlert(alert StatusAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendStatusAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendStatusAlert(alert StatusAlert) {
	for _, n := range m.notifiers {
		n.SendStatusAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
