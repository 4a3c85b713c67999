package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"polydash/clients/notifier"
	"polydash/config"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// TelegramClient sends bot-health alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	client   *http.Client

	// Overridable for tests
	apiURL string
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
			isProd: cfg.IsProd,
			apiURL: telegramAPIURL,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   telegramAPIURL,
	}
}

// Enabled reports whether this client can actually deliver alerts.
func (tc *TelegramClient) Enabled() bool {
	return tc.botToken != "" && tc.chatID != ""
}

// SendStatusAlert sends a bot-health alert notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendStatusAlert(alert notifier.StatusAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildAlertMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram status alert",
		zap.String("reason", string(alert.Reason)),
	)
}

func (tc *TelegramClient) buildAlertMessage(alert notifier.StatusAlert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(alertTitle(alert.Reason))))

	sb.WriteString(fmt.Sprintf("*Bot Status:* %s\n", escapeMarkdown(valueOrNA(alert.BotStatus))))
	sb.WriteString(fmt.Sprintf("*Capital:* $%.2f\n", alert.CapitalTotal))

	pnlSign := "+"
	if alert.PnL < 0 {
		pnlSign = ""
	}
	sb.WriteString(fmt.Sprintf("*P&L:* %s$%.2f (%s%.2f%%)\n", pnlSign, alert.PnL, pnlSign, alert.ROI))
	sb.WriteString(fmt.Sprintf("*Open Positions:* %d\n", alert.OpenCount))

	switch alert.Reason {
	case notifier.AlertReasonPriceFeedDown, notifier.AlertReasonPriceFeedRecovered:
		lastUpdate := "never"
		if !alert.LastPriceUpdate.IsZero() {
			lastUpdate = alert.LastPriceUpdate.Format(time.RFC3339)
		}
		sb.WriteString(fmt.Sprintf("*Last Price Update:* %s\n", escapeMarkdown(lastUpdate)))
		sb.WriteString(fmt.Sprintf("*Price Age:* %s\n", alert.PriceAge.Round(time.Second)))
	case notifier.AlertReasonStatusUnreachable:
		sb.WriteString(fmt.Sprintf("*Consecutive Failures:* %d\n", alert.ConsecutiveFailures))
		if alert.LastError != "" {
			sb.WriteString(fmt.Sprintf("*Last Error:* %s\n", escapeMarkdown(alert.LastError)))
		}
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n_polydash • %s_", ts.Format("1/2/2006, 3:04:05PM (MST)")))

	return sb.String()
}

func alertTitle(reason notifier.AlertReason) string {
	switch reason {
	case notifier.AlertReasonBotStarted:
		return "▶️ Bot Started"
	case notifier.AlertReasonBotStopped:
		return "⏹️ Bot Stopped"
	case notifier.AlertReasonPriceFeedDown:
		return "🚨 Price Feed Down"
	case notifier.AlertReasonPriceFeedRecovered:
		return "✅ Price Feed Recovered"
	case notifier.AlertReasonStatusUnreachable:
		return "🚨 Bot API Unreachable"
	case notifier.AlertReasonStatusRecovered:
		return "✅ Bot API Recovered"
	default:
		return "ℹ️ Bot Status"
	}
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf(tc.apiURL, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Close is a no-op; the HTTP client holds no persistent connection.
func (tc *TelegramClient) Close() error {
	return nil
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
