package discord

import (
	"fmt"
	"polydash/clients/notifier"
	"polydash/config"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends bot-health alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// Enabled reports whether this client can actually deliver alerts.
func (dc *DiscordClient) Enabled() bool {
	return dc.session != nil && dc.channelID != ""
}

// SendMessage sends a plain text message.
func (dc *DiscordClient) SendMessage(message string) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping message")
		return
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, message)
	if err != nil {
		dc.logger.Error("failed to send discord message", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord message")
}

// SendStatusAlert sends a rich embedded bot-health alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendStatusAlert(alert notifier.StatusAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildStatusEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord status alert",
		zap.String("reason", string(alert.Reason)),
		zap.String("botStatus", alert.BotStatus),
	)
}

func (dc *DiscordClient) buildStatusEmbed(alert notifier.StatusAlert) *discordgo.MessageEmbed {
	title, color := alertTitle(alert.Reason)

	fields := []*discordgo.MessageEmbedField{
		{Name: "Bot Status", Value: valueOrDash(alert.BotStatus), Inline: true},
		{Name: "Capital", Value: fmt.Sprintf("$%.2f", alert.CapitalTotal), Inline: true},
		{Name: "P&L", Value: formatSignedMoney(alert.PnL), Inline: true},
		{Name: "Open Positions", Value: fmt.Sprintf("%d", alert.OpenCount), Inline: true},
	}

	switch alert.Reason {
	case notifier.AlertReasonPriceFeedDown, notifier.AlertReasonPriceFeedRecovered:
		lastUpdate := "never"
		if !alert.LastPriceUpdate.IsZero() {
			lastUpdate = alert.LastPriceUpdate.Format(time.RFC3339)
		}
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Last Price Update", Value: lastUpdate, Inline: true},
			&discordgo.MessageEmbedField{Name: "Price Age", Value: alert.PriceAge.Round(time.Second).String(), Inline: true},
		)
	case notifier.AlertReasonStatusUnreachable:
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Consecutive Failures", Value: fmt.Sprintf("%d", alert.ConsecutiveFailures), Inline: true},
			&discordgo.MessageEmbedField{Name: "Last Error", Value: valueOrDash(alert.LastError), Inline: false},
		)
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &discordgo.MessageEmbed{
		Title:     title,
		Color:     color,
		Fields:    fields,
		Timestamp: ts.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "polydash",
		},
	}
}

func alertTitle(reason notifier.AlertReason) (string, int) {
	switch reason {
	case notifier.AlertReasonBotStarted:
		return "▶️ Bot Started", 0x2ECC71
	case notifier.AlertReasonBotStopped:
		return "⏹️ Bot Stopped", 0xE67E22
	case notifier.AlertReasonPriceFeedDown:
		return "🚨 Price Feed Down", 0xE74C3C
	case notifier.AlertReasonPriceFeedRecovered:
		return "✅ Price Feed Recovered", 0x2ECC71
	case notifier.AlertReasonStatusUnreachable:
		return "🚨 Bot API Unreachable", 0xE74C3C
	case notifier.AlertReasonStatusRecovered:
		return "✅ Bot API Recovered", 0x2ECC71
	default:
		return "ℹ️ Bot Status", 0x3498DB
	}
}

func formatSignedMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func valueOrDash(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
