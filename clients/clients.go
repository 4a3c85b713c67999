package clients

import (
	"polydash/clients/botapi"
	"polydash/clients/botevents"
	"polydash/clients/discord"
	"polydash/clients/notifier"
	"polydash/clients/telegram"
	"polydash/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord   *discord.DiscordClient
	Telegram  *telegram.TelegramClient
	Notifier  notifier.Notifier // Combined notifier for all channels
	Bot       *botapi.BotApiClient
	BotEvents *botevents.BotEventsClient
}

func NewClients(logger *zap.Logger, cfg *config.Config) (*Clients, error) {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Combined notifier over the channels that can actually deliver;
	// untokened clients stay out so a zero count means "no notifier".
	var targets []notifier.Notifier
	if discordClient.Enabled() {
		targets = append(targets, discordClient)
	}
	if telegramClient.Enabled() {
		targets = append(targets, telegramClient)
	}
	multiNotifier := notifier.NewMultiNotifier(targets...)

	c := &Clients{
		Logger:   logger,
		Discord:  discordClient,
		Telegram: telegramClient,
		Notifier: multiNotifier,
		Bot:      botapi.NewBotApiClient(logger, cfg),
	}

	// Only create the snapshot stream client if configured to use it
	if cfg.Bot.UseWebSocket {
		events, err := botevents.NewBotEventsClient(logger, cfg)
		if err != nil {
			return nil, err
		}
		c.BotEvents = events
	}

	return c, nil
}

// Close shuts down every client that holds resources.
func (c *Clients) Close() error {
	var lastErr error
	if c.BotEvents != nil {
		if err := c.BotEvents.Close(); err != nil {
			lastErr = err
		}
	}
	if c.Notifier != nil {
		if err := c.Notifier.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
