package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	clts "polydash/clients"
	"polydash/clients/botapi"
	"polydash/config"
	"polydash/internal/ui"
)

// ensure Runner reacts to config hot-reloads
var _ config.ConfigObserver = (*Runner)(nil)

const (
	savedFlashDuration = 2 * time.Second
	footerNoteDuration = 5 * time.Second
	streamStaleAfter   = 2 * time.Minute
	reconnectBackoff   = 5 * time.Second

	minPollInterval = time.Second
	maxPollInterval = 10 * time.Minute
)

// Runner wires the clients, the poll loop, the badge ticker and the
// watchdog to a View. It owns every goroutine; cancel the context
// passed to Run and everything stops.
type Runner struct {
	clients    *clts.Clients
	liveConfig *config.LiveConfig
	settings   *config.SettingsStore
	view       ui.View

	poller    *Poller
	watchdog  *Watchdog
	freshness *FreshnessClassifier

	startTime time.Time
	cancel    context.CancelFunc

	mu               sync.Mutex
	location         *time.Location
	questionWidth    int
	maxTableRows     int
	lastPriceUpdate  time.Time
	priceThreadAlive bool
	haveSnapshot     bool
	streaming        bool
	footerNote       string
	noteGen          int
}

func NewRunner(clients *clts.Clients, liveConfig *config.LiveConfig, settings *config.SettingsStore, view ui.View) *Runner {
	if view == nil {
		view = ui.NopView{}
	}
	return &Runner{
		clients:    clients,
		liveConfig: liveConfig,
		settings:   settings,
		view:       view,
		location:   time.UTC,
	}
}

// SetView swaps the render target. Call before Run; the dashboard needs
// the runner's action callbacks and the runner needs the dashboard, so
// one of them has to be bound late.
func (r *Runner) SetView(view ui.View) {
	if view != nil {
		r.view = view
	}
}

// OnConfigUpdate is called when the config changes.
// Implements config.ConfigObserver interface.
func (r *Runner) OnConfigUpdate(cfg *config.Config) {
	r.clients.Logger.Info("config update received",
		zap.Duration("statusInterval", cfg.Poller.StatusInterval),
		zap.String("timezone", cfg.UI.Timezone),
	)

	loc, err := time.LoadLocation(cfg.UI.Timezone)
	if err != nil {
		r.clients.Logger.Warn("invalid timezone, keeping previous", zap.Error(err))
		loc = nil
	}

	r.mu.Lock()
	if loc != nil {
		r.location = loc
	}
	r.questionWidth = cfg.UI.QuestionWidth
	r.maxTableRows = cfg.UI.MaxTableRows
	r.mu.Unlock()
}

func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()
	logger := r.clients.Logger
	cfg := r.liveConfig.Get()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.cancel = cancel

	loc, err := time.LoadLocation(cfg.UI.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", zap.Error(err))
		loc = time.UTC
	}
	r.mu.Lock()
	r.location = loc
	r.questionWidth = cfg.UI.QuestionWidth
	r.maxTableRows = cfg.UI.MaxTableRows
	r.mu.Unlock()

	r.freshness = NewFreshnessClassifier(cfg)
	r.watchdog = NewWatchdog(logger, r.clients.Notifier, cfg)
	r.poller = NewPoller(logger, r.clients.Bot, cfg, r.applySnapshot, r.handleFetchError)

	r.liveConfig.AddObserver(r)
	r.liveConfig.AddObserver(r.poller)
	defer r.liveConfig.RemoveObserver(r)
	defer r.liveConfig.RemoveObserver(r.poller)

	logger.Info("starting dashboard runner",
		zap.String("baseURL", cfg.Bot.BaseURL),
		zap.Duration("statusInterval", cfg.Poller.StatusInterval),
		zap.Bool("useWebSocket", cfg.Bot.UseWebSocket),
		zap.Bool("watchdog", r.watchdog.Enabled()),
	)

	// Snapshot stream, with the poll loop as both fallback and kick
	// target for control actions.
	if r.clients.BotEvents != nil {
		if err := r.clients.BotEvents.Connect(ctx); err != nil {
			logger.Warn("snapshot stream connect failed, polling instead", zap.Error(err))
		} else {
			r.setStreaming(true)
			r.poller.Pause()
			go r.runStreamPump(ctx)
			go r.runStreamReconnector(ctx)
			logger.Info("snapshot stream connected")
		}
	}

	go r.poller.Run(ctx)
	go r.runBadgeTicker(ctx, cfg.Poller.BadgeInterval)

	<-ctx.Done()
	logger.Info("runner shutting down")

	if r.clients.BotEvents != nil {
		_ = r.clients.BotEvents.Close()
	}
	return nil
}

// Quit stops the runner from a UI callback.
func (r *Runner) Quit() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Actions builds the control callbacks the dashboard fires on key
// presses.
func (r *Runner) Actions() ui.Actions {
	return ui.Actions{
		StartBot:           r.startBot,
		StopBot:            r.stopBot,
		SaveStopLoss:       r.saveStopLoss,
		AdjustPollInterval: r.adjustPollInterval,
		TogglePause:        r.togglePause,
		Quit:               r.Quit,
	}
}

// applySnapshot is the single funnel for fetched and streamed
// snapshots: feed the watchdog, cache the freshness inputs, repaint.
func (r *Runner) applySnapshot(snap *botapi.StatusSnapshot) {
	r.watchdog.ObserveSnapshot(snap)

	r.mu.Lock()
	r.lastPriceUpdate = snap.LastPriceUpdateTime()
	r.priceThreadAlive = snap.PriceFeedAlive()
	r.haveSnapshot = true
	r.mu.Unlock()

	now := time.Now()
	r.view.ApplyState(ui.BuildViewState(snap, now, r.renderOptions()))
	r.view.ApplyFreshness(r.freshnessView(now))
}

func (r *Runner) handleFetchError(err error) {
	r.watchdog.ObserveFetchError(err)
}

func (r *Runner) renderOptions() ui.RenderOptions {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode := "poll"
	if r.streaming {
		mode = "stream"
	} else if r.poller != nil && r.poller.Paused() {
		mode = "pausa"
	}
	return ui.RenderOptions{
		Location:      r.location,
		QuestionWidth: r.questionWidth,
		MaxTableRows:  r.maxTableRows,
		Mode:          mode,
		StartedAt:     r.startTime,
		FooterNote:    r.footerNote,
	}
}

func (r *Runner) freshnessView(now time.Time) ui.FreshnessView {
	r.mu.Lock()
	last := r.lastPriceUpdate
	alive := r.priceThreadAlive
	have := r.haveSnapshot
	r.mu.Unlock()

	if !have {
		return ui.FreshnessView{State: FreshnessNoData.String()}
	}
	state := r.freshness.Classify(last, alive, now)
	var age time.Duration
	if !last.IsZero() {
		age = now.Sub(last)
	}
	return ui.FreshnessView{State: state.String(), Age: age}
}

// runBadgeTicker repaints the price badge on its own cadence so the
// age label keeps counting between polls.
func (r *Runner) runBadgeTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.view.ApplyFreshness(r.freshnessView(now))
		}
	}
}

// runStreamPump applies pushed snapshots until the context ends.
func (r *Runner) runStreamPump(ctx context.Context) {
	logger := r.clients.Logger
	msgs := r.clients.BotEvents.Messages()
	errs := r.clients.BotEvents.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-msgs:
			var snap botapi.StatusSnapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				logger.Warn("malformed stream snapshot", zap.Error(err))
				continue
			}
			r.applySnapshot(&snap)
		case err := <-errs:
			logger.Warn("snapshot stream error", zap.Error(err))
		}
	}
}

// runStreamReconnector watches stream liveness and swaps back and
// forth between stream and poll mode.
func (r *Runner) runStreamReconnector(ctx context.Context) {
	logger := r.clients.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := r.clients.BotEvents.Stats()
			if stats.MessageCount > 0 && time.Since(stats.LastMessageAt) > streamStaleAfter {
				logger.Warn("snapshot stream stale, reconnecting",
					zap.Duration("sinceLastMessage", time.Since(stats.LastMessageAt)),
				)
				r.attemptReconnect(ctx)
			}
		}
	}
}

func (r *Runner) attemptReconnect(ctx context.Context) {
	logger := r.clients.Logger

	_ = r.clients.BotEvents.Close()
	r.setStreaming(false)
	r.poller.Resume()

	select {
	case <-ctx.Done():
		return
	case <-time.After(reconnectBackoff):
	}

	if err := r.clients.BotEvents.Connect(ctx); err != nil {
		logger.Error("stream reconnect failed, staying on polling", zap.Error(err))
		return
	}
	r.setStreaming(true)
	r.poller.Pause()
	logger.Info("snapshot stream reconnected")
}

func (r *Runner) setStreaming(on bool) {
	r.mu.Lock()
	r.streaming = on
	r.mu.Unlock()
}

// ---- control actions ----

func (r *Runner) startBot() {
	r.controlAction("start", r.clients.Bot.StartBot)
}

func (r *Runner) stopBot() {
	r.controlAction("stop", r.clients.Bot.StopBot)
}

func (r *Runner) controlAction(name string, call func(context.Context) error) {
	logger := r.clients.Logger
	cfg := r.liveConfig.Get()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bot.Timeout)
	defer cancel()

	if err := call(ctx); err != nil {
		logger.Error("control action failed", zap.String("action", name), zap.Error(err))
		r.setFooterNote(name + " falló")
	} else {
		logger.Info("control action sent", zap.String("action", name))
	}
	// Reflect the new state right away instead of waiting for the tick.
	r.poller.Kick()
}

func (r *Runner) saveStopLoss(ratio float64) {
	logger := r.clients.Logger
	cfg := r.liveConfig.Get()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Bot.Timeout)
	defer cancel()

	if err := r.clients.Bot.SetStopLoss(ctx, ratio); err != nil {
		logger.Error("stop-loss save failed", zap.Float64("ratio", ratio), zap.Error(err))
		r.setFooterNote("guardar falló")
		r.poller.Kick()
		return
	}

	logger.Info("stop-loss saved", zap.Float64("ratio", ratio))
	r.view.FlashSaved(savedFlashDuration)
	r.poller.Kick()
}

func (r *Runner) adjustPollInterval(delta time.Duration) {
	logger := r.clients.Logger

	err := r.liveConfig.UpdatePartial(func(c *config.Config) {
		next := c.Poller.StatusInterval + delta
		if next < minPollInterval {
			next = minPollInterval
		}
		if next > maxPollInterval {
			next = maxPollInterval
		}
		c.Poller.StatusInterval = next
	})
	if err != nil {
		logger.Error("poll interval update rejected", zap.Error(err))
		return
	}

	cfg := r.liveConfig.Get()
	logger.Info("poll interval adjusted", zap.Duration("interval", cfg.Poller.StatusInterval))
	if r.settings != nil {
		if err := r.settings.Save(cfg); err != nil {
			logger.Warn("failed to persist settings", zap.Error(err))
		}
	}
}

func (r *Runner) togglePause() {
	if r.poller.Paused() {
		r.poller.Resume()
		r.clients.Logger.Info("polling resumed")
	} else {
		r.poller.Pause()
		r.clients.Logger.Info("polling paused")
	}
}

// setFooterNote shows a transient error note; it rides along with the
// next rendered snapshot and clears itself.
func (r *Runner) setFooterNote(note string) {
	r.mu.Lock()
	r.footerNote = note
	r.noteGen++
	gen := r.noteGen
	r.mu.Unlock()

	time.AfterFunc(footerNoteDuration, func() {
		r.mu.Lock()
		if r.noteGen == gen {
			r.footerNote = ""
		}
		r.mu.Unlock()
	})
}
