package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	clts "polydash/clients"
	"polydash/config"
	"polydash/internal/app"
	"polydash/internal/ui"
)

const defaultSettingsFile = "polydash-settings.json"

func main() {
	// Env first; a saved settings file overrides it below.
	envConfig := config.Load()

	// The TUI owns the terminal, so logs go to a file.
	logger := buildLogger(envConfig)
	defer logger.Sync()

	logger.Info("starting polydash", zap.Bool("isProd", envConfig.IsProd))

	liveConfig := config.NewLiveConfig(envConfig)

	settingsPath := os.Getenv("SETTINGS_FILE")
	if settingsPath == "" {
		settingsPath = defaultSettingsFile
	}
	store := config.NewSettingsStore(settingsPath)
	if saved, err := store.Load(); err != nil {
		logger.Warn("failed to load settings file, using env/defaults", zap.Error(err))
	} else if saved != nil {
		if err := liveConfig.Update(saved); err != nil {
			logger.Warn("saved settings invalid, using env/defaults", zap.Error(err))
		} else {
			logger.Info("settings loaded", zap.String("path", settingsPath))
		}
	}

	cfg := liveConfig.Get()

	logger.Info("instantiating clients")
	clients, err := clts.NewClients(logger, cfg)
	if err != nil {
		logger.Fatal("failed to build clients", zap.Error(err))
	}
	defer clients.Close()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(clients, liveConfig, store, nil)

	if !cfg.UI.Enabled {
		logger.Info("UI disabled, running headless")
		if err := runner.Run(ctx); err != nil {
			logger.Fatal("runner failed", zap.Error(err))
		}
		return
	}

	dash := ui.NewDashboard(runner.Actions())
	runner.SetView(dash)

	uiErr := make(chan error, 1)
	go func() {
		uiErr <- dash.Run()
	}()
	dash.WaitReady()

	runErr := make(chan error, 1)
	go func() {
		runErr <- runner.Run(ctx)
	}()

	select {
	case err := <-uiErr:
		if err != nil {
			logger.Error("UI stopped with error", zap.Error(err))
		}
		runner.Quit()
		<-runErr
	case err := <-runErr:
		dash.Stop()
		if err != nil {
			logger.Fatal("runner failed", zap.Error(err))
		}
	}
	logger.Info("polydash stopped")
}

func buildLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{cfg.Logging.FilePath}
	zc.ErrorOutputPaths = []string{cfg.Logging.FilePath}

	logger, err := zc.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
