package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"natalia_bot/internal/analytics"
	"natalia_bot/internal/config"
	"natalia_bot/internal/domain"
	"natalia_bot/internal/feature/activity"
	"natalia_bot/internal/feature/admin"
	"natalia_bot/internal/feature/user"
	"natalia_bot/internal/health"
	"natalia_bot/internal/logging"
	"natalia_bot/internal/moderation"
	"natalia_bot/internal/room"
	"natalia_bot/internal/store"
	"natalia_bot/internal/telegram"
	"natalia_bot/internal/templates"
)

const (
	mongoConnectTimeout     = 10 * time.Second
	mongoIndexTimeout       = 5 * time.Second
	mongoDisconnectTimeout  = 5 * time.Second
	softLogTimeout          = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger, err := logging.Setup(cfg, runID)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	botFile, err := config.LoadBotFile(cfg.BotConfigPath)
	if err != nil {
		logger.WithError(err).Error("bot config error")
		fmt.Fprintf(os.Stderr, "bot config error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only", "rooms": len(botFile.Rooms)})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	registry, err := room.NewRegistry(botFile.Rooms)
	if err != nil {
		logger.WithError(err).Error("room registry error")
		fmt.Fprintf(os.Stderr, "room registry error: %v\n", err)
		os.Exit(1)
	}
	policy, err := moderation.NewPolicy(botFile.ShillPattern, botFile.CounterShill, botFile.ForwardURLs)
	if err != nil {
		logger.WithError(err).Error("moderation policy error")
		fmt.Fprintf(os.Stderr, "moderation policy error: %v\n", err)
		os.Exit(1)
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"mongo_db": cfg.MongoDB,
		"rooms":    registry.Len(),
		"admins":   len(botFile.Admins),
	}).Info("configuration loaded")

	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	mongoManager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		logger.WithError(err).Error("mongo connection error")
		fmt.Fprintf(os.Stderr, "mongo connection error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "mongo_connect").Info("connected to mongo")

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	if err := mongoManager.EnsureBaseIndexes(indexCtx); err != nil {
		cancelIndexes()
		logger.WithError(err).Error("mongo index setup error")
		fmt.Fprintf(os.Stderr, "mongo index setup error: %v\n", err)
		os.Exit(1)
	}
	cancelIndexes()

	logger.WithField("event", "mongo_indexes").Info("ensured base mongo indexes")

	recorder := activity.NewRecorder(activity.Sinks{
		TextMessages: mongoManager.TextMessages(),
		Stickers:     mongoManager.Stickers(),
		Gifs:         mongoManager.Gifs(),
		RoomJoins:    mongoManager.RoomJoins(),
		Requests:     mongoManager.Requests(),
		SoftLog:      mongoManager.SoftLog(),
	}, runID, logger)
	softLog(recorder, logger, "Natalia started")

	priceURL := botFile.PriceFeed.URL
	if priceURL == "" {
		priceURL = config.DefaultPriceFeedURL
	}

	handler, err := telegram.NewHandler(telegram.Deps{
		BotUsername:    botFile.Bot.Username,
		Rooms:          registry,
		Templates:      templates.NewStore(botFile.Messages.Templates),
		Policy:         policy,
		Guard:          admin.NewGuard(botFile.Admins, cfg.BotOwnerID, logger),
		Users:          user.NewRegistrar(mongoManager.Users(), logger),
		Recorder:       recorder,
		Stats:          store.NewStatsProvider(mongoManager.Collections()),
		Names:          domain.NewUserRepository(mongoManager.Users()),
		Prices:         analytics.NewPriceFeed(priceURL, nil),
		Media:          botFile.Media,
		AdminDirectory: botFile.Messages.Admins,
		Stopwords:      botFile.Stopwords,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("handler setup error")
		fmt.Fprintf(os.Stderr, "handler setup error: %v\n", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg, handler, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, mongoManager, registry, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	softLog(recorder, logger, "Natalia stopped")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	if err := mongoManager.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("mongo disconnect error")
	} else {
		logger.WithField("event", "mongo_disconnect").Info("mongo client disconnected")
	}
	cancelShutdown()

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

// softLog stores a lifecycle notice. Failures are logged and never stop the
// bot.
func softLog(recorder *activity.Recorder, logger *logrus.Entry, comment string) {
	ctx, cancel := context.WithTimeout(context.Background(), softLogTimeout)
	defer cancel()

	if err := recorder.SoftLog(ctx, comment); err != nil {
		logger.WithField("event", "softlog_error").WithError(err).Warn("failed to write softlog")
	}
}
