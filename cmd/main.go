package main

import (
	"context"
	"flagwatch/backend/internal/alerthub"
	"flagwatch/backend/internal/analysis"
	"flagwatch/backend/internal/api/handler"
	"flagwatch/backend/internal/app"
	"flagwatch/backend/internal/commands"
	"flagwatch/backend/internal/config"
	"flagwatch/backend/internal/discord"
	"flagwatch/backend/internal/localization"
	"flagwatch/backend/internal/logging"
	"flagwatch/backend/internal/metrics"
	"flagwatch/backend/internal/notify"
	"flagwatch/backend/internal/pipeline"
	"flagwatch/backend/internal/rules"
	"flagwatch/backend/internal/scanner"
	"flagwatch/backend/internal/telegram"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logging.New("info", "text")
	logger.Info("Starting flagwatch...")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("flagwatch stopped with an error")
	}
	logger.Info("flagwatch stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is not set")
	}
	metrics.Init(logger)

	// 1. Stores
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	ruleStore, err := rules.NewStore(cfg.RulesFile, logger)
	if err != nil {
		return err
	}
	classifier := analysis.NewClassifier(ruleStore, stores.Blacklist, analysis.BlacklistMode(cfg.BlacklistMode), logger)

	// 2. Alerts
	feed := alerthub.NewHub(logger)
	go feed.Run(ctx)

	dispatcher := buildDispatcher(ctx, cfg, stores, feed, logger)
	defer dispatcher.Wait()

	var bot *telegram.BotService
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBotService(cfg.TelegramToken, cfg.TelegramAlertChatID, stores.Cases, stores.Watchlist, logger)
		if err != nil {
			return err
		}
		if cfg.TelegramAlertChatID != 0 {
			dispatcher.AddSink(telegram.NewAlertSink(bot.API, cfg.TelegramAlertChatID, notify.ChannelHigh, notify.ChannelWatchlist))
		}
	}

	// 3. Pipeline. Joined before dispatcher.Wait and stores.Close run.
	pipe := pipeline.NewService(classifier, stores.Cases, stores.Watchlist, stores.Ignored, dispatcher, stores.Messages, cfg.PipelineWorkers, logger)
	pipeCtx, stopPipe := context.WithCancel(context.Background())
	pipeDone := make(chan struct{})
	go func() {
		defer close(pipeDone)
		pipe.Run(pipeCtx)
	}()
	defer func() {
		stopPipe()
		<-pipeDone
	}()

	// 4. Discord
	client, err := discord.NewClient(cfg.DiscordToken, logger)
	if err != nil {
		return err
	}
	scan := scanner.New(client, scanner.Options{
		Workers:         cfg.Scan.Workers,
		Threshold:       cfg.Scan.Threshold,
		Timeout:         cfg.Scan.Timeout,
		ProbesPerSecond: cfg.Scan.ProbesPerSecond,
	}, logger)
	scans := scanner.NewManager(scan, logger)

	text, err := localization.NewLocalizer()
	if err != nil {
		return err
	}
	router := commands.NewRouter(commands.Deps{
		Cases:       stores.Cases,
		Watchlist:   stores.Watchlist,
		Blacklist:   stores.Blacklist,
		Ignored:     stores.Ignored,
		Suggestions: stores.Suggestions,
		Logs:        stores.Messages,
		Scans:       scans,
		Mutual:      scan,
		Names:       client,
		Replier:     client,
		Text:        text,
	}, cfg, logger)

	gateway := discord.NewGateway(ctx, pipe, router, client, logger)
	gateway.Attach(client)
	if err := client.Open(); err != nil {
		return err
	}
	// Closed before the pipeline is joined so no new messages arrive while it drains.
	defer client.Close()

	if bot != nil {
		go bot.Run(ctx)
	}

	// 5. Operator API
	h := handler.NewHandler(cfg.JWTSecret, config.TokenTTL, logger)
	h.Classifier = classifier
	h.Rules = ruleStore
	h.Cases = stores.Cases
	h.Watchlist = stores.Watchlist
	h.Blacklist = stores.Blacklist
	h.Ignored = stores.Ignored
	h.Scans = scans
	h.Feed = feed

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("Operator API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		return errors.Wrap(err, "operator api")
	}

	if job, ok := scans.Current(); ok {
		_ = scans.Cancel(job.ID())
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildDispatcher routes each tier to its webhook. With Redis every alert is also published,
// and the live feed follows the published topics; without it the feed is an in-process sink.
func buildDispatcher(ctx context.Context, cfg *config.Config, stores *app.Stores, feed *alerthub.Hub, logger *logrus.Logger) *notify.Dispatcher {
	routes := map[notify.Channel]notify.Sink{}
	hooks := map[notify.Channel]string{
		notify.ChannelLow:       cfg.Webhooks.Low,
		notify.ChannelMedium:    cfg.Webhooks.Medium,
		notify.ChannelHigh:      cfg.Webhooks.High,
		notify.ChannelWatchlist: cfg.Webhooks.Watchlist,
	}
	for ch, url := range hooks {
		if sink := notify.NewWebhookSink(string(ch), url, cfg.WebhookTimeout, logger); sink != nil {
			routes[ch] = sink
		} else {
			logger.WithField("channel", ch).Warn("No webhook configured, alerts on this channel are dropped")
		}
	}
	d := notify.NewDispatcher(routes, cfg.WebhookTimeout, logger)

	if stores.Redis == nil {
		d.AddSink(feed)
		return d
	}
	d.AddSink(notify.NewRedisPublisher(stores.Redis, cfg.AlertChannelPrefix))
	if err := feed.StartRedisListener(ctx, stores.Redis, cfg.AlertChannelPrefix); err != nil {
		logger.WithError(err).Warn("Alert feed falls back to in-process delivery")
		d.AddSink(feed)
	}
	return d
}
