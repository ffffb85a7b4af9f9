package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/alert"
	"github.com/kjannette/gold-monitor-backend/internal/api"
	"github.com/kjannette/gold-monitor-backend/internal/config"
	"github.com/kjannette/gold-monitor-backend/internal/external"
	"github.com/kjannette/gold-monitor-backend/internal/logging"
	"github.com/kjannette/gold-monitor-backend/internal/market"
	"github.com/kjannette/gold-monitor-backend/internal/metrics"
	"github.com/kjannette/gold-monitor-backend/internal/models"
	"github.com/kjannette/gold-monitor-backend/internal/notifications"
	"github.com/kjannette/gold-monitor-backend/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║      Gold Price Monitor v1.0         ║
║                                      ║
╚══════════════════════════════════════╝
`

type quoteProvider interface {
	Name() string
	URL() string
}

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		Filename: cfg.LogFile,
	})

	if err := cfg.Validate(log); err != nil {
		log.Fatal(err)
	}
	cfg.Print(log)

	m := metrics.New()

	// Upstream quotes (nil fetcher = demo mode)
	var fetcher market.QuoteFetcher
	switch {
	case cfg.GoldAPIURL == "":
	case cfg.GoldAPIProvider == config.ProviderCoinGecko:
		fetcher = external.NewCoinGeckoClient(cfg.GoldAPIURL, cfg.UpstreamTimeout())
	default:
		fetcher = external.NewMetalsClient(cfg.GoldAPIURL, cfg.UpstreamTimeout())
	}
	if p, ok := fetcher.(quoteProvider); ok {
		log.WithFields(logrus.Fields{"provider": p.Name(), "url": p.URL()}).Info("Upstream quotes enabled")
	} else {
		log.Info("No upstream configured, serving demo quotes")
	}
	sampler := market.NewSampler(fetcher,
		market.WithSamplerLogger(logging.Component(log, "sampler")),
		market.WithSampleHook(m.ObservePrice),
	)
	series := market.NewGenerator(market.WithConsistentOHLC(cfg.SeriesConsistentOHLC))
	live := market.NewLiveGenerator(cfg.ServerTag, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Scheduler + alerts
	var sched *scheduler.PriceScheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.NewPriceScheduler(sampler, scheduler.Config{
			Interval:     cfg.PriceUpdateInterval(),
			ForceEnabled: cfg.SchedulerForceEnabled,
			OnTick:       m.ScheduledSample,
		}, logging.Component(log, "scheduler"))

		startAlerts(ctx, cfg, sched, m, log)

		if err := sched.Start(); err != nil {
			log.WithError(err).Fatal("scheduler start failed")
		}
	} else {
		log.Info("Scheduler disabled")
	}

	// 2. API server
	opts := api.Options{
		Port:            cfg.Port,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
		UpstreamURL:     cfg.GoldAPIURL,
	}
	var refresher api.Refresher
	if sched != nil {
		refresher = sched
	}
	srv := api.NewServer(opts, api.NewAssembler(sampler, series, live), sampler, refresher, m,
		logging.Component(log, "api"))
	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal("API server error")
		}
	}()

	log.Info("All services started successfully")

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API shutdown error")
	}
	log.Info("Shutdown complete")
}

// startAlerts subscribes an alert watcher to scheduled observations when
// any threshold is configured.
func startAlerts(ctx context.Context, cfg *config.Config, sched *scheduler.PriceScheduler, m *metrics.Metrics, log *logrus.Logger) {
	limits := alert.Limits{
		ChangePercent: cfg.AlertChangePercent,
		Above:         cfg.AlertPriceAbove,
		Below:         cfg.AlertPriceBelow,
	}
	if !limits.Enabled() {
		log.Info("Price alerts disabled (no thresholds configured)")
		return
	}

	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName,
		notifications.WithLogger(logging.Component(log, "notifier")))
	watcher := alert.NewWatcher(limits, notify, logging.Component(log, "alert"), m.AlertFired)

	ch := make(chan models.PriceObservation, 16)
	sub := sched.Subscribe(ch)
	go func() {
		defer sub.Unsubscribe()
		watcher.Run(ctx, ch)
	}()
}
