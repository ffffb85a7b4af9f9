package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/config"
	"github.com/kjannette/gold-monitor-backend/internal/httputil"
	"github.com/kjannette/gold-monitor-backend/internal/logging"
	"github.com/kjannette/gold-monitor-backend/internal/models"
	"github.com/kjannette/gold-monitor-backend/internal/stream"
)

// watch subscribes to the broker price topic and logs every update.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	feedURL := flag.String("url", cfg.FeedURL, "STOMP-over-WebSocket endpoint")
	topic := flag.String("topic", cfg.FeedTopic, "price topic")
	apiURL := flag.String("api", "", "service base URL to seed the current price from (optional)")
	refresh := flag.Bool("refresh", false, "with -api, trigger a fresh sample instead of reading the current one")
	maxAttempts := flag.Int("max-attempts", cfg.FeedReconnectMaxAttempts, "give up after this many failed connects (0 = never)")
	flag.Parse()

	log := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		Filename: cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := stream.NewStore(stream.DefaultHistorySize)
	store.OnStateChange(func(s stream.State, err error) {
		entry := log.WithField("state", s)
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("Feed state changed")
	})
	store.OnUpdate(func(o models.PriceObservation) {
		fields := logrus.Fields{"price": store.FormattedPrice(), "source": store.DataSource()}
		if pc, ok := store.PriceChange(); ok {
			fields["change"] = fmt.Sprintf("%+.2f (%+.2f%%)", pc.Value, pc.Percent)
		}
		log.WithFields(fields).Info("Gold price update")
	})

	if *apiURL != "" {
		seedCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		client := stream.NewAPIClient(*apiURL)
		if *refresh {
			err = stream.SeedFresh(seedCtx, client, store)
		} else {
			err = stream.Seed(seedCtx, client, store)
		}
		if err != nil {
			log.WithError(err).Warn("Could not seed current price")
		}
		cancel()
	}

	sess := stream.NewSession(stream.SessionConfig{
		URL:       *feedURL,
		Topic:     *topic,
		Heartbeat: cfg.FeedHeartbeat(),
		Reconnect: httputil.RetryConfig{
			MaxAttempts: *maxAttempts,
			BaseDelay:   5 * time.Second,
			MaxDelay:    time.Minute,
		},
	}, stream.WebsocketDialer{}, store, logging.Component(log, "feed"))

	if err := sess.Run(ctx); err != nil {
		if errors.Is(err, stream.ErrGaveUp) {
			log.WithError(err).Error("Price feed unavailable")
			os.Exit(1)
		}
		log.WithError(err).Fatal("Price feed failed")
	}
	log.WithField("received", len(store.History())).Info("Watcher stopped")
}
