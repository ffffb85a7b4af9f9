package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/market"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	OutcomeSampled = "sampled"
	OutcomeSkipped = "skipped"
	OutcomeManual  = "manual"

	tickTimeout = 30 * time.Second
)

type Sampler interface {
	Sample(ctx context.Context) models.PriceObservation
}

type Config struct {
	Interval     time.Duration // default 30s
	InitialDelay time.Duration // first sample after Start; default 5s
	ForceEnabled bool          // sample even when the market is closed
	Clock        market.Clock
	OnTick       func(outcome string)
}

// PriceScheduler samples on a fixed interval during market hours and
// fans every observation out to subscribers.
type PriceScheduler struct {
	sampler Sampler
	cfg     Config
	log     logrus.FieldLogger
	feed    event.FeedOf[models.PriceObservation]

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	initial *time.Timer
	latest  *models.PriceObservation

	// initialTick tracks the delayed first tick, which cron.Stop does not
	// wait for.
	initialTick sync.WaitGroup
}

func NewPriceScheduler(sampler Sampler, cfg Config, log logrus.FieldLogger) *PriceScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PriceScheduler{sampler: sampler, cfg: cfg, log: log}
}

// Subscribe delivers every published observation on ch. Publishing blocks
// until each subscriber has received, so ch must be drained.
func (s *PriceScheduler) Subscribe(ch chan<- models.PriceObservation) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *PriceScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("Price scheduler already running")
		return nil
	}

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			cron.Recover(cron.PrintfLogger(s.log)),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), s.tick); err != nil {
		return fmt.Errorf("register price job: %w", err)
	}
	c.Start()

	s.cron = c
	s.initialTick.Add(1)
	s.initial = time.AfterFunc(s.cfg.InitialDelay, func() {
		defer s.initialTick.Done()
		s.tick()
	})
	s.running = true

	s.log.WithFields(logrus.Fields{
		"interval":      s.cfg.Interval,
		"force_enabled": s.cfg.ForceEnabled,
	}).Info("Price scheduler started")
	return nil
}

// Stop halts the schedule and waits for any in-flight tick, including
// the initial one, to finish.
func (s *PriceScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	if s.initial.Stop() {
		s.initialTick.Done()
	}
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.initialTick.Wait()
	s.log.Info("Price scheduler stopped")
}

func (s *PriceScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *PriceScheduler) Interval() time.Duration { return s.cfg.Interval }

// Latest returns the last published observation, if any.
func (s *PriceScheduler) Latest() (models.PriceObservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return models.PriceObservation{}, false
	}
	return *s.latest, true
}

// FetchNow samples immediately, ignoring market hours, and publishes
// the observation like a scheduled tick.
func (s *PriceScheduler) FetchNow(ctx context.Context) models.PriceObservation {
	s.log.Info("Manual price update triggered")
	obs := s.sampler.Sample(ctx)
	s.publish(obs, OutcomeManual)
	return obs
}

func (s *PriceScheduler) tick() {
	if !s.cfg.ForceEnabled && !market.IsMarketOpen(s.cfg.Clock()) {
		s.log.Debug("Market closed, skipping price update")
		s.report(OutcomeSkipped)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	s.publish(s.sampler.Sample(ctx), OutcomeSampled)
}

func (s *PriceScheduler) publish(obs models.PriceObservation, outcome string) {
	s.mu.Lock()
	s.latest = &obs
	s.mu.Unlock()

	n := s.feed.Send(obs)
	s.report(outcome)
	s.log.WithFields(logrus.Fields{
		"price":          obs.Price,
		"change_percent": obs.ChangePercent,
		"source":         obs.Source,
		"subscribers":    n,
	}).Info("Published gold price")
}

func (s *PriceScheduler) report(outcome string) {
	if s.cfg.OnTick != nil {
		s.cfg.OnTick(outcome)
	}
}
