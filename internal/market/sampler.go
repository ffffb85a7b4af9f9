package market

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kjannette/gold-monitor-backend/internal/external"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	BasePrice = 2000.0

	fallbackRange  = 100.0 // fallback price in [BasePrice, BasePrice+fallbackRange)
	fallbackChange = 20.0
	halfSpread     = 0.5
)

// QuoteFetcher is one upstream attempt.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context) (*external.Quote, error)
}

// Sampler produces current-price observations. It never returns an error:
// any upstream failure is logged and replaced by synthetic data.
type Sampler struct {
	fetcher QuoteFetcher
	rnd     Rand
	now     Clock
	log     logrus.FieldLogger
	hook    func(models.PriceObservation)
}

type SamplerOption func(*Sampler)

func WithSamplerRand(r Rand) SamplerOption {
	return func(s *Sampler) { s.rnd = r }
}

func WithSamplerClock(c Clock) SamplerOption {
	return func(s *Sampler) { s.now = c }
}

func WithSamplerLogger(l logrus.FieldLogger) SamplerOption {
	return func(s *Sampler) { s.log = l }
}

// WithSampleHook registers a callback invoked with every observation.
func WithSampleHook(fn func(models.PriceObservation)) SamplerOption {
	return func(s *Sampler) { s.hook = fn }
}

// NewSampler builds a sampler. A nil fetcher means demo mode: every
// observation comes from the fallback path.
func NewSampler(fetcher QuoteFetcher, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		fetcher: fetcher,
		rnd:     DefaultRand,
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sampler) Sample(ctx context.Context) models.PriceObservation {
	obs := s.sample(ctx)
	if s.hook != nil {
		s.hook(obs)
	}
	return obs
}

func (s *Sampler) sample(ctx context.Context) models.PriceObservation {
	if s.fetcher == nil {
		s.log.Debug("no upstream configured, generating fallback quote")
		return s.fallback()
	}

	q, err := s.fetcher.FetchQuote(ctx)
	if err != nil {
		s.log.WithError(err).Warn("upstream quote unavailable, using fallback data")
		return s.fallback()
	}

	s.log.WithFields(logrus.Fields{"price": q.Price, "rule": q.Rule}).Debug("upstream quote received")
	return s.observation(q.Price, q.Change, q.ChangePercent, q.Currency, models.SourceUpstream)
}

func (s *Sampler) fallback() models.PriceObservation {
	price := trunc2(uniform(s.rnd, BasePrice, BasePrice+fallbackRange))
	change := round2(centered(s.rnd, fallbackChange))
	return s.observation(price, change, round2(change/price*100), models.CurrencyUSD, models.SourceFallback)
}

func (s *Sampler) observation(price, change, changePct float64, currency, source string) models.PriceObservation {
	if currency == "" {
		currency = models.CurrencyUSD
	}
	now := s.now()
	return models.PriceObservation{
		ID:            uuid.NewString(),
		Price:         price,
		Currency:      currency,
		Unit:          models.UnitOunce,
		Timestamp:     now,
		Source:        source,
		Change:        change,
		ChangePercent: changePct,
		Bid:           price - halfSpread,
		Ask:           price + halfSpread,
		Spread:        2 * halfSpread,
		MarketStatus:  MarketStatus(now),
	}
}
