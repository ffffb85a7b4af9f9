package market

import (
	"math"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	waveAmplitude = 50.0
	waveFrequency = 0.1 // radians per hour offset, one cycle ≈ 62.8 h

	levelNoise      = 20.0 // level jitter in [-10, 10)
	openJitter      = 5.0  // open in level ± 2.5
	wickRange       = 10.0 // high/low up to 10 beyond level
	candleChange    = 4.0  // change in [-2, 2)
	candleChangePct = 0.2  // changePercent in [-0.1, 0.1)

	volumeBase = 500
	volumeSpan = 1000
)

// Generator fabricates hourly OHLC candles around BasePrice.
//
// By default each candle field is drawn independently, so a candle may
// have low > close or high < open, and per-candle change does not follow
// consecutive closes. WithConsistentOHLC widens high/low to cover open
// and close.
type Generator struct {
	rnd        Rand
	now        Clock
	consistent bool
}

type GeneratorOption func(*Generator)

func WithGeneratorRand(r Rand) GeneratorOption {
	return func(g *Generator) { g.rnd = r }
}

func WithGeneratorClock(c Clock) GeneratorOption {
	return func(g *Generator) { g.now = c }
}

func WithConsistentOHLC(on bool) GeneratorOption {
	return func(g *Generator) { g.consistent = on }
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{rnd: DefaultRand, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns exactly hours candles spaced one hour apart, the last
// one stamped now. hours <= 0 yields an empty series.
func (g *Generator) Generate(hours int) models.Series {
	if hours <= 0 {
		return models.Series{}
	}

	now := g.now()
	out := make(models.Series, 0, hours)
	for i := hours - 1; i >= 0; i-- {
		level := BasePrice + math.Sin(float64(i)*waveFrequency)*waveAmplitude + centered(g.rnd, levelNoise)

		c := models.Candle{
			Timestamp:     now.Add(-time.Duration(i) * time.Hour),
			Open:          level + centered(g.rnd, openJitter),
			High:          level + g.rnd.Float64()*wickRange,
			Low:           level - g.rnd.Float64()*wickRange,
			Close:         level,
			Volume:        volumeBase + g.rnd.IntN(volumeSpan),
			Change:        centered(g.rnd, candleChange),
			ChangePercent: centered(g.rnd, candleChangePct),
		}
		if g.consistent {
			c.High = max(c.High, c.Open, c.Close)
			c.Low = min(c.Low, c.Open, c.Close)
		}
		out = append(out, c)
	}
	return out
}
