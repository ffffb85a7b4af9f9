package api

import (
	"context"
	"fmt"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/market"
	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const liveNote = "This is a polling-based WebSocket simulation, not a push channel"

type PriceSampler interface {
	Sample(ctx context.Context) models.PriceObservation
}

type SeriesGenerator interface {
	Generate(hours int) models.Series
	HistoryOverlay(price float64) []models.HistoryPoint
}

type LiveGenerator interface {
	Event(kind string) models.LiveEvent
}

type GoldPriceData struct {
	Current    models.PriceObservation `json:"current"`
	Historical []models.HistoryPoint   `json:"historical"`
	Metadata   PriceMetadata           `json:"metadata"`
}

type PriceMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Source      string    `json:"source"`
	Currency    string    `json:"currency"`
	Unit        string    `json:"unit"`
}

type MarketData struct {
	Timeframe  string            `json:"timeframe"`
	MarketData models.Series     `json:"marketData"`
	Statistics models.Statistics `json:"statistics"`
	Metadata   SeriesMetadata    `json:"metadata"`
}

type SeriesMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	DataPoints  int       `json:"dataPoints"`
	Currency    string    `json:"currency"`
	Unit        string    `json:"unit"`
}

// LiveFrame is the flattened /websocket body.
type LiveFrame struct {
	Success   bool             `json:"success"`
	Type      models.EventType `json:"type"`
	EventType string           `json:"eventType,omitempty"`
	Data      any              `json:"data"`
	Metadata  LiveMetadata     `json:"metadata"`
}

type LiveMetadata struct {
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// Assembler composes the public response bodies. It holds no mutable
// state and is safe for concurrent use.
type Assembler struct {
	sampler PriceSampler
	series  SeriesGenerator
	live    LiveGenerator
	now     market.Clock
}

func NewAssembler(sampler PriceSampler, series SeriesGenerator, live LiveGenerator) *Assembler {
	return &Assembler{sampler: sampler, series: series, live: live, now: time.Now}
}

func (a *Assembler) CurrentPrice(ctx context.Context) (*GoldPriceData, error) {
	obs := a.sampler.Sample(ctx)
	return &GoldPriceData{
		Current:    obs,
		Historical: a.series.HistoryOverlay(obs.Price),
		Metadata: PriceMetadata{
			LastUpdated: a.now(),
			Source:      obs.Source,
			Currency:    models.CurrencyUSD,
			Unit:        models.UnitOunce,
		},
	}, nil
}

// MarketData builds the window named by label. An empty label echoes
// as the default window; unknown labels are echoed but served as 24h.
func (a *Assembler) MarketData(label string) (*MarketData, error) {
	if label == "" {
		label = market.DefaultTimeframe
	}
	series := a.series.Generate(market.ParseTimeframe(label))
	stats, err := market.Aggregate(series)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s window: %w", label, err)
	}
	return &MarketData{
		Timeframe:  label,
		MarketData: series,
		Statistics: stats,
		Metadata: SeriesMetadata{
			LastUpdated: a.now(),
			DataPoints:  len(series),
			Currency:    models.CurrencyUSD,
			Unit:        models.UnitOunce,
		},
	}, nil
}

func (a *Assembler) LiveEvent(kind string) (*LiveFrame, error) {
	ev := a.live.Event(kind)
	if ev.Data == nil {
		return nil, fmt.Errorf("live generator returned no payload for %q", kind)
	}
	return &LiveFrame{
		Success:   true,
		Type:      ev.Type,
		EventType: ev.EventType,
		Data:      ev.Data,
		Metadata: LiveMetadata{
			Endpoint:  "websocket-simulation",
			Timestamp: a.now(),
			Note:      liveNote,
		},
	}, nil
}
