package market

import (
	"fmt"
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	KindPrice     = "price"
	KindEvent     = "event"
	KindHeartbeat = "heartbeat"

	livePriceRange  = 100.0 // live price in BasePrice ± 50
	liveChangeRange = 5.0
	highSeverityP   = 0.3
)

var marketEventCatalog = []string{
	"price_alert",
	"volume_spike",
	"market_news",
	"technical_indicator",
}

// LiveGenerator fabricates the frames served by the polling feed.
type LiveGenerator struct {
	rnd       Rand
	now       Clock
	serverTag string
}

func NewLiveGenerator(serverTag string, rnd Rand, now Clock) *LiveGenerator {
	if rnd == nil {
		rnd = DefaultRand
	}
	if now == nil {
		now = time.Now
	}
	return &LiveGenerator{rnd: rnd, now: now, serverTag: serverTag}
}

// Event returns one frame for the requested kind. Unknown kinds get a
// price update.
func (g *LiveGenerator) Event(kind string) models.LiveEvent {
	switch kind {
	case KindEvent:
		return g.marketEvent()
	case KindHeartbeat:
		return models.LiveEvent{
			Type: models.EventHeartbeat,
			Data: &models.Heartbeat{
				Status:    "connected",
				Timestamp: g.now(),
				Server:    g.serverTag,
			},
		}
	default:
		return models.LiveEvent{Type: models.EventPriceUpdate, Data: g.PriceUpdate()}
	}
}

func (g *LiveGenerator) PriceUpdate() *models.PriceUpdate {
	price := BasePrice + centered(g.rnd, livePriceRange)
	change := centered(g.rnd, liveChangeRange)
	return &models.PriceUpdate{
		Price:         price,
		Change:        change,
		ChangePercent: change / price * 100,
		Volume:        volumeBase + g.rnd.IntN(volumeSpan),
		Timestamp:     g.now(),
		Bid:           price - halfSpread,
		Ask:           price + halfSpread,
		Spread:        2 * halfSpread,
	}
}

func (g *LiveGenerator) marketEvent() models.LiveEvent {
	eventType := marketEventCatalog[g.rnd.IntN(len(marketEventCatalog))]
	severity := "normal"
	if g.rnd.Float64() > 1-highSeverityP {
		severity = "high"
	}
	return models.LiveEvent{
		Type:      models.EventMarket,
		EventType: eventType,
		Data: &models.MarketEvent{
			Message:   fmt.Sprintf("Market event: %s", eventType),
			Severity:  severity,
			Timestamp: g.now(),
		},
	}
}
