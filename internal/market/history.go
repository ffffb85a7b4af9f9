package market

import (
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	overlaySlots = 24
	overlayNoise = 50.0 // overlay price in sampled ± 25
)

// HistoryOverlay is the coarse 24-slot history attached to a current
// quote: each hourly slot is the quote ± 25 with a random volume. It does
// not use the sinusoidal series model.
func (g *Generator) HistoryOverlay(price float64) []models.HistoryPoint {
	now := g.now()
	out := make([]models.HistoryPoint, 0, overlaySlots)
	for i := overlaySlots - 1; i >= 0; i-- {
		out = append(out, models.HistoryPoint{
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Price:     price + centered(g.rnd, overlayNoise),
			Volume:    volumeBase + g.rnd.IntN(volumeSpan),
		})
	}
	return out
}
