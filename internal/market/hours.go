package market

import (
	"time"

	"github.com/kjannette/gold-monitor-backend/internal/models"
)

const (
	marketOpenHour  = 8
	marketCloseHour = 20
)

// IsMarketOpen reports whether t falls on a weekday between 08:00 and
// 20:59 local time. Holidays and exchange time zones are not modelled.
func IsMarketOpen(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := t.Hour()
	return h >= marketOpenHour && h <= marketCloseHour
}

func MarketStatus(t time.Time) string {
	if IsMarketOpen(t) {
		return models.MarketOpen
	}
	return models.MarketClosed
}
