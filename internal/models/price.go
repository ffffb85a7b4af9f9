package models

import "time"

const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"

	MarketOpen   = "OPEN"
	MarketClosed = "CLOSED"

	CurrencyUSD = "USD"
	UnitOunce   = "oz"
)

// PriceObservation is a single spot quote in USD per troy ounce.
type PriceObservation struct {
	ID            string    `json:"id"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Unit          string    `json:"unit"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Spread        float64   `json:"spread"`
	MarketStatus  string    `json:"marketStatus"`
}

// HistoryPoint is one hourly slot of the overlay returned with the current price.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    int       `json:"volume"`
}
