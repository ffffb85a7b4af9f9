package models

import "time"

type EventType string

const (
	EventPriceUpdate EventType = "price_update"
	EventMarket      EventType = "market_event"
	EventHeartbeat   EventType = "heartbeat"
)

// LiveEvent is one simulated frame of the live feed. Data holds a
// *PriceUpdate, *MarketEvent or *Heartbeat depending on Type.
type LiveEvent struct {
	Type      EventType `json:"type"`
	EventType string    `json:"eventType,omitempty"`
	Data      any       `json:"data"`
}

// PriceUpdate is also the body shape expected on the broker price topic.
type PriceUpdate struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int       `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Spread        float64   `json:"spread"`
}

type MarketEvent struct {
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

type Heartbeat struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Server    string    `json:"server"`
}
