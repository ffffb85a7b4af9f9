package models

import "time"

type Candle struct {
	Timestamp     time.Time `json:"timestamp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        int       `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
}

// Series is ordered oldest first, one candle per hour.
type Series []Candle

// Statistics summarises a Series. The JSON keys match what the dashboard reads.
type Statistics struct {
	High           float64 `json:"high24h"`
	Low            float64 `json:"low24h"`
	VolumeTotal    int     `json:"volume24h"`
	Average        float64 `json:"avgPrice"`
	ChangeAbsolute float64 `json:"priceChange"`
	ChangePercent  float64 `json:"priceChangePercent"`
}
