package model

import "time"

// Quote is a top-of-book snapshot for one symbol.
// Prices are decimal floats as delivered by the feed.
type Quote struct {
	Symbol string    `json:"symbol"`
	Last   float64   `json:"last"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	TS     time.Time `json:"ts"`
}

// Spread returns the bid/ask spread (ask - bid).
func (q *Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Valid reports whether the quote carries usable prices.
// A quote with a non-positive last, bid, or ask must not drive a trade.
func (q *Quote) Valid() bool {
	return q.Last > 0 && q.Bid > 0 && q.Ask > 0
}

// Bar is one aggregated (close, volume) sample of a price series.
// Series are ordered oldest-first, most recent bar last.
type Bar struct {
	TS     time.Time `json:"ts"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
