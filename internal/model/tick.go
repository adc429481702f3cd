package model

import (
	"encoding/json"
	"time"
)

// Tick is one raw feed update for a symbol: a top-of-book snapshot plus the
// traded quantity since the previous tick. This is the wire shape the quote
// stream delivers.
type Tick struct {
	Symbol string    `json:"symbol"`
	Last   float64   `json:"last"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Qty    float64   `json:"qty"`
	TS     time.Time `json:"ts"`
}

// Quote returns the top-of-book view of the tick.
func (t *Tick) Quote() Quote {
	return Quote{Symbol: t.Symbol, Last: t.Last, Bid: t.Bid, Ask: t.Ask, TS: t.TS}
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (t *Tick) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
