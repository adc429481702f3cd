package model

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExitReason is the terminal cause of closing a position.
type ExitReason string

const (
	ExitTargetHit ExitReason = "TARGET_HIT"
	ExitStopHit   ExitReason = "STOP_HIT"
	ExitTimedOut  ExitReason = "TIMED_OUT"
)

// TradeStatus tracks a trade record through its lifecycle in the journal.
type TradeStatus string

const (
	// TradeOpen is written immediately after the entry fill confirms, so an
	// interrupted trade is detectable in the journal rather than silently lost.
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
	// TradeError marks a record whose exit leg failed; the position may still
	// be economically open at the broker.
	TradeError TradeStatus = "ERROR"
)

// OpenPosition is a live position owned by exactly one lifecycle run.
// It is created once per trade and discarded when the exit order fills.
type OpenPosition struct {
	Symbol      string    `json:"symbol"`
	EntryPrice  float64   `json:"entry_price"`
	Qty         int64     `json:"qty"`
	TargetPrice float64   `json:"target_price"`
	StopPrice   float64   `json:"stop_price"`
	OpenedAt    time.Time `json:"opened_at"`
}

// TradeRecord is one row of the trade journal, immutable once closed.
type TradeRecord struct {
	ID          int64       `json:"id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Status      TradeStatus `json:"status"`
	Qty         int64       `json:"qty"`
	EntryPrice  float64     `json:"entry_price"`
	ExitPrice   float64     `json:"exit_price"`
	EntryTS     time.Time   `json:"entry_ts"`
	ExitTS      time.Time   `json:"exit_ts"`
	Pressure    float64     `json:"pressure"`
	Spread      float64     `json:"spread"`
	MACDHist    float64     `json:"macd_hist"`
	VolumeSpike bool        `json:"volume_spike"`
	ExitReason  ExitReason  `json:"exit_reason"`
	PnL         float64     `json:"pnl"`
}

// ComputePnL returns (exit - entry) * qty for the record's prices.
func (t *TradeRecord) ComputePnL() float64 {
	return (t.ExitPrice - t.EntryPrice) * float64(t.Qty)
}
