// Package strategy decides whether a symbol qualifies for entry.
//
// The Evaluator combines a live quote and a feature vector with fixed
// thresholds into a Decision: five named conditions, each evaluated and
// reported independently for diagnostics, with entry allowed only when all
// five hold. Missing or invalid inputs fail closed — the decision is "do not
// enter", never an error.
package strategy

import (
	"fmt"
	"strings"

	"scalping-systemv1/internal/indicator"
	"scalping-systemv1/internal/model"
)

// Condition labels, in reporting order. Order and names are part of the
// observability contract (they show up in logs, Redis and notifications).
const (
	CondPressure     = "pressure"
	CondMACDPositive = "macd_positive"
	CondVolumeSpike  = "volume_spike"
	CondSpread       = "spread"
	CondStrongCandle = "strong_candle"
)

// Thresholds is the fixed rule configuration for entry.
type Thresholds struct {
	// PressureMin is the minimum momentum pressure (fractional, 0.005 = 0.5%).
	PressureMin float64
	// SpreadMax is the maximum tolerated bid/ask spread in price units.
	SpreadMax float64
}

// DefaultThresholds returns the production rule set.
func DefaultThresholds() Thresholds {
	return Thresholds{PressureMin: 0.005, SpreadMax: 0.02}
}

// Condition is one named entry requirement and its outcome.
type Condition struct {
	Name string `json:"name"`
	Pass bool   `json:"pass"`
}

// Decision is the outcome of evaluating one symbol at one instant.
type Decision struct {
	Symbol     string      `json:"symbol"`
	Conditions []Condition `json:"conditions"`
	Enter      bool        `json:"enter"`
}

// Breakdown renders the per-condition outcomes as a single log-friendly line,
// e.g. "pressure=ok macd_positive=no volume_spike=ok spread=ok strong_candle=ok".
func (d *Decision) Breakdown() string {
	parts := make([]string, 0, len(d.Conditions))
	for _, c := range d.Conditions {
		state := "no"
		if c.Pass {
			state = "ok"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, state))
	}
	return strings.Join(parts, " ")
}

// Evaluator applies the fixed rule set to live inputs.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Evaluate produces the entry decision for symbol from a quote and feature
// vector. A nil or invalid quote, or an invalid feature vector, yields
// Enter=false with the conditions still reported.
func (e *Evaluator) Evaluate(symbol string, q *model.Quote, fv indicator.FeatureVector) Decision {
	spreadOK := q != nil && q.Valid() && q.Spread() <= e.th.SpreadMax

	conds := []Condition{
		{Name: CondPressure, Pass: fv.Pressure > e.th.PressureMin},
		{Name: CondMACDPositive, Pass: fv.MACDHist > 0},
		{Name: CondVolumeSpike, Pass: fv.VolumeSpike},
		{Name: CondSpread, Pass: spreadOK},
		{Name: CondStrongCandle, Pass: fv.StrongCandle},
	}

	enter := fv.Valid && q != nil && q.Valid()
	for _, c := range conds {
		enter = enter && c.Pass
	}

	return Decision{Symbol: symbol, Conditions: conds, Enter: enter}
}
