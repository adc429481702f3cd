// Package monitor watches an open position until a terminal exit condition:
// target hit, stop hit, or hold-time ceiling.
//
// The state machine is HOLDING -> {TARGET_HIT, STOP_HIT, TIMED_OUT}. There is
// no external cancellation of a watch: a daemon stop only prevents new
// lifecycle runs, in-flight positions are always carried to an exit.
package monitor

import (
	"context"
	"log"
	"time"

	"scalping-systemv1/internal/marketdata"
	"scalping-systemv1/internal/model"
)

// Config tunes the watch loop.
type Config struct {
	// PollInterval between price checks. Default 1s.
	PollInterval time.Duration
	// MaxHold is the hold-time ceiling; reaching it forces TIMED_OUT
	// regardless of price. Default 60s.
	MaxHold time.Duration
}

func (c *Config) defaults() {
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.MaxHold == 0 {
		c.MaxHold = 60 * time.Second
	}
}

// Result is the terminal outcome of a watch.
type Result struct {
	Reason model.ExitReason
	// LastPrice is the most recent price observed; the entry price when no
	// poll ever succeeded.
	LastPrice float64
	Polls     int
	Elapsed   time.Duration
}

// Monitor polls prices for open positions.
type Monitor struct {
	provider marketdata.Provider
	cfg      Config
}

// New creates a Monitor with the given poll cadence and hold ceiling.
func New(provider marketdata.Provider, cfg Config) *Monitor {
	cfg.defaults()
	return &Monitor{provider: provider, cfg: cfg}
}

// Watch polls the position's symbol until one of the terminal conditions
// fires, then returns immediately. A failed price fetch is a transient skip:
// the loop keeps polling, and only the hold-time ceiling can end a watch with
// no usable prices.
func (m *Monitor) Watch(ctx context.Context, pos model.OpenPosition) Result {
	start := time.Now()
	res := Result{LastPrice: pos.EntryPrice}

	for {
		q, err := m.provider.GetQuote(ctx, pos.Symbol)
		if err == nil {
			res.Polls++
			res.LastPrice = q.Last

			if q.Last >= pos.TargetPrice {
				res.Reason = model.ExitTargetHit
				res.Elapsed = time.Since(start)
				return res
			}
			if q.Last <= pos.StopPrice {
				res.Reason = model.ExitStopHit
				res.Elapsed = time.Since(start)
				return res
			}
		} else {
			log.Printf("[monitor] %s: price fetch failed, retrying: %v", pos.Symbol, err)
		}

		if time.Since(start) >= m.cfg.MaxHold {
			res.Reason = model.ExitTimedOut
			res.Elapsed = time.Since(start)
			return res
		}

		time.Sleep(m.cfg.PollInterval)
	}
}
