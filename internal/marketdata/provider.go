// Package marketdata defines the market-data contract the trading core
// depends on, plus the in-memory quote cache that fulfils it from a streamed
// tick feed.
package marketdata

import (
	"context"
	"errors"
	"time"

	"scalping-systemv1/internal/model"
)

// ErrUnavailable signals a transient data gap: no quote yet, stale feed, or
// unknown symbol. Callers skip the current tick for the symbol; this error is
// never escalated.
var ErrUnavailable = errors.New("market data unavailable")

// Provider supplies live quotes and recent price/volume series.
type Provider interface {
	// GetQuote returns the freshest quote for symbol, or ErrUnavailable.
	GetQuote(ctx context.Context, symbol string) (*model.Quote, error)

	// GetRecentSeries returns up to lookback bars aggregated at interval,
	// oldest first. An empty series is not an error; the caller decides
	// whether it has enough history.
	GetRecentSeries(ctx context.Context, symbol string, interval time.Duration, lookback int) ([]model.Bar, error)
}
