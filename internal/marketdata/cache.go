package marketdata

import (
	"context"
	"sync"
	"time"

	"scalping-systemv1/internal/model"
	"scalping-systemv1/internal/ringbuf"
)

// CacheConfig configures the quote cache.
type CacheConfig struct {
	// BarInterval is the aggregation bucket for the bar history.
	BarInterval time.Duration
	// MaxBars bounds the retained history per symbol.
	MaxBars int
	// MaxQuoteAge is how stale a quote may be before GetQuote reports
	// ErrUnavailable. Zero disables the staleness check.
	MaxQuoteAge time.Duration
}

func (c *CacheConfig) defaults() {
	if c.BarInterval == 0 {
		c.BarInterval = time.Minute
	}
	if c.MaxBars == 0 {
		c.MaxBars = 120
	}
}

// symbolHistory is the per-symbol aggregation state: closed bars plus the
// currently forming bucket.
type symbolHistory struct {
	bars    []model.Bar
	forming model.Bar
	hasBar  bool
}

// Cache holds the latest quote and a bounded bar history per symbol, built
// from the tick stream. It implements Provider. One goroutine (Run) writes,
// any number of lifecycle runs read.
type Cache struct {
	cfg CacheConfig

	mu     sync.RWMutex
	quotes map[string]model.Quote
	hist   map[string]*symbolHistory
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	cfg.defaults()
	return &Cache{
		cfg:    cfg,
		quotes: make(map[string]model.Quote),
		hist:   make(map[string]*symbolHistory),
	}
}

// Run drains the tick ring into the cache until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, ring *ringbuf.Ring) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, t := range ring.Drain(1024) {
				c.Apply(t)
			}
		}
	}
}

// Apply folds one tick into the cache: latest quote plus the forming bar.
func (c *Cache) Apply(t model.Tick) {
	if t.Symbol == "" || t.Last <= 0 {
		return
	}
	bucket := t.TS.Truncate(c.cfg.BarInterval)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.quotes[t.Symbol] = t.Quote()

	h, ok := c.hist[t.Symbol]
	if !ok {
		h = &symbolHistory{}
		c.hist[t.Symbol] = h
	}

	if h.hasBar && h.forming.TS.Equal(bucket) {
		h.forming.Close = t.Last
		h.forming.Volume += t.Qty
		return
	}

	if h.hasBar {
		h.bars = append(h.bars, h.forming)
		if len(h.bars) > c.cfg.MaxBars {
			h.bars = h.bars[len(h.bars)-c.cfg.MaxBars:]
		}
	}
	h.forming = model.Bar{TS: bucket, Close: t.Last, Volume: t.Qty}
	h.hasBar = true
}

// GetQuote returns the freshest quote for symbol. A missing, invalid, or
// stale quote yields ErrUnavailable.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	c.mu.RLock()
	q, ok := c.quotes[symbol]
	c.mu.RUnlock()

	if !ok || !q.Valid() {
		return nil, ErrUnavailable
	}
	if c.cfg.MaxQuoteAge > 0 && time.Since(q.TS) > c.cfg.MaxQuoteAge {
		return nil, ErrUnavailable
	}
	return &q, nil
}

// GetRecentSeries returns up to lookback bars, oldest first, with the forming
// bucket included as the last sample. The cache aggregates at its configured
// interval; the interval argument is part of the Provider contract and must
// match the cache configuration.
func (c *Cache) GetRecentSeries(ctx context.Context, symbol string, interval time.Duration, lookback int) ([]model.Bar, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.hist[symbol]
	if !ok {
		return nil, nil
	}

	n := len(h.bars)
	total := n
	if h.hasBar {
		total++
	}
	if lookback > 0 && total > lookback {
		total = lookback
	}

	out := make([]model.Bar, 0, total)
	start := n - total
	if h.hasBar {
		start = n - (total - 1)
	}
	if start < 0 {
		start = 0
	}
	out = append(out, h.bars[start:]...)
	if h.hasBar {
		out = append(out, h.forming)
	}
	return out, nil
}
