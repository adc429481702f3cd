package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"scalping-systemv1/internal/model"
)

func applyTicks(c *Cache, base time.Time, ticks []model.Tick) {
	for i := range ticks {
		if ticks[i].TS.IsZero() {
			ticks[i].TS = base
		}
		c.Apply(ticks[i])
	}
}

func TestGetQuote_Unavailable(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute})
	if _, err := c.GetQuote(context.Background(), "SBIN"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unknown symbol: err = %v, want ErrUnavailable", err)
	}
}

func TestGetQuote_Latest(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute})
	now := time.Now().UTC()
	applyTicks(c, now, []model.Tick{
		{Symbol: "SBIN", Last: 10.00, Bid: 9.99, Ask: 10.01, Qty: 5, TS: now},
		{Symbol: "SBIN", Last: 10.05, Bid: 10.04, Ask: 10.06, Qty: 5, TS: now.Add(time.Second)},
	})

	q, err := c.GetQuote(context.Background(), "SBIN")
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if q.Last != 10.05 {
		t.Errorf("last = %v, want 10.05", q.Last)
	}
}

func TestGetQuote_Stale(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute, MaxQuoteAge: 5 * time.Second})
	old := time.Now().UTC().Add(-time.Minute)
	c.Apply(model.Tick{Symbol: "SBIN", Last: 10.00, Bid: 9.99, Ask: 10.01, TS: old})

	if _, err := c.GetQuote(context.Background(), "SBIN"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("stale quote: err = %v, want ErrUnavailable", err)
	}
}

func TestApply_IgnoresJunk(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute})
	c.Apply(model.Tick{Symbol: "", Last: 10})
	c.Apply(model.Tick{Symbol: "SBIN", Last: 0})
	if _, err := c.GetQuote(context.Background(), "SBIN"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("junk ticks must not populate the cache, err = %v", err)
	}
}

func TestGetRecentSeries_Aggregation(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute, MaxBars: 10})
	base := time.Unix(1700000000, 0).UTC().Truncate(time.Minute)

	// Two ticks in minute 0, one in minute 1, one in minute 2 (forming).
	applyTicks(c, base, []model.Tick{
		{Symbol: "SBIN", Last: 10.00, Bid: 9.99, Ask: 10.01, Qty: 5, TS: base},
		{Symbol: "SBIN", Last: 10.10, Bid: 10.09, Ask: 10.11, Qty: 7, TS: base.Add(30 * time.Second)},
		{Symbol: "SBIN", Last: 10.20, Bid: 10.19, Ask: 10.21, Qty: 3, TS: base.Add(time.Minute)},
		{Symbol: "SBIN", Last: 10.30, Bid: 10.29, Ask: 10.31, Qty: 4, TS: base.Add(2 * time.Minute)},
	})

	bars, err := c.GetRecentSeries(context.Background(), "SBIN", time.Minute, 10)
	if err != nil {
		t.Fatalf("GetRecentSeries: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3 (two closed + forming)", len(bars))
	}
	if bars[0].Close != 10.10 || bars[0].Volume != 12 {
		t.Errorf("bar 0 = %+v, want close=10.10 volume=12", bars[0])
	}
	if bars[1].Close != 10.20 || bars[1].Volume != 3 {
		t.Errorf("bar 1 = %+v, want close=10.20 volume=3", bars[1])
	}
	if bars[2].Close != 10.30 || bars[2].Volume != 4 {
		t.Errorf("forming bar = %+v, want close=10.30 volume=4", bars[2])
	}
}

func TestGetRecentSeries_LookbackAndEmpty(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute, MaxBars: 10})

	bars, err := c.GetRecentSeries(context.Background(), "SBIN", time.Minute, 5)
	if err != nil || len(bars) != 0 {
		t.Fatalf("empty cache: bars=%v err=%v, want empty, nil", bars, err)
	}

	base := time.Unix(1700000000, 0).UTC().Truncate(time.Minute)
	for i := 0; i < 8; i++ {
		c.Apply(model.Tick{
			Symbol: "SBIN", Last: 10 + float64(i), Bid: 10, Ask: 10.01, Qty: 1,
			TS: base.Add(time.Duration(i) * time.Minute),
		})
	}
	bars, err = c.GetRecentSeries(context.Background(), "SBIN", time.Minute, 3)
	if err != nil {
		t.Fatalf("GetRecentSeries: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want lookback 3", len(bars))
	}
	// Last element is the forming bucket; series must be oldest first.
	if bars[2].Close != 17 || bars[0].Close != 15 {
		t.Errorf("window = [%v %v %v], want [15 16 17]", bars[0].Close, bars[1].Close, bars[2].Close)
	}
}

func TestMaxBarsBound(t *testing.T) {
	c := NewCache(CacheConfig{BarInterval: time.Minute, MaxBars: 3})
	base := time.Unix(1700000000, 0).UTC().Truncate(time.Minute)
	for i := 0; i < 10; i++ {
		c.Apply(model.Tick{
			Symbol: "SBIN", Last: 10 + float64(i), Bid: 10, Ask: 10.01, Qty: 1,
			TS: base.Add(time.Duration(i) * time.Minute),
		})
	}
	bars, _ := c.GetRecentSeries(context.Background(), "SBIN", time.Minute, 0)
	// 3 retained closed bars + the forming bucket
	if len(bars) != 4 {
		t.Errorf("got %d bars, want 4", len(bars))
	}
}
