package broker

import (
	"context"
	"testing"
	"time"

	"scalping-systemv1/internal/marketdata"
	"scalping-systemv1/internal/model"
)

// staticProvider serves one fixed quote.
type staticProvider struct {
	quote *model.Quote
}

func (p *staticProvider) GetQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	if p.quote == nil {
		return nil, marketdata.ErrUnavailable
	}
	return p.quote, nil
}

func (p *staticProvider) GetRecentSeries(ctx context.Context, symbol string, interval time.Duration, lookback int) ([]model.Bar, error) {
	return nil, nil
}

func TestPaperGateway_BuyWithSlippage(t *testing.T) {
	prov := &staticProvider{quote: &model.Quote{Symbol: "SBIN", Last: 100, Bid: 99.9, Ask: 100.1}}
	g := NewPaperGateway(prov, 10) // 10 bps

	id, err := g.SubmitMarketOrder(context.Background(), "SBIN", 5, model.SideBuy)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	price, filled, err := g.GetOrderFill(context.Background(), id)
	if err != nil || !filled {
		t.Fatalf("fill: filled=%v err=%v", filled, err)
	}
	if want := 100 * (1 + 0.001); price != want {
		t.Errorf("buy fill = %v, want %v (slipped up)", price, want)
	}
}

func TestPaperGateway_SellSlipsDown(t *testing.T) {
	prov := &staticProvider{quote: &model.Quote{Symbol: "SBIN", Last: 100, Bid: 99.9, Ask: 100.1}}
	g := NewPaperGateway(prov, 10)

	id, err := g.SubmitMarketOrder(context.Background(), "SBIN", 5, model.SideSell)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	price, _, err := g.GetOrderFill(context.Background(), id)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if want := 100 * (1 - 0.001); price != want {
		t.Errorf("sell fill = %v, want %v (slipped down)", price, want)
	}
}

func TestPaperGateway_NoQuoteFailsSubmit(t *testing.T) {
	g := NewPaperGateway(&staticProvider{}, 0)
	if _, err := g.SubmitMarketOrder(context.Background(), "SBIN", 5, model.SideBuy); err == nil {
		t.Fatal("expected error when no quote is available")
	}
}

func TestPaperGateway_UnknownOrder(t *testing.T) {
	g := NewPaperGateway(&staticProvider{}, 0)
	if _, _, err := g.GetOrderFill(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown order id")
	}
}
