package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"scalping-systemv1/internal/marketdata"
	"scalping-systemv1/internal/model"
)

// PaperGateway simulates order execution against live cached quotes without
// real broker calls. Fills resolve immediately at submit time, at the current
// last price adjusted by simulated slippage.
type PaperGateway struct {
	provider marketdata.Provider

	mu     sync.Mutex
	orders map[string]paperOrder

	// slippageBps is simulated slippage in basis points (5 = 0.05%).
	slippageBps float64
}

type paperOrder struct {
	fillPrice float64
	filledAt  time.Time
}

// NewPaperGateway creates a paper gateway filling at provider quotes.
func NewPaperGateway(provider marketdata.Provider, slippageBps float64) *PaperGateway {
	return &PaperGateway{
		provider:    provider,
		orders:      make(map[string]paperOrder),
		slippageBps: slippageBps,
	}
}

func (p *PaperGateway) SubmitMarketOrder(ctx context.Context, symbol string, qty int64, side model.Side) (string, error) {
	q, err := p.provider.GetQuote(ctx, symbol)
	if err != nil {
		return "", fmt.Errorf("paper: no quote for %s: %w", symbol, err)
	}

	fill := q.Last
	if p.slippageBps > 0 {
		slip := fill * p.slippageBps / 10000
		if side == model.SideBuy {
			fill += slip // buy higher
		} else {
			fill -= slip // sell lower
		}
	}

	orderID := "PAPER-" + uuid.NewString()
	p.mu.Lock()
	p.orders[orderID] = paperOrder{fillPrice: fill, filledAt: time.Now()}
	p.mu.Unlock()

	log.Printf("[paper] %s %s qty=%d filled at %.4f order=%s", side, symbol, qty, fill, orderID)
	return orderID, nil
}

func (p *PaperGateway) GetOrderFill(ctx context.Context, orderID string) (float64, bool, error) {
	p.mu.Lock()
	o, ok := p.orders[orderID]
	p.mu.Unlock()

	if !ok {
		return 0, false, fmt.Errorf("paper: unknown order %s", orderID)
	}
	return o.fillPrice, true, nil
}
