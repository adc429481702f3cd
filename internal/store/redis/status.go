// Package redis publishes live controller state (latest decisions, open
// positions, heartbeat) for dashboards. Everything here is best-effort: a
// Redis outage never affects the trading flow, and a nil *Publisher is a
// valid no-op so the daemon runs without Redis at all.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"scalping-systemv1/internal/model"
	"scalping-systemv1/internal/strategy"
)

const (
	keyPrefix = "scalper:"
	statusTTL = 30 * time.Minute
	opTimeout = 2 * time.Second
)

// Config configures the status publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes controller status snapshots to Redis.
type Publisher struct {
	client *goredis.Client
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// Client returns the underlying client for health checks. Nil when the
// publisher is disabled.
func (p *Publisher) Client() *goredis.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// PublishDecision stores the latest condition breakdown for a symbol.
func (p *Publisher) PublishDecision(ctx context.Context, d strategy.Decision) {
	if p == nil {
		return
	}
	b, _ := json.Marshal(d)
	p.set(ctx, keyPrefix+"decision:"+d.Symbol, b)
}

// PublishPosition stores the currently open position for a symbol.
func (p *Publisher) PublishPosition(ctx context.Context, pos model.OpenPosition) {
	if p == nil {
		return
	}
	b, _ := json.Marshal(pos)
	p.set(ctx, keyPrefix+"position:"+pos.Symbol, b)
}

// ClearPosition removes the open-position key after exit.
func (p *Publisher) ClearPosition(ctx context.Context, symbol string) {
	if p == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := p.client.Del(opCtx, keyPrefix+"position:"+symbol).Err(); err != nil {
		log.Printf("[redis] del position %s: %v", symbol, err)
	}
}

// Heartbeat refreshes the controller liveness key.
func (p *Publisher) Heartbeat(ctx context.Context) {
	if p == nil {
		return
	}
	p.set(ctx, keyPrefix+"heartbeat", []byte(time.Now().UTC().Format(time.RFC3339)))
}

// Close releases the client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Publisher) set(ctx context.Context, key string, val []byte) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := p.client.Set(opCtx, key, val, statusTTL).Err(); err != nil {
		log.Printf("[redis] set %s: %v", key, err)
	}
}
