// Package ws connects to the quote WebSocket feed (cmd/quotesim in staging,
// or any server speaking the same JSON tick shape) and pushes ticks into the
// SPSC ring feeding the quote cache.
//
// The wire format is model.Tick:
//
//	{"symbol":"SBIN","last":505.2,"bid":505.15,"ask":505.25,"qty":10,"ts":"..."}
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"scalping-systemv1/internal/model"
	"scalping-systemv1/internal/ringbuf"
)

// Config holds configuration for the quote streamer.
type Config struct {
	// URL of the quote WebSocket server, e.g. "ws://localhost:9001/ws".
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Streamer reads JSON ticks from the feed and pushes them into a ring buffer.
type Streamer struct {
	cfg Config

	// Optional hook — called each time a reconnection happens.
	OnReconnect func()
	// Optional hook — called for every tick dropped on a full ring.
	OnDrop func()
	// Optional hook — called for every tick accepted into the ring.
	OnTick func(model.Tick)
}

// New creates a Streamer. Returns an error if the URL is unparseable.
func New(cfg Config) (*Streamer, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Streamer{cfg: cfg}, nil
}

// Start connects to the feed and streams ticks into ring. Blocks until ctx is
// cancelled; reconnects automatically on disconnect with exponential backoff.
func (s *Streamer) Start(ctx context.Context, ring *ringbuf.Ring) error {
	delay := s.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := s.runOnce(ctx, ring)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[ws] disconnected (%v), reconnecting in %s...", err, delay)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx
// cancellation.
func (s *Streamer) runOnce(ctx context.Context, ring *ringbuf.Ring) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[ws] connected to %s", s.cfg.URL)

	// Context watcher — closes the connection when ctx is cancelled so the
	// read loop below unblocks. done keeps the watcher scoped to this
	// connection; otherwise one would pile up per reconnect attempt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[ws] parse error: %v (raw: %s)", err, raw)
			continue
		}
		if tick.Symbol == "" {
			continue
		}
		if tick.TS.IsZero() {
			tick.TS = time.Now().UTC()
		}

		if !ring.Push(tick) {
			if s.OnDrop != nil {
				s.OnDrop()
			}
			continue
		}
		if s.OnTick != nil {
			s.OnTick(tick)
		}
	}
}
