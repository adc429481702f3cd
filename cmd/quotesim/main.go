// cmd/quotesim — Demo WebSocket quote server.
// Broadcasts simulated tick data so scalperd can run without a live feed.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"symbol":"RELIANCE","last":2950.1,"bid":2950.0,"ask":2950.25,"qty":42,"ts":"..."}
//
// Config (env vars):
//
//	QUOTESIM_ADDR        — listen address (default: ":8081")
//	QUOTESIM_SYMBOLS     — comma-separated SYMBOL:PRICE pairs (default: "RELIANCE:2950,TCS:4100,INFY:1850,HDFCBANK:1650")
//	QUOTESIM_INTERVAL_MS — broadcast interval milliseconds (default: "200")
package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scalping-systemv1/internal/model"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[quotesim] upgrade error: %v", err)
			return
		}
		log.Printf("[quotesim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[quotesim] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends tick JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a tiny random walk (±0.1%) to simulate price movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	newPrice := price * (1 + pct)
	if newPrice < 0.05 {
		newPrice = 0.05
	}
	return newPrice
}

func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		for i := range instruments {
			instruments[i].Price = walkPrice(instruments[i].Price)
			last := instruments[i].Price
			// Spread of roughly one hundredth of a percent each side.
			half := last * 0.0001
			tick := model.Tick{
				Symbol: instruments[i].Symbol,
				Last:   last,
				Bid:    last - half,
				Ask:    last + half,
				Qty:    float64(rand.Intn(100) + 1),
				TS:     time.Now().UTC(),
			}
			h.broadcast(tick.JSON())
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[quotesim] starting demo quote server...")

	addr := envOrDefault("QUOTESIM_ADDR", ":8081")
	symbolsEnv := envOrDefault("QUOTESIM_SYMBOLS", "RELIANCE:2950,TCS:4100,INFY:1850,HDFCBANK:1650")
	intervalMs := envIntOrDefault("QUOTESIM_INTERVAL_MS", 200)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[quotesim] no symbols configured via QUOTESIM_SYMBOLS")
	}
	log.Printf("[quotesim] instruments: %+v", instruments)
	log.Printf("[quotesim] broadcast interval: %dms", intervalMs)

	h := newHub()

	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"quotesim"}`)
	})

	log.Printf("[quotesim] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[quotesim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	var out []instrument
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		symbol := strings.TrimSpace(parts[0])
		if symbol == "" {
			continue
		}
		price := 100.0
		if len(parts) == 2 {
			if p, err := strconv.ParseFloat(parts[1], 64); err == nil && p > 0 {
				price = p
			}
		}
		out = append(out, instrument{Symbol: symbol, Price: price})
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
