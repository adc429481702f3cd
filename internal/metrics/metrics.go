// Package metrics exposes Prometheus metrics and a health endpoint for the
// scalping controller.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading daemon.
type Metrics struct {
	EvaluationsTotal prometheus.Counter
	SkipsTotal       *prometheus.CounterVec // labels: reason (no_quote, no_series, signal, zero_qty)
	TradesOpened     prometheus.Counter
	TradesClosed     *prometheus.CounterVec // labels: exit_reason
	LifecycleErrors  *prometheus.CounterVec // labels: step
	StoreErrors      prometheus.Counter

	FillWaitDur prometheus.Histogram
	HoldDur     prometheus.Histogram

	BusySymbols   prometheus.Gauge
	OpenPositions prometheus.Gauge

	FeedTicksTotal   prometheus.Counter
	FeedReconnects   prometheus.Counter
	FeedDroppedTicks prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_evaluations_total",
			Help: "Total per-symbol signal evaluations",
		}),
		SkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_skips_total",
			Help: "Ticks skipped without a trade (by reason)",
		}, []string{"reason"}),
		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_trades_opened_total",
			Help: "Positions opened",
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_trades_closed_total",
			Help: "Positions closed (by exit reason)",
		}, []string{"exit_reason"}),
		LifecycleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scalper_lifecycle_errors_total",
			Help: "Lifecycle runs ending in error (by step)",
		}, []string{"step"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_store_errors_total",
			Help: "Trade journal write failures",
		}),
		FillWaitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalper_fill_wait_duration_seconds",
			Help:    "Time from order submit to fill confirmation",
			Buckets: prometheus.DefBuckets,
		}),
		HoldDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scalper_hold_duration_seconds",
			Help:    "Time a position is held before exit",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90},
		}),
		BusySymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_busy_symbols",
			Help: "Symbols with a lifecycle run in flight",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scalper_open_positions",
			Help: "Currently open positions",
		}),
		FeedTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_feed_ticks_total",
			Help: "Ticks received from the quote feed",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_feed_reconnects_total",
			Help: "Quote feed reconnection attempts",
		}),
		FeedDroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scalper_feed_dropped_ticks_total",
			Help: "Ticks dropped on a full ring buffer",
		}),
	}

	prometheus.MustRegister(
		m.EvaluationsTotal,
		m.SkipsTotal,
		m.TradesOpened,
		m.TradesClosed,
		m.LifecycleErrors,
		m.StoreErrors,
		m.FillWaitDur,
		m.HoldDur,
		m.BusySymbols,
		m.OpenPositions,
		m.FeedTicksTotal,
		m.FeedReconnects,
		m.FeedDroppedTicks,
	)

	return m
}

// HealthStatus represents daemon health for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool      `json:"feed_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the journal database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is cancelled.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedConnected   bool    `json:"feed_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:   h.FeedConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
