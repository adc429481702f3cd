package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"scalping-systemv1/config"
	"scalping-systemv1/internal/broker"
	"scalping-systemv1/internal/lifecycle"
	"scalping-systemv1/internal/logger"
	"scalping-systemv1/internal/marketdata"
	"scalping-systemv1/internal/marketdata/ws"
	"scalping-systemv1/internal/markethours"
	"scalping-systemv1/internal/metrics"
	"scalping-systemv1/internal/model"
	"scalping-systemv1/internal/monitor"
	"scalping-systemv1/internal/notification"
	"scalping-systemv1/internal/ringbuf"
	"scalping-systemv1/internal/scheduler"
	redisstore "scalping-systemv1/internal/store/redis"
	sqlitestore "scalping-systemv1/internal/store/sqlite"
	"scalping-systemv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[scalperd] starting...")

	// ---- Load config from env / .env ----
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[scalperd] %v", err)
	}

	slogger := logger.Init("scalperd", parseLevel(cfg.LogLevel), cfg.LogFile)
	slogger.Info("config loaded",
		slog.Any("watchlist", cfg.Watchlist),
		slog.String("broker", cfg.BrokerMode),
		slog.Float64("notional", cfg.TradeNotional))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Contexts for graceful shutdown ----
	// ctx stops the scheduler on a signal. infraCtx keeps the feed, cache,
	// and status plumbing alive through the drain, so in-flight exit legs
	// still see fresh quotes and a working broker; it is cancelled only
	// after the scheduler returns.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	infraCtx, infraCancel := context.WithCancel(context.Background())
	defer infraCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Trade journal (SQLite) ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[scalperd] cannot create %s: %v", dir, err)
		}
	}
	store, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[scalperd] sqlite init failed: %v", err)
	}
	defer store.Close()
	health.SetSQLiteOK(true)
	log.Println("[scalperd] trade journal ready")

	// ---- Status publisher (Redis, optional) ----
	var status *redisstore.Publisher
	if cfg.RedisAddr != "" {
		status, err = redisstore.New(redisstore.Config{Addr: cfg.RedisAddr})
		if err != nil {
			log.Printf("[scalperd] WARNING: redis init failed: %v (continuing without redis)", err)
			status = nil
			health.SetRedisConnected(false)
		} else {
			health.SetRedisConnected(true)
			defer status.Close()
		}
	}

	health.StartLivenessChecker(infraCtx, status.Client(), store.DB(), 15*time.Second)

	// ---- Market data: WS feed -> ring -> cache ----
	ring := ringbuf.New(16384)
	cache := marketdata.NewCache(marketdata.CacheConfig{
		BarInterval: cfg.BarInterval,
		MaxBars:     cfg.Lookback * 3,
		MaxQuoteAge: cfg.QuoteMaxAge,
	})
	go cache.Run(infraCtx, ring)

	streamer, err := ws.New(ws.Config{URL: cfg.FeedURL})
	if err != nil {
		log.Fatalf("[scalperd] bad FEED_URL %q: %v", cfg.FeedURL, err)
	}
	streamer.OnTick = func(t model.Tick) {
		prom.FeedTicksTotal.Inc()
		health.SetFeedConnected(true)
		health.SetLastTickTime(t.TS)
	}
	streamer.OnReconnect = func() {
		prom.FeedReconnects.Inc()
		health.SetFeedConnected(false)
	}
	streamer.OnDrop = func() {
		prom.FeedDroppedTicks.Inc()
	}
	go func() {
		if err := streamer.Start(infraCtx, ring); err != nil {
			log.Printf("[scalperd] feed stopped: %v", err)
		}
	}()

	// ---- Broker gateway ----
	var gateway broker.Gateway
	switch cfg.BrokerMode {
	case "rest":
		gateway = broker.NewRESTGateway(broker.RESTConfig{
			BaseURL:    cfg.BrokerURL,
			APIKey:     cfg.APIKey,
			ClientCode: cfg.ClientCode,
			Password:   cfg.Password,
			TOTPSecret: cfg.TOTPSecret,
		})
		log.Printf("[scalperd] broker: rest (%s)", cfg.BrokerURL)
	default:
		gateway = broker.NewPaperGateway(cache, cfg.SlippageBps)
		log.Printf("[scalperd] broker: paper (slippage %.1f bps)", cfg.SlippageBps)
	}

	// ---- Notifications ----
	notifier := buildNotifier(cfg)

	// ---- Strategy, monitor, lifecycle ----
	eval := strategy.NewEvaluator(strategy.Thresholds{
		PressureMin: cfg.PressureMin,
		SpreadMax:   cfg.SpreadMax,
	})
	watcher := monitor.New(cache, monitor.Config{
		PollInterval: cfg.MonitorPoll,
		MaxHold:      cfg.MaxHold,
	})
	controller := lifecycle.New(lifecycle.Config{
		Notional:     cfg.TradeNotional,
		ProfitTarget: cfg.ProfitTarget,
		StopLossPct:  cfg.StopLossPct,
		BarInterval:  cfg.BarInterval,
		Lookback:     cfg.Lookback,
		FillPoll:     cfg.FillPoll,
		FillTimeout:  cfg.FillTimeout,
	}, cache, gateway, store, watcher, eval, notifier, status, prom, slogger)

	// ---- Scheduler over the watch-list ----
	table := scheduler.NewSymbolTable(cfg.Watchlist)
	schedCfg := scheduler.Config{TickInterval: cfg.LoopDelay}
	if cfg.MarketHoursEnabled {
		schedCfg.Gate = markethours.IsMarketOpen
		log.Println("[scalperd] market-hours gate enabled (NSE)")
	}
	sched := scheduler.New(schedCfg, table, controller, notifier, prom, slogger)

	notification.BestEffort(ctx, notifier, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "scalper started",
		Message: "watching " + strings.Join(table.Symbols(), ", "),
	})

	// ---- Heartbeat to Redis ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-infraCtx.Done():
				return
			case <-ticker.C:
				status.Heartbeat(infraCtx)
			}
		}
	}()

	// ---- Run until signal; Run drains in-flight lifecycles before return ----
	go func() {
		sig := <-sigCh
		log.Printf("[scalperd] received %v, draining...", sig)
		cancel()
	}()

	sched.Run(ctx)

	// Drain is complete; now the plumbing may go.
	infraCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[scalperd] stopped")
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	var multi notification.Multi
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		multi = append(multi, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
		log.Println("[scalperd] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[scalperd] webhook notifications enabled")
	}
	if len(multi) == 0 {
		return notification.NewLogNotifier()
	}
	return multi
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
