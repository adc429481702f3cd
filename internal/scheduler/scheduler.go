// Package scheduler drives the watch-list: on every tick it launches one
// lifecycle run per idle symbol, each on its own goroutine. It never waits
// for prior runs before ticking again, and it never launches a second run for
// a busy symbol.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"scalping-systemv1/internal/logger"
	"scalping-systemv1/internal/metrics"
	"scalping-systemv1/internal/notification"
	"scalping-systemv1/internal/taskgroup"
)

// Runner executes one lifecycle run for one symbol.
type Runner interface {
	Run(ctx context.Context, symbol string) error
}

// Config tunes the scheduler.
type Config struct {
	// TickInterval between watch-list sweeps. Default 1s.
	TickInterval time.Duration
	// Gate, when non-nil, is consulted each tick; a false result skips the
	// sweep (used for the market-hours window).
	Gate func(time.Time) bool
}

// Scheduler launches and tracks lifecycle runs.
type Scheduler struct {
	cfg      Config
	table    *SymbolTable
	runner   Runner
	group    *taskgroup.Group
	notifier notification.Notifier
	prom     *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Scheduler over the given symbol table. notifier and prom may
// be nil.
func New(cfg Config, table *SymbolTable, runner Runner, notifier notification.Notifier,
	prom *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg,
		table:    table,
		runner:   runner,
		group:    taskgroup.New(logger),
		notifier: notifier,
		prom:     prom,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled, then drains: a stop only prevents new
// runs, in-flight lifecycles complete before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		slog.Int("symbols", len(s.table.Symbols())),
		slog.Duration("tick", s.cfg.TickInterval))

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return
		case now := <-ticker.C:
			if s.cfg.Gate != nil && !s.cfg.Gate(now) {
				continue
			}
			s.sweep(ctx)
		}
	}
}

// sweep launches a run for every idle symbol. Busy symbols are skipped; the
// busy flag is released on every exit path of the run, panics included.
func (s *Scheduler) sweep(ctx context.Context) {
	for _, symbol := range s.table.Symbols() {
		if !s.table.TryAcquire(symbol) {
			continue
		}
		symbol := symbol
		s.group.Go("lifecycle/"+symbol, func() {
			defer s.release(symbol)
			if s.prom != nil {
				s.prom.BusySymbols.Inc()
			}
			// A stop only prevents new runs; a run already in flight must
			// finish its exit leg even while the scheduler drains, so it
			// gets a context detached from the stop signal.
			runCtx := logger.WithTraceID(context.WithoutCancel(ctx), logger.NewTraceID())
			if err := s.runner.Run(runCtx, symbol); err != nil {
				s.logger.Error("lifecycle run failed",
					slog.String("symbol", symbol),
					slog.String("err", err.Error()))
			}
		})
	}
}

func (s *Scheduler) release(symbol string) {
	s.table.Release(symbol)
	if s.prom != nil {
		s.prom.BusySymbols.Dec()
	}
}

// shutdown waits for in-flight runs to finish and sends the stop notice.
func (s *Scheduler) shutdown(ctx context.Context) {
	inflight := s.group.Active()
	s.logger.Info("scheduler stopping", slog.Int("inflight", inflight))
	s.group.Wait()

	// ctx is already cancelled; give the notification its own deadline.
	notifyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	notification.BestEffort(notifyCtx, s.notifier, notification.Alert{
		Level:   notification.AlertWarning,
		Title:   "scalper stopped",
		Message: "scheduler shut down, all in-flight runs drained",
	})
	s.logger.Info("scheduler stopped")
}
