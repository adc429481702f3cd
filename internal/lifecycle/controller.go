// Package lifecycle orchestrates one symbol's trade attempt end to end:
// evaluate, enter, monitor, exit, record. One Run is one lifecycle; the
// scheduler guarantees at most one Run per symbol at a time.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"scalping-systemv1/internal/broker"
	"scalping-systemv1/internal/indicator"
	"scalping-systemv1/internal/logger"
	"scalping-systemv1/internal/marketdata"
	"scalping-systemv1/internal/metrics"
	"scalping-systemv1/internal/model"
	"scalping-systemv1/internal/monitor"
	"scalping-systemv1/internal/notification"
	redisstore "scalping-systemv1/internal/store/redis"
	"scalping-systemv1/internal/strategy"
)

// ErrFillTimeout means an order was accepted but its fill was not confirmed
// within the configured window.
var ErrFillTimeout = errors.New("fill confirmation timed out")

// StepError ties a lifecycle failure to the symbol and step where it
// happened, so the reporting channel can name both.
type StepError struct {
	Symbol string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// TradeStore is the journal the controller writes trade records to. Writes
// must be safe for concurrent callers.
type TradeStore interface {
	// Open inserts an OPEN record right after the entry fill.
	Open(model.TradeRecord) (int64, error)
	// Finalize completes the record with the exit leg.
	Finalize(id int64, status model.TradeStatus, exitPrice float64, exitTS time.Time, reason model.ExitReason, pnl float64) error
}

// Watcher holds an open position until a terminal exit reason.
type Watcher interface {
	Watch(ctx context.Context, pos model.OpenPosition) monitor.Result
}

// Config holds the per-trade parameters.
type Config struct {
	// Notional is the target exposure per trade; qty = floor(Notional/last).
	Notional float64
	// ProfitTarget is an absolute price offset above entry.
	ProfitTarget float64
	// StopLossPct is fractional: stop = entry * (1 - StopLossPct).
	StopLossPct float64

	// BarInterval and Lookback shape the series request for the indicators.
	BarInterval time.Duration
	Lookback    int

	// FillPoll and FillTimeout drive the order-confirmation loop.
	FillPoll    time.Duration
	FillTimeout time.Duration
}

func (c *Config) defaults() {
	if c.Notional == 0 {
		c.Notional = 5000
	}
	if c.ProfitTarget == 0 {
		c.ProfitTarget = 0.001
	}
	if c.StopLossPct == 0 {
		c.StopLossPct = 0.004
	}
	if c.BarInterval == 0 {
		c.BarInterval = time.Minute
	}
	if c.Lookback == 0 {
		c.Lookback = 40
	}
	if c.FillPoll == 0 {
		c.FillPoll = 200 * time.Millisecond
	}
	if c.FillTimeout == 0 {
		c.FillTimeout = 5 * time.Second
	}
}

// Controller runs trade lifecycles. It is stateless across runs; all
// per-trade state lives on the stack of Run.
type Controller struct {
	cfg      Config
	provider marketdata.Provider
	gateway  broker.Gateway
	store    TradeStore
	watcher  Watcher
	eval     *strategy.Evaluator
	notifier notification.Notifier
	status   *redisstore.Publisher // nil when Redis is disabled
	prom     *metrics.Metrics      // nil in tests
	logger   *slog.Logger
}

// New wires a Controller. notifier, status, and prom may be nil.
func New(cfg Config, provider marketdata.Provider, gateway broker.Gateway, store TradeStore,
	watcher Watcher, eval *strategy.Evaluator, notifier notification.Notifier,
	status *redisstore.Publisher, prom *metrics.Metrics, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:      cfg,
		provider: provider,
		gateway:  gateway,
		store:    store,
		watcher:  watcher,
		eval:     eval,
		notifier: notifier,
		status:   status,
		prom:     prom,
		logger:   logger,
	}
}

// Run executes one complete lifecycle for symbol: evaluate, possibly enter,
// monitor, exit, record. A nil return means either a completed trade or a
// clean skip; an error means the run aborted at the named step. The caller
// owns the symbol's busy flag and must release it on every return path.
func (c *Controller) Run(ctx context.Context, symbol string) error {
	runLog := c.runLogger(ctx)

	quote, err := c.provider.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			c.skip(symbol, "no_quote")
			return nil
		}
		return c.fail(ctx, symbol, "quote", err)
	}

	bars, err := c.provider.GetRecentSeries(ctx, symbol, c.cfg.BarInterval, c.cfg.Lookback)
	if err != nil {
		if errors.Is(err, marketdata.ErrUnavailable) {
			c.skip(symbol, "no_series")
			return nil
		}
		return c.fail(ctx, symbol, "series", err)
	}

	fv := indicator.Compute(bars)
	decision := c.eval.Evaluate(symbol, quote, fv)

	// The breakdown is emitted on every evaluation, entered or not.
	runLog.Info("evaluated",
		slog.String("symbol", symbol),
		slog.Bool("enter", decision.Enter),
		slog.String("conditions", decision.Breakdown()),
		slog.Float64("last", quote.Last),
		slog.Float64("pressure", fv.Pressure))
	c.status.PublishDecision(ctx, decision)
	if c.prom != nil {
		c.prom.EvaluationsTotal.Inc()
	}

	if !decision.Enter {
		c.skip(symbol, "signal")
		return nil
	}

	qty := int64(math.Floor(c.cfg.Notional / quote.Last))
	if qty <= 0 {
		c.skip(symbol, "zero_qty")
		return nil
	}

	// ---- Entry leg ----
	buyID, err := c.gateway.SubmitMarketOrder(ctx, symbol, qty, model.SideBuy)
	if err != nil {
		return c.fail(ctx, symbol, "entry_submit", err)
	}
	entryPrice, err := c.awaitFill(ctx, buyID)
	if err != nil {
		// Entry never confirmed: no record is written for this attempt.
		return c.fail(ctx, symbol, "entry_fill", err)
	}
	entryTS := time.Now().UTC()

	pos := model.OpenPosition{
		Symbol:      symbol,
		EntryPrice:  entryPrice,
		Qty:         qty,
		TargetPrice: entryPrice + c.cfg.ProfitTarget,
		StopPrice:   entryPrice * (1 - c.cfg.StopLossPct),
		OpenedAt:    entryTS,
	}

	// Journal the open leg immediately so a crash mid-trade leaves a visible
	// OPEN row instead of a silently lost position.
	recordID, err := c.store.Open(model.TradeRecord{
		Symbol:      symbol,
		Side:        model.SideBuy,
		Qty:         qty,
		EntryPrice:  entryPrice,
		EntryTS:     entryTS,
		Pressure:    fv.Pressure,
		Spread:      quote.Spread(),
		MACDHist:    fv.MACDHist,
		VolumeSpike: fv.VolumeSpike,
	})
	if err != nil {
		// Audit-trail loss: surfaced loudly, but the position still has to be
		// monitored and closed.
		recordID = 0
		c.reportStoreError(ctx, symbol, err)
	}

	if c.prom != nil {
		c.prom.TradesOpened.Inc()
		c.prom.OpenPositions.Inc()
		defer c.prom.OpenPositions.Dec()
	}
	c.status.PublishPosition(ctx, pos)
	notification.BestEffort(ctx, c.notifier, notification.Alert{
		Level: notification.AlertInfo,
		Title: fmt.Sprintf("ENTRY %s", symbol),
		Message: fmt.Sprintf("bought %d @ %.4f, target %.4f, stop %.4f",
			qty, entryPrice, pos.TargetPrice, pos.StopPrice),
	})

	// ---- Hold ----
	res := c.watcher.Watch(ctx, pos)
	if c.prom != nil {
		c.prom.HoldDur.Observe(res.Elapsed.Seconds())
	}
	runLog.Info("exit condition",
		slog.String("symbol", symbol),
		slog.String("reason", string(res.Reason)),
		slog.Float64("last", res.LastPrice),
		slog.Duration("held", res.Elapsed))

	// ---- Exit leg ----
	sellID, err := c.gateway.SubmitMarketOrder(ctx, symbol, qty, model.SideSell)
	if err != nil {
		return c.abandonExit(ctx, symbol, "exit_submit", recordID, res.Reason, err)
	}
	exitPrice, err := c.awaitFill(ctx, sellID)
	if err != nil {
		return c.abandonExit(ctx, symbol, "exit_fill", recordID, res.Reason, err)
	}
	exitTS := time.Now().UTC()
	pnl := (exitPrice - entryPrice) * float64(qty)

	c.status.ClearPosition(ctx, symbol)
	if recordID != 0 {
		if err := c.store.Finalize(recordID, model.TradeClosed, exitPrice, exitTS, res.Reason, pnl); err != nil {
			c.reportStoreError(ctx, symbol, err)
			return &StepError{Symbol: symbol, Step: "journal", Err: err}
		}
	}
	if c.prom != nil {
		c.prom.TradesClosed.WithLabelValues(string(res.Reason)).Inc()
	}
	notification.BestEffort(ctx, c.notifier, notification.Alert{
		Level: notification.AlertInfo,
		Title: fmt.Sprintf("EXIT %s (%s)", symbol, res.Reason),
		Message: fmt.Sprintf("sold %d @ %.4f, entry %.4f, pnl %+.4f",
			qty, exitPrice, entryPrice, pnl),
	})
	return nil
}

// awaitFill polls the order's fill state until filled, rejected, or the
// confirmation window closes.
func (c *Controller) awaitFill(ctx context.Context, orderID string) (float64, error) {
	start := time.Now()
	for {
		price, filled, err := c.gateway.GetOrderFill(ctx, orderID)
		if err != nil {
			return 0, err
		}
		if filled {
			if c.prom != nil {
				c.prom.FillWaitDur.Observe(time.Since(start).Seconds())
			}
			return price, nil
		}
		if time.Since(start) >= c.cfg.FillTimeout {
			return 0, fmt.Errorf("order %s: %w", orderID, ErrFillTimeout)
		}
		time.Sleep(c.cfg.FillPoll)
	}
}

// runLogger annotates the controller logger with the run's trace ID, when
// the scheduler stamped one into the context.
func (c *Controller) runLogger(ctx context.Context) *slog.Logger {
	if tid := logger.TraceID(ctx); tid != "" {
		return c.logger.With(slog.String("trace_id", tid))
	}
	return c.logger
}

// skip records a clean no-trade tick.
func (c *Controller) skip(symbol, reason string) {
	if c.prom != nil {
		c.prom.SkipsTotal.WithLabelValues(reason).Inc()
	}
	c.logger.Debug("skip", slog.String("symbol", symbol), slog.String("reason", reason))
}

// fail reports a pre-entry lifecycle failure. No position exists at this
// point, so a warning-level alert suffices.
func (c *Controller) fail(ctx context.Context, symbol, step string, err error) error {
	if c.prom != nil {
		c.prom.LifecycleErrors.WithLabelValues(step).Inc()
	}
	notification.BestEffort(ctx, c.notifier, notification.Alert{
		Level:   notification.AlertWarning,
		Title:   fmt.Sprintf("lifecycle error: %s", symbol),
		Message: fmt.Sprintf("step %s failed: %v", step, err),
	})
	return &StepError{Symbol: symbol, Step: step, Err: err}
}

// abandonExit handles the worst failure mode: the entry filled but the exit
// leg could not be completed. The position is economically open at the
// broker; the record is marked ERROR (never silently dropped) and the alert
// is critical. This version has no automatic retry of the sell.
func (c *Controller) abandonExit(ctx context.Context, symbol, step string, recordID int64, reason model.ExitReason, err error) error {
	if c.prom != nil {
		c.prom.LifecycleErrors.WithLabelValues(step).Inc()
	}
	if recordID != 0 {
		if ferr := c.store.Finalize(recordID, model.TradeError, 0, time.Now().UTC(), reason, 0); ferr != nil {
			c.reportStoreError(ctx, symbol, ferr)
		}
	}
	notification.BestEffort(ctx, c.notifier, notification.Alert{
		Level: notification.AlertCritical,
		Title: fmt.Sprintf("UNCLOSED POSITION %s", symbol),
		Message: fmt.Sprintf("entry filled but %s failed: %v — position may still be open at the broker, manual action required",
			step, err),
	})
	return &StepError{Symbol: symbol, Step: step, Err: err}
}

// reportStoreError surfaces a journal write failure distinctly: it is loss of
// the audit trail, not a trading failure.
func (c *Controller) reportStoreError(ctx context.Context, symbol string, err error) {
	if c.prom != nil {
		c.prom.StoreErrors.Inc()
	}
	c.logger.Error("trade journal write failed", slog.String("symbol", symbol), slog.String("err", err.Error()))
	notification.BestEffort(ctx, c.notifier, notification.Alert{
		Level:   notification.AlertCritical,
		Title:   fmt.Sprintf("journal write failed: %s", symbol),
		Message: err.Error(),
	})
}
