package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scalping-systemv1/internal/logger"
)

// countingRunner records per-symbol concurrency and total runs.
type countingRunner struct {
	mu        sync.Mutex
	running   map[string]int
	maxConcur map[string]int
	total     atomic.Int64
	hold      time.Duration
	err       error
}

func newCountingRunner(hold time.Duration) *countingRunner {
	return &countingRunner{
		running:   make(map[string]int),
		maxConcur: make(map[string]int),
		hold:      hold,
	}
}

func (r *countingRunner) Run(ctx context.Context, symbol string) error {
	r.mu.Lock()
	r.running[symbol]++
	if r.running[symbol] > r.maxConcur[symbol] {
		r.maxConcur[symbol] = r.running[symbol]
	}
	r.mu.Unlock()

	time.Sleep(r.hold)
	r.total.Add(1)

	r.mu.Lock()
	r.running[symbol]--
	r.mu.Unlock()
	return r.err
}

func TestSymbolTable_TryAcquireRelease(t *testing.T) {
	tab := NewSymbolTable([]string{"A", "B", "A", ""})

	if got := tab.Symbols(); len(got) != 2 {
		t.Fatalf("symbols = %v, want deduped [A B]", got)
	}
	if !tab.TryAcquire("A") {
		t.Fatal("first acquire must succeed")
	}
	if tab.TryAcquire("A") {
		t.Fatal("second acquire on busy symbol must fail")
	}
	if !tab.IsBusy("A") || tab.BusyCount() != 1 {
		t.Error("busy state not reflected")
	}
	tab.Release("A")
	if tab.IsBusy("A") {
		t.Error("release must clear the flag")
	}
	if !tab.TryAcquire("A") {
		t.Error("acquire after release must succeed")
	}
	if tab.TryAcquire("UNKNOWN") {
		t.Error("unknown symbol must not be acquirable")
	}
}

func TestScheduler_NeverOverlapsRunsPerSymbol(t *testing.T) {
	tab := NewSymbolTable([]string{"A", "B", "C"})
	// Runs hold longer than the tick, so overlap would occur if the busy
	// flag were broken.
	runner := newCountingRunner(20 * time.Millisecond)
	s := New(Config{TickInterval: 2 * time.Millisecond}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	runner.mu.Lock()
	defer runner.mu.Unlock()
	for sym, max := range runner.maxConcur {
		if max > 1 {
			t.Errorf("symbol %s saw %d concurrent runs, want at most 1", sym, max)
		}
	}
	if runner.total.Load() == 0 {
		t.Error("expected at least one completed run")
	}
}

func TestScheduler_BusyClearedAfterError(t *testing.T) {
	tab := NewSymbolTable([]string{"A"})
	runner := newCountingRunner(time.Millisecond)
	runner.err = errors.New("boom")
	s := New(Config{TickInterval: 2 * time.Millisecond}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	// Errors must not leak the busy flag: the symbol keeps getting rescheduled.
	if runner.total.Load() < 2 {
		t.Errorf("runs = %d, want repeated runs despite errors", runner.total.Load())
	}
	if tab.BusyCount() != 0 {
		t.Errorf("busy count = %d after drain, want 0", tab.BusyCount())
	}
}

func TestScheduler_DrainsInFlightRunsOnStop(t *testing.T) {
	tab := NewSymbolTable([]string{"A"})
	runner := newCountingRunner(30 * time.Millisecond)
	s := New(Config{TickInterval: 2 * time.Millisecond}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // a run is now in flight
	cancel()
	<-done

	if runner.total.Load() == 0 {
		t.Error("stop must wait for the in-flight run to complete")
	}
	if tab.BusyCount() != 0 {
		t.Errorf("busy count = %d after drain, want 0", tab.BusyCount())
	}
}

// drainProbeRunner blocks until released and records what the run context
// looked like while the scheduler was draining it.
type drainProbeRunner struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
	traceID string
}

func (r *drainProbeRunner) Run(ctx context.Context, symbol string) error {
	close(r.started)
	<-r.release
	// By now the operator stop has fired and the scheduler is draining.
	r.ctxErr = ctx.Err()
	r.traceID = logger.TraceID(ctx)
	return nil
}

func TestScheduler_DrainedRunKeepsLiveContext(t *testing.T) {
	tab := NewSymbolTable([]string{"A"})
	runner := &drainProbeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(Config{TickInterval: 2 * time.Millisecond}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-runner.started
	cancel()
	time.Sleep(10 * time.Millisecond) // scheduler is now blocked in the drain
	close(runner.release)
	<-done

	// The exit leg of an in-flight trade still issues broker calls; a
	// cancelled context would abort them mid-close.
	if runner.ctxErr != nil {
		t.Errorf("drained run saw ctx error %v, want live context", runner.ctxErr)
	}
	if runner.traceID == "" {
		t.Error("run context carries no trace ID")
	}
}

func TestScheduler_StampsDistinctTraceIDs(t *testing.T) {
	tab := NewSymbolTable([]string{"A"})
	var mu sync.Mutex
	seen := make(map[string]bool)
	runner := runnerFunc(func(ctx context.Context, symbol string) error {
		mu.Lock()
		seen[logger.TraceID(ctx)] = true
		mu.Unlock()
		return nil
	})
	s := New(Config{TickInterval: 2 * time.Millisecond}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Errorf("saw %d distinct trace IDs, want one per run", len(seen))
	}
	if seen[""] {
		t.Error("a run was launched without a trace ID")
	}
}

type runnerFunc func(ctx context.Context, symbol string) error

func (f runnerFunc) Run(ctx context.Context, symbol string) error { return f(ctx, symbol) }

func TestScheduler_GateSkipsSweep(t *testing.T) {
	tab := NewSymbolTable([]string{"A"})
	runner := newCountingRunner(time.Millisecond)
	s := New(Config{
		TickInterval: 2 * time.Millisecond,
		Gate:         func(time.Time) bool { return false },
	}, tab, runner, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if runner.total.Load() != 0 {
		t.Errorf("runs = %d with a closed gate, want 0", runner.total.Load())
	}
}
