// Package taskgroup tracks named goroutines so their owner can count
// outstanding work and drain it on shutdown, instead of fire-and-forget
// spawning.
package taskgroup

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Group is a set of tracked goroutines.
type Group struct {
	wg     sync.WaitGroup
	active atomic.Int64
	logger *slog.Logger
}

// New creates a Group. logger may be nil.
func New(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{logger: logger}
}

// Go runs fn on a new tracked goroutine. A panic in fn is logged with its
// stack and absorbed; it never takes the process down or leaks the tracking
// slot.
func (g *Group) Go(name string, fn func()) {
	g.wg.Add(1)
	g.active.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.logger.Error("task panicked",
					slog.String("task", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			g.active.Add(-1)
			g.wg.Done()
		}()
		fn()
	}()
}

// Active returns the number of tasks currently running.
func (g *Group) Active() int {
	return int(g.active.Load())
}

// Wait blocks until every started task has finished.
func (g *Group) Wait() {
	g.wg.Wait()
}
