package scheduler

import "sync/atomic"

// SymbolTable owns the per-symbol busy flags for the watch-list. The flag set
// is fixed at construction; acquire/release are lock-free CAS operations, so
// the scheduler and concurrent lifecycle runs never race on shared state.
type SymbolTable struct {
	symbols []string
	busy    map[string]*atomic.Bool
}

// NewSymbolTable creates a table for the given watch-list. Duplicate and
// empty entries are dropped.
func NewSymbolTable(symbols []string) *SymbolTable {
	t := &SymbolTable{busy: make(map[string]*atomic.Bool, len(symbols))}
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := t.busy[s]; ok {
			continue
		}
		t.symbols = append(t.symbols, s)
		t.busy[s] = &atomic.Bool{}
	}
	return t
}

// Symbols returns the watch-list in registration order.
func (t *SymbolTable) Symbols() []string {
	return t.symbols
}

// TryAcquire atomically claims the symbol for a lifecycle run. Returns false
// if a run is already in flight or the symbol is unknown.
func (t *SymbolTable) TryAcquire(symbol string) bool {
	b, ok := t.busy[symbol]
	if !ok {
		return false
	}
	return b.CompareAndSwap(false, true)
}

// Release clears the busy flag. Must be called exactly once per successful
// TryAcquire, on every exit path.
func (t *SymbolTable) Release(symbol string) {
	if b, ok := t.busy[symbol]; ok {
		b.Store(false)
	}
}

// IsBusy reports whether a run is in flight for symbol.
func (t *SymbolTable) IsBusy(symbol string) bool {
	b, ok := t.busy[symbol]
	return ok && b.Load()
}

// BusyCount returns the number of symbols with a run in flight.
func (t *SymbolTable) BusyCount() int {
	n := 0
	for _, b := range t.busy {
		if b.Load() {
			n++
		}
	}
	return n
}
