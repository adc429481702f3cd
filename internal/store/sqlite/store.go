// Package sqlite persists the trade journal. Writes are serialized behind a
// mutex so concurrent lifecycle runs never interleave partial records.
//
// Records are two-phase: a row is inserted with status OPEN immediately after
// the entry fill, and finalized with the exit leg. A process crash mid-trade
// therefore leaves a visible OPEN row instead of losing the trade.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"scalping-systemv1/internal/model"
)

// Store is the append-only trade journal backed by SQLite.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (or creates) the journal database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol       TEXT NOT NULL,
		side         TEXT NOT NULL,
		status       TEXT NOT NULL,
		qty          INTEGER NOT NULL,
		entry_price  REAL NOT NULL,
		exit_price   REAL NOT NULL DEFAULT 0,
		entry_ts     DATETIME NOT NULL,
		exit_ts      DATETIME,
		pressure     REAL NOT NULL DEFAULT 0,
		spread       REAL NOT NULL DEFAULT 0,
		macd_hist    REAL NOT NULL DEFAULT 0,
		volume_spike INTEGER NOT NULL DEFAULT 0,
		exit_reason  TEXT NOT NULL DEFAULT '',
		pnl          REAL NOT NULL DEFAULT 0,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_ts ON trades(entry_ts);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[store] opened trade journal at %s", dbPath)
	return &Store{db: db}, nil
}

// Open inserts a new OPEN record right after the entry fill and returns the
// row ID used to finalize it.
func (s *Store) Open(t model.TradeRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO trades (symbol, side, status, qty, entry_price, entry_ts, pressure, spread, macd_hist, volume_spike)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol,
		string(t.Side),
		string(model.TradeOpen),
		t.Qty,
		t.EntryPrice,
		t.EntryTS.UTC().Format(time.RFC3339Nano),
		t.Pressure,
		t.Spread,
		t.MACDHist,
		boolToInt(t.VolumeSpike),
	)
	if err != nil {
		return 0, fmt.Errorf("journal open: %w", err)
	}
	return res.LastInsertId()
}

// Finalize completes (or errors out) a previously opened record.
func (s *Store) Finalize(id int64, status model.TradeStatus, exitPrice float64, exitTS time.Time, reason model.ExitReason, pnl float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE trades SET status = ?, exit_price = ?, exit_ts = ?, exit_reason = ?, pnl = ? WHERE id = ?`,
		string(status),
		exitPrice,
		exitTS.UTC().Format(time.RFC3339Nano),
		string(reason),
		pnl,
		id,
	)
	if err != nil {
		return fmt.Errorf("journal finalize: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal finalize: no record with id %d", id)
	}
	return nil
}

// RecentTrades returns the last limit trades, newest first.
func (s *Store) RecentTrades(limit int) ([]model.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, symbol, side, status, qty, entry_price, exit_price, entry_ts,
		        COALESCE(exit_ts, ''), pressure, spread, macd_hist, volume_spike, exit_reason, pnl
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var (
			t                model.TradeRecord
			side, status     string
			entryTS, exitTS  string
			reason           string
			spike            int
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &status, &t.Qty, &t.EntryPrice, &t.ExitPrice,
			&entryTS, &exitTS, &t.Pressure, &t.Spread, &t.MACDHist, &spike, &reason, &t.PnL); err != nil {
			return nil, err
		}
		t.Side = model.Side(side)
		t.Status = model.TradeStatus(status)
		t.ExitReason = model.ExitReason(reason)
		t.VolumeSpike = spike != 0
		t.EntryTS, _ = time.Parse(time.RFC3339Nano, entryTS)
		if exitTS != "" {
			t.ExitTS, _ = time.Parse(time.RFC3339Nano, exitTS)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for liveness checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
