package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TradeNotional != 5000 {
		t.Errorf("TradeNotional = %v, want 5000", cfg.TradeNotional)
	}
	if cfg.ProfitTarget != 0.001 {
		t.Errorf("ProfitTarget = %v, want 0.001", cfg.ProfitTarget)
	}
	if cfg.StopLossPct != 0.004 {
		t.Errorf("StopLossPct = %v, want 0.004", cfg.StopLossPct)
	}
	if cfg.BrokerMode != "paper" {
		t.Errorf("BrokerMode = %q, want paper", cfg.BrokerMode)
	}
	if len(cfg.Watchlist) == 0 {
		t.Error("Watchlist is empty")
	}
}

func TestLoadWatchlistOverride(t *testing.T) {
	t.Setenv("WATCHLIST", "SBIN,ICICIBANK")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Watchlist) != 2 || cfg.Watchlist[0] != "SBIN" || cfg.Watchlist[1] != "ICICIBANK" {
		t.Fatalf("Watchlist = %v, want [SBIN ICICIBANK]", cfg.Watchlist)
	}
}

func TestLoadRejectsBadBroker(t *testing.T) {
	t.Setenv("BROKER", "zerodha")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown broker mode")
	}
}

func TestLoadRestRequiresCredentials(t *testing.T) {
	t.Setenv("BROKER", "rest")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for rest mode without credentials")
	}
}
