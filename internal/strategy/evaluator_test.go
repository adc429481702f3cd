package strategy

import (
	"testing"

	"scalping-systemv1/internal/indicator"
	"scalping-systemv1/internal/model"
)

func passingQuote() *model.Quote {
	return &model.Quote{Symbol: "SBIN", Last: 10.00, Bid: 10.00, Ask: 10.01}
}

func passingVector() indicator.FeatureVector {
	return indicator.FeatureVector{
		Pressure:     0.01,
		MACDHist:     0.5,
		VolumeSpike:  true,
		StrongCandle: true,
		Valid:        true,
	}
}

func TestEvaluate_AllConditionsPass(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	d := e.Evaluate("SBIN", passingQuote(), passingVector())
	if !d.Enter {
		t.Fatalf("expected entry, got breakdown %q", d.Breakdown())
	}
	if len(d.Conditions) != 5 {
		t.Fatalf("expected 5 conditions, got %d", len(d.Conditions))
	}
}

func TestEvaluate_ConditionOrderAndNames(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	d := e.Evaluate("SBIN", passingQuote(), passingVector())
	want := []string{CondPressure, CondMACDPositive, CondVolumeSpike, CondSpread, CondStrongCandle}
	for i, name := range want {
		if d.Conditions[i].Name != name {
			t.Errorf("condition %d: got %q, want %q", i, d.Conditions[i].Name, name)
		}
	}
}

// Exhaustive truth table: the aggregate must be the conjunction of the five
// conditions, for every combination.
func TestEvaluate_AggregateIsConjunction(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	for mask := 0; mask < 32; mask++ {
		fv := indicator.FeatureVector{Valid: true}
		q := passingQuote()

		if mask&1 != 0 {
			fv.Pressure = 0.01
		} else {
			fv.Pressure = 0.001
		}
		if mask&2 != 0 {
			fv.MACDHist = 0.3
		} else {
			fv.MACDHist = -0.3
		}
		fv.VolumeSpike = mask&4 != 0
		if mask&8 == 0 {
			q.Ask = q.Bid + 0.05 // spread over ceiling
		}
		fv.StrongCandle = mask&16 != 0

		d := e.Evaluate("SBIN", q, fv)

		wantEnter := mask == 31
		if d.Enter != wantEnter {
			t.Errorf("mask %05b: enter=%v, want %v (%s)", mask, d.Enter, wantEnter, d.Breakdown())
		}
		and := true
		for _, c := range d.Conditions {
			and = and && c.Pass
		}
		if d.Enter != and {
			t.Errorf("mask %05b: aggregate %v != conjunction %v", mask, d.Enter, and)
		}
	}
}

func TestEvaluate_FailsClosed(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	t.Run("invalid feature vector", func(t *testing.T) {
		d := e.Evaluate("SBIN", passingQuote(), indicator.FeatureVector{})
		if d.Enter {
			t.Error("invalid feature vector must never allow entry")
		}
	})

	t.Run("nil quote", func(t *testing.T) {
		d := e.Evaluate("SBIN", nil, passingVector())
		if d.Enter {
			t.Error("missing quote must never allow entry")
		}
		if len(d.Conditions) != 5 {
			t.Errorf("conditions must still be reported, got %d", len(d.Conditions))
		}
	})

	t.Run("non-positive bid", func(t *testing.T) {
		q := passingQuote()
		q.Bid = 0
		d := e.Evaluate("SBIN", q, passingVector())
		if d.Enter {
			t.Error("invalid quote must never allow entry")
		}
	})
}

func TestEvaluate_SpreadBoundary(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	q := passingQuote()
	q.Bid = 10.00
	q.Ask = 10.02 // spread exactly at the 0.02 ceiling — allowed
	d := e.Evaluate("SBIN", q, passingVector())
	if !d.Enter {
		t.Errorf("spread at ceiling should pass: %s", d.Breakdown())
	}
}

func TestBreakdown(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	d := e.Evaluate("SBIN", passingQuote(), indicator.FeatureVector{Valid: true})
	got := d.Breakdown()
	want := "pressure=no macd_positive=no volume_spike=no spread=ok strong_candle=no"
	if got != want {
		t.Errorf("breakdown = %q, want %q", got, want)
	}
}
