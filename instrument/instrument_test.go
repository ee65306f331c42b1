package instrument

import (
	"math"
	"testing"
)

func TestPipSize(t *testing.T) {
	cases := map[string]float64{
		"EUR_USD": 0.0001,
		"GBP_USD": 0.0001,
		"USD_JPY": 0.01,
		"EUR_JPY": 0.01,
		"XAU_USD": 0.01,
		"XAG_USD": 0.01,
	}
	for inst, want := range cases {
		if got := PipSize(inst); got != want {
			t.Fatalf("%s: expected pip %v, got %v", inst, want, got)
		}
	}
}

func TestSpreadPips(t *testing.T) {
	if got := SpreadPips("EUR_USD", 1.1000, 1.1002); math.Abs(got-2) > 1e-6 {
		t.Fatalf("expected 2 pips, got %v", got)
	}
	if got := SpreadPips("XAU_USD", 2400.00, 2400.30); math.Abs(got-30) > 1e-6 {
		t.Fatalf("expected 30 pips, got %v", got)
	}
	if got := SpreadPips("EUR_USD", 1.1002, 1.1000); got != 0 {
		t.Fatalf("crossed quote should report 0, got %v", got)
	}
}

func TestCorrelatedSharedCurrency(t *testing.T) {
	if !Correlated("EUR_USD", "GBP_USD") {
		t.Fatal("EUR_USD and GBP_USD share USD")
	}
	if !Correlated("EUR_USD", "EUR_GBP") {
		t.Fatal("EUR_USD and EUR_GBP share EUR")
	}
	if !Correlated("USD_JPY", "EUR_JPY") {
		t.Fatal("JPY crosses are correlated")
	}
	if !Correlated("XAU_USD", "XAG_USD") {
		t.Fatal("metals form one group")
	}
}

func TestCorrelatedCount(t *testing.T) {
	open := []string{"GBP_USD", "EUR_GBP"}
	if got := CorrelatedCount("EUR_USD", open); got != 2 {
		t.Fatalf("expected 2 correlated pairs, got %d", got)
	}
	// the candidate itself never counts
	if got := CorrelatedCount("EUR_USD", []string{"EUR_USD"}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
