package types

import (
	"math"
	"testing"
)

func TestMidRequiresBothSides(t *testing.T) {
	tick := MarketTick{Bid: 1.0999, Ask: 1.1001}
	if got := tick.Mid(); math.Abs(got-1.1000) > 1e-9 {
		t.Fatalf("expected mid 1.1000, got %v", got)
	}
	if got := (MarketTick{Bid: 0, Ask: 1.1001}).Mid(); got != 0 {
		t.Fatalf("missing bid must yield 0, got %v", got)
	}
	if got := (MarketTick{Bid: 1.0999, Ask: 0}).Mid(); got != 0 {
		t.Fatalf("missing ask must yield 0, got %v", got)
	}
}

func TestCandidateValidateSidedness(t *testing.T) {
	buy := TradeCandidate{
		Instrument: "EUR_USD", Side: Buy, Units: 1000,
		EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
		Confidence: 0.5,
	}
	if err := buy.Validate(); err != nil {
		t.Fatalf("valid BUY rejected: %v", err)
	}

	bad := buy
	bad.StopLoss, bad.TakeProfit = 1.1100, 1.0950 // inverted
	if err := bad.Validate(); err == nil {
		t.Fatal("inverted BUY must fail")
	}

	sell := buy
	sell.Side = Sell
	sell.StopLoss, sell.TakeProfit = 1.1050, 1.0900
	if err := sell.Validate(); err != nil {
		t.Fatalf("valid SELL rejected: %v", err)
	}

	bad = sell
	bad.StopLoss, bad.TakeProfit = 1.0900, 1.1050
	if err := bad.Validate(); err == nil {
		t.Fatal("inverted SELL must fail")
	}

	bad = buy
	bad.Side = "HOLD"
	if err := bad.Validate(); err == nil {
		t.Fatal("unknown side must fail")
	}

	bad = buy
	bad.Confidence = 1.2
	if err := bad.Validate(); err == nil {
		t.Fatal("confidence above 1 must fail")
	}
}

func TestMarginUsedPct(t *testing.T) {
	a := AccountSnapshot{MarginUsed: 2000, MarginAvailable: 8000}
	if got := a.MarginUsedPct(); math.Abs(got-20) > 1e-9 {
		t.Fatalf("expected 20%%, got %v", got)
	}
	if got := (AccountSnapshot{}).MarginUsedPct(); got != 0 {
		t.Fatalf("empty snapshot must report 0, got %v", got)
	}
}

func TestAdaptationStateRates(t *testing.T) {
	st := AdaptationState{Wins: 3, Losses: 1}
	if st.Samples() != 4 {
		t.Fatalf("expected 4 samples, got %d", st.Samples())
	}
	if got := st.WinRate(); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected win rate 0.75, got %v", got)
	}
	if got := (AdaptationState{}).WinRate(); got != 0 {
		t.Fatalf("no samples must report 0, got %v", got)
	}
}
