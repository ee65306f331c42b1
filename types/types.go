package types

import (
	"fmt"
	"time"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// MarketTick is a single observed quote for one instrument. Immutable once
// created; strategies copy the mid price into their own history.
type MarketTick struct {
	Instrument      string
	Bid             float64
	Ask             float64
	Time            time.Time
	IsLive          bool
	Spread          float64
	VolatilityScore float64
	Regime          string
	Confidence      float64
}

// Mid returns the quote midpoint, or 0 when either side is missing.
func (t MarketTick) Mid() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 0
	}
	return (t.Bid + t.Ask) / 2
}

// Candle is one bar from the broker's candles endpoint.
type Candle struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Complete bool
}

// TradeCandidate is a fully formed signal: instrument, direction, sizing and
// protective levels. It is consumed once by the risk gate and then by the
// execution layer; a rejected candidate is simply dropped.
type TradeCandidate struct {
	Instrument  string
	Side        Side
	Units       float64
	EntryPrice  float64
	StopLoss    float64
	TakeProfit  float64
	Confidence  float64
	Strategy    string
	Reason      string
	GeneratedAt time.Time
}

// Validate checks the stop/target sidedness invariant: a BUY keeps its stop
// below entry and target above, a SELL the inverse.
func (c TradeCandidate) Validate() error {
	switch c.Side {
	case Buy:
		if !(c.StopLoss < c.EntryPrice && c.EntryPrice < c.TakeProfit) {
			return fmt.Errorf("BUY %s: stop %.5f / entry %.5f / target %.5f out of order",
				c.Instrument, c.StopLoss, c.EntryPrice, c.TakeProfit)
		}
	case Sell:
		if !(c.TakeProfit < c.EntryPrice && c.EntryPrice < c.StopLoss) {
			return fmt.Errorf("SELL %s: target %.5f / entry %.5f / stop %.5f out of order",
				c.Instrument, c.TakeProfit, c.EntryPrice, c.StopLoss)
		}
	default:
		return fmt.Errorf("unknown side %q", c.Side)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", c.Confidence)
	}
	return nil
}

// AccountSnapshot is the read-mostly account state pulled from the broker
// once per scan. The core never persists it.
type AccountSnapshot struct {
	ID              string
	Balance         float64
	MarginUsed      float64
	MarginAvailable float64
	OpenTradeCount  int
}

// MarginUsedPct returns margin usage as a percentage of total margin.
func (a AccountSnapshot) MarginUsedPct() float64 {
	total := a.MarginUsed + a.MarginAvailable
	if total <= 0 {
		return 0
	}
	return a.MarginUsed / total * 100
}

type OpenTrade struct {
	Instrument string
	Side       Side
	Units      float64
	EntryPrice float64
}

// ExecutionResult is the execution layer's report back to the scanner.
type ExecutionResult struct {
	OrderID    string
	Instrument string
	Units      float64
	Submitted  time.Time
}

// AdaptationState holds the per-strategy counters the adaptive controller
// feeds on. The three counters are only ever reset together.
type AdaptationState struct {
	Signals        int
	Wins           int
	Losses         int
	LastAdaptation time.Time
	LastSignal     time.Time
}

// Samples returns the number of concluded outcomes since the last adaptation.
func (a AdaptationState) Samples() int { return a.Wins + a.Losses }

// WinRate returns the fraction of wins among concluded outcomes, or 0 when
// there are none.
func (a AdaptationState) WinRate() float64 {
	n := a.Samples()
	if n == 0 {
		return 0
	}
	return float64(a.Wins) / float64(n)
}
