// Package risk gates trade candidates against account and portfolio
// constraints. The gate is stateless per call: it evaluates a fixed,
// ordered list of checks and reports the first failure as the reason, so
// callers always log a deterministic diagnosis.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/instrument"
)

// CheckInput bundles the current account/portfolio snapshot for one
// candidate evaluation.
type CheckInput struct {
	Instrument       string
	CurrentPositions int
	OpenInstruments  []string
	SignalStrength   float64
	SpreadPips       float64
	MarginUsedPct    float64
	AccountBalance   float64
}

// Gate evaluates candidates against a RiskLimits snapshot.
type Gate struct {
	limits config.RiskLimits
	now    func() time.Time
}

// NewGate builds a gate. now may be nil, in which case time.Now is used;
// tests inject a fixed clock for the session check.
func NewGate(limits config.RiskLimits, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{limits: limits, now: now}
}

// Limits returns the active limits snapshot.
func (g *Gate) Limits() config.RiskLimits { return g.limits }

// ReasonAccepted is returned when every check passes.
const ReasonAccepted = "All checks passed"

// CanOpenPosition runs the checks in their fixed order and short-circuits on
// the first failure. The order is part of the contract: callers log the
// first reason, and reordering would change what gets diagnosed.
func (g *Gate) CanOpenPosition(in CheckInput) (bool, string) {
	lim := g.limits

	if in.CurrentPositions >= lim.MaxConcurrentPositions {
		return false, fmt.Sprintf("Max positions reached (%d/%d)",
			in.CurrentPositions, lim.MaxConcurrentPositions)
	}
	if in.SignalStrength < lim.MinSignalStrength {
		return false, fmt.Sprintf("Signal strength %.2f below minimum %.2f",
			in.SignalStrength, lim.MinSignalStrength)
	}
	if in.SpreadPips > lim.MaxSpreadPips {
		return false, fmt.Sprintf("Spread %.1f pips exceeds maximum %.1f",
			in.SpreadPips, lim.MaxSpreadPips)
	}
	if in.MarginUsedPct >= lim.MaxMarginUsagePct {
		return false, fmt.Sprintf("Margin usage %.1f%% at or above maximum %.1f%%",
			in.MarginUsedPct, lim.MaxMarginUsagePct)
	}
	if !InSession(g.now(), lim.Sessions) {
		return false, "Outside trading sessions"
	}
	if n := instrument.CorrelatedCount(in.Instrument, in.OpenInstruments); n >= lim.MaxCorrelatedPairs {
		return false, fmt.Sprintf("Correlated pairs open (%d) at or above maximum %d",
			n, lim.MaxCorrelatedPairs)
	}
	if avail := 100 - in.MarginUsedPct; avail < lim.MinMarginAvailablePct {
		return false, fmt.Sprintf("Margin available %.1f%% below minimum %.1f%%",
			avail, lim.MinMarginAvailablePct)
	}
	return true, ReasonAccepted
}

// InSession reports whether t falls inside any configured window. An empty
// session list means trading is always allowed (paper setups).
func InSession(t time.Time, sessions []config.SessionWindow) bool {
	if len(sessions) == 0 {
		return true
	}
	for _, s := range sessions {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// CalcUnits sizes a position so that the stop-loss distance risks riskPct of
// equity. The result is floored to whole units; 0 means "too small, skip".
func CalcUnits(equity, riskPct, stopDistance float64) float64 {
	if equity <= 0 || riskPct <= 0 || stopDistance <= 0 {
		return 0
	}
	return math.Floor(equity * riskPct / stopDistance)
}
