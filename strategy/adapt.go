package strategy

import (
	"math"
	"time"

	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/types"
)

// Adaptation accessors. The adaptive controller runs on its own timer
// goroutine; everything here takes the strategy mutex so threshold writes
// and the scanner's reads are strictly serialized.

// AdaptationState returns a copy of the current counters.
func (s *Strategy) AdaptationState() types.AdaptationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapt
}

// RecordOutcome credits a closed trade to the win/loss counters. Execution
// failures are non-events and must not be recorded.
func (s *Strategy) RecordOutcome(won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if won {
		s.adapt.Wins++
	} else {
		s.adapt.Losses++
	}
}

// Thresholds returns the live threshold snapshot.
func (s *Strategy) Thresholds() config.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// Loosen relaxes all thresholds by pct: the confidence floor drops (clamped
// at ConfidenceFloor) while the volatility and spread ceilings rise (clamped
// at twice their construction-time base). Returns the new snapshot.
func (s *Strategy) Loosen(pct float64) config.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds.MinConfidence = math.Max(ConfidenceFloor, s.thresholds.MinConfidence*(1-pct))
	s.thresholds.MaxVolatility = math.Min(s.base.MaxVolatility*2, s.thresholds.MaxVolatility*(1+pct))
	s.thresholds.MaxSpreadPips = math.Min(s.base.MaxSpreadPips*2, s.thresholds.MaxSpreadPips*(1+pct))
	return s.thresholds
}

// Tighten is the inverse of Loosen: confidence rises (clamped at
// ConfidenceCeil), volatility and spread ceilings drop (clamped at half
// their base). Returns the new snapshot.
func (s *Strategy) Tighten(pct float64) config.Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds.MinConfidence = math.Min(ConfidenceCeil, s.thresholds.MinConfidence*(1+pct))
	s.thresholds.MaxVolatility = math.Max(s.base.MaxVolatility/2, s.thresholds.MaxVolatility*(1-pct))
	s.thresholds.MaxSpreadPips = math.Max(s.base.MaxSpreadPips/2, s.thresholds.MaxSpreadPips*(1-pct))
	return s.thresholds
}

// ResetAdaptation zeroes the three counters together (never partially) and
// stamps the adaptation time.
func (s *Strategy) ResetAdaptation(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapt.Signals = 0
	s.adapt.Wins = 0
	s.adapt.Losses = 0
	s.adapt.LastAdaptation = now
}
