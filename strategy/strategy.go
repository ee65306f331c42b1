// Package strategy turns market ticks into trade candidates. There is one
// parameterized Strategy type: every deployment difference (instruments,
// indicator periods, thresholds, exit sizing) lives in config.StrategyConfig
// rather than in per-account copies of the code.
package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/indicator"
	"github.com/evdnx/fxscan/instrument"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/metrics"
	"github.com/evdnx/fxscan/types"
)

// Confidence-threshold clamps applied by the adaptive loosen/tighten logic.
const (
	ConfidenceFloor = 0.10
	ConfidenceCeil  = 0.50
)

// Normalizer for EMA separation: a 0.05% fast/slow gap counts as full trend
// strength.
const trendStrengthNorm = 0.05

// Strategy owns one instrument set, one parameter bundle and the per-
// instrument indicator engines. All mutable state (history, thresholds,
// counters) is guarded by a single mutex because the scanner's tick loop and
// the adaptive controller's timer run on different goroutines.
type Strategy struct {
	mu sync.Mutex

	name        string
	cfg         config.StrategyConfig
	instruments []string
	engines     map[string]*indicator.Engine
	log         logger.Logger

	// Live thresholds (adapted over time) and their construction-time base,
	// used to clamp volatility/spread adaptation to [0.5x, 2x] of base.
	thresholds config.Thresholds
	base       config.Thresholds

	// Daily cap bookkeeping, UTC calendar days.
	day         time.Time
	tradesToday int

	adapt types.AdaptationState

	now func() time.Time
}

// New validates the config and builds a strategy with one indicator engine
// per instrument.
func New(name string, instruments []string, cfg config.StrategyConfig, log logger.Logger) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("strategy %q: no instruments", name)
	}
	if log == nil {
		log = logger.NewNop()
	}
	engines := make(map[string]*indicator.Engine, len(instruments))
	for _, inst := range instruments {
		engines[inst] = indicator.NewEngine(cfg.HistoryCap)
	}
	t := config.Thresholds{
		MinConfidence: cfg.MinConfidence,
		MaxVolatility: cfg.MaxVolatility,
		MaxSpreadPips: cfg.MaxSpreadPips,
	}
	s := &Strategy{
		name:        name,
		cfg:         cfg,
		instruments: append([]string(nil), instruments...),
		engines:     engines,
		log:         log,
		thresholds:  t,
		base:        t,
		now:         time.Now,
	}
	s.adapt.LastSignal = s.now()
	s.day = utcDay(s.now())
	return s, nil
}

func (s *Strategy) Name() string { return s.name }

// Instruments returns the owned instrument set.
func (s *Strategy) Instruments() []string {
	return append([]string(nil), s.instruments...)
}

// HistoryLen reports the stored price count for one instrument.
func (s *Strategy) HistoryLen(inst string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.engines[inst]; e != nil {
		return e.Len()
	}
	return 0
}

// UpdatePriceHistory pushes the mid price of every owned instrument present
// in ticks into its history. Malformed ticks are skipped per instrument; the
// call never fails as a whole.
func (s *Strategy) UpdatePriceHistory(ticks map[string]types.MarketTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateHistoryLocked(ticks)
}

func (s *Strategy) updateHistoryLocked(ticks map[string]types.MarketTick) {
	for _, inst := range s.instruments {
		tick, ok := ticks[inst]
		if !ok {
			continue
		}
		mid := tick.Mid()
		if mid <= 0 {
			s.log.Warn("tick_skipped",
				logger.String("strategy", s.name),
				logger.String("instrument", inst),
				logger.Float64("bid", tick.Bid),
				logger.Float64("ask", tick.Ask),
			)
			continue
		}
		s.engines[inst].Update(mid)
	}
}

// GenerateSignals runs the full per-tick pipeline: daily-cap rollover,
// history update, progressive-relaxation search, breakout fallback.
//
// The relaxation search is deliberately greedy: levels are tried strictest
// first and the first level yielding at least one qualifying candidate wins;
// looser levels are never evaluated afterwards.
func (s *Strategy) GenerateSignals(ticks map[string]types.MarketTick) []types.TradeCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if d := utcDay(now); !d.Equal(s.day) {
		s.day = d
		s.tradesToday = 0
	}
	if s.tradesToday >= s.cfg.MaxTradesPerDay {
		return nil
	}

	s.updateHistoryLocked(ticks)

	var out []types.TradeCandidate
	levels := config.RelaxationLevels(s.thresholds, s.cfg.RelaxSteps, s.cfg.RelaxPct)
	for _, lvl := range levels {
		for _, inst := range s.instruments {
			tick, ok := ticks[inst]
			if !ok || tick.Mid() <= 0 {
				continue
			}
			if c, ok := s.evaluate(inst, tick, lvl, now); ok {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			break // first qualifying level wins
		}
	}

	if len(out) == 0 && s.cfg.BreakoutPct > 0 {
		for _, inst := range s.instruments {
			tick, ok := ticks[inst]
			if !ok || tick.Mid() <= 0 {
				continue
			}
			if c, ok := s.breakout(inst, tick, now); ok {
				out = append(out, c)
			}
		}
	}

	if remaining := s.cfg.MaxTradesPerDay - s.tradesToday; len(out) > remaining {
		out = out[:remaining]
	}
	if len(out) > 0 {
		s.tradesToday += len(out)
		s.adapt.Signals += len(out)
		s.adapt.LastSignal = now
		metrics.SignalsGenerated.WithLabelValues(s.name).Add(float64(len(out)))
	}
	return out
}

// evaluate scores one instrument against one relaxation level. Insufficient
// history is a normal "no signal" outcome, never an error.
func (s *Strategy) evaluate(inst string, tick types.MarketTick, lvl config.Level, now time.Time) (types.TradeCandidate, bool) {
	e := s.engines[inst]
	if e == nil || e.Len() < s.cfg.MinWarmupPrices {
		return types.TradeCandidate{}, false
	}
	spread := instrument.SpreadPips(inst, tick.Bid, tick.Ask)
	if spread > lvl.MaxSpreadPips {
		return types.TradeCandidate{}, false
	}
	vol := e.Volatility(s.cfg.ATRPeriod)
	if vol > lvl.MaxVolatility {
		return types.TradeCandidate{}, false
	}

	emaFast := e.EMA(s.cfg.EMAFast)
	emaSlow := e.EMA(s.cfg.EMASlow)
	if emaFast == 0 || emaSlow == 0 {
		return types.TradeCandidate{}, false
	}
	rsi := e.RSI(s.cfg.RSIPeriod)
	mid := tick.Mid()

	var side types.Side
	switch {
	case emaFast > emaSlow && rsi >= indicator.NeutralRSI:
		side = types.Buy
	case emaFast < emaSlow && rsi <= indicator.NeutralRSI:
		side = types.Sell
	default:
		return types.TradeCandidate{}, false
	}

	conf := s.confidence(e, side, emaFast, emaSlow, rsi, mid)
	if conf < lvl.MinConfidence {
		return types.TradeCandidate{}, false
	}

	c, ok := s.build(inst, side, tick, e, conf,
		fmt.Sprintf("ema_cross level=%d", lvl.N), now)
	return c, ok
}

// confidence blends trend strength, momentum and support/resistance
// proximity into [0,1]. A BUY scores higher near support, a SELL near
// resistance.
func (s *Strategy) confidence(e *indicator.Engine, side types.Side, emaFast, emaSlow, rsi, mid float64) float64 {
	sepPct := math.Abs(emaFast-emaSlow) / mid * 100
	strength := math.Min(1, sepPct/trendStrengthNorm)
	momentum := math.Abs(rsi-indicator.NeutralRSI) / indicator.NeutralRSI

	srPos := 0.5
	if sup, res := e.SupportResistance(s.cfg.SRWindow); res > sup {
		srPos = (mid - sup) / (res - sup)
		srPos = math.Max(0, math.Min(1, srPos))
	}
	proximity := srPos // SELL: best near resistance
	if side == types.Buy {
		proximity = 1 - srPos
	}

	conf := 0.3*strength + 0.3*momentum + 0.4*proximity
	return math.Max(0, math.Min(1, conf))
}

// breakout is the last-resort check: a move larger than BreakoutPct over the
// configured lookback, in either direction. It still requires full warmup;
// there is no fabricated trade when data is thin.
func (s *Strategy) breakout(inst string, tick types.MarketTick, now time.Time) (types.TradeCandidate, bool) {
	e := s.engines[inst]
	if e == nil || e.Len() < s.cfg.MinWarmupPrices {
		return types.TradeCandidate{}, false
	}
	change := e.ChangePct(s.cfg.BreakoutLookback)
	if math.Abs(change) < s.cfg.BreakoutPct {
		return types.TradeCandidate{}, false
	}
	side := types.Buy
	if change < 0 {
		side = types.Sell
	}
	conf := math.Min(1, s.thresholds.MinConfidence+0.05)
	c, ok := s.build(inst, side, tick, e, conf,
		fmt.Sprintf("breakout move=%.2f%%", change), now)
	return c, ok
}

// build assembles a candidate with stop/target per the configured exit
// sizing and verifies the sidedness invariant before returning it.
func (s *Strategy) build(inst string, side types.Side, tick types.MarketTick, e *indicator.Engine, conf float64, reason string, now time.Time) (types.TradeCandidate, bool) {
	entry := tick.Ask
	if side == types.Sell {
		entry = tick.Bid
	}

	pip := instrument.PipSize(inst)
	stopDist := s.cfg.StopPips * pip
	tpDist := s.cfg.TakeProfitPips * pip
	if s.cfg.ExitSizing == config.ExitATR {
		if atr := e.ATR(s.cfg.ATRPeriod); atr > 0 {
			stopDist = atr * s.cfg.ATRStopMult
			tpDist = atr * s.cfg.ATRTakeProfitMult
		}
	}
	if stopDist <= 0 || tpDist <= 0 {
		return types.TradeCandidate{}, false
	}

	c := types.TradeCandidate{
		Instrument:  inst,
		Side:        side,
		Units:       s.cfg.BaseUnits,
		EntryPrice:  entry,
		Confidence:  conf,
		Strategy:    s.name,
		Reason:      reason,
		GeneratedAt: now,
	}
	if side == types.Buy {
		c.StopLoss = entry - stopDist
		c.TakeProfit = entry + tpDist
	} else {
		c.StopLoss = entry + stopDist
		c.TakeProfit = entry - tpDist
	}
	if err := c.Validate(); err != nil {
		s.log.Error("candidate_invalid",
			logger.String("strategy", s.name),
			logger.String("instrument", inst),
			logger.Err(err),
		)
		return types.TradeCandidate{}, false
	}
	return c, true
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
