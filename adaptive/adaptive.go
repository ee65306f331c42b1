// Package adaptive nudges strategy thresholds based on observed signal and
// outcome frequency. It is a hysteresis controller with three discrete
// rules, not a PID loop: stale strategies loosen, cold streaks tighten, hot
// streaks loosen. It never evaluates a strategy more than once per cadence
// window, which is what prevents oscillation.
package adaptive

import (
	"context"
	"time"

	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/metrics"
	"github.com/evdnx/fxscan/strategy"
)

// Controller runs the feedback loop over a set of strategies.
type Controller struct {
	cfg        config.AdaptiveConfig
	strategies []*strategy.Strategy
	log        logger.Logger
	now        func() time.Time
}

// New validates the config and builds a controller. now may be nil.
func New(cfg config.AdaptiveConfig, strategies []*strategy.Strategy, log logger.Logger, now func() time.Time) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{cfg: cfg, strategies: strategies, log: log, now: now}, nil
}

// Run ticks on the configured cadence until the context is cancelled. The
// controller never touches the broker, so it cannot block on network I/O.
func (c *Controller) Run(ctx context.Context) {
	t := time.NewTicker(c.cfg.Cadence)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.TickOnce(c.now())
		}
	}
}

// TickOnce evaluates every strategy once. Exported for tests and for
// callers driving the cadence themselves.
func (c *Controller) TickOnce(now time.Time) {
	for _, s := range c.strategies {
		c.evaluate(s, now)
	}
}

func (c *Controller) evaluate(s *strategy.Strategy, now time.Time) {
	st := s.AdaptationState()

	// One evaluation per cadence window; a re-check inside the window is a
	// no-op regardless of the counters.
	if !st.LastAdaptation.IsZero() && now.Sub(st.LastAdaptation) < c.cfg.Cadence {
		return
	}

	// Rule 1: nothing fired for too long. Loosen and start over.
	if now.Sub(st.LastSignal) > c.cfg.StaleAfter {
		t := s.Loosen(c.cfg.LoosenPct)
		s.ResetAdaptation(now)
		metrics.AdaptationEvents.WithLabelValues("loosen").Inc()
		c.log.Info("thresholds_loosened",
			logger.String("strategy", s.Name()),
			logger.String("trigger", "stale"),
			logger.Float64("min_confidence", t.MinConfidence),
		)
		return
	}

	if st.Samples() < c.cfg.MinSamples {
		return
	}
	wr := st.WinRate()

	// Rule 2: enough samples and a poor win rate. Tighten.
	if wr < c.cfg.LowWaterPct {
		t := s.Tighten(c.cfg.TightenPct)
		s.ResetAdaptation(now)
		metrics.AdaptationEvents.WithLabelValues("tighten").Inc()
		c.log.Info("thresholds_tightened",
			logger.String("strategy", s.Name()),
			logger.Float64("win_rate", wr),
			logger.Float64("min_confidence", t.MinConfidence),
		)
		return
	}

	// Rule 3: a strong win rate earns more opportunities. Loosen.
	if wr > c.cfg.HighWaterPct {
		t := s.Loosen(c.cfg.LoosenPct)
		s.ResetAdaptation(now)
		metrics.AdaptationEvents.WithLabelValues("loosen").Inc()
		c.log.Info("thresholds_loosened",
			logger.String("strategy", s.Name()),
			logger.String("trigger", "win_rate"),
			logger.Float64("win_rate", wr),
			logger.Float64("min_confidence", t.MinConfidence),
		)
	}
}
