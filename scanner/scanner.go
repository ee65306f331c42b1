// Package scanner is the orchestration loop: per tick, every strategy
// ingests the market snapshot once, and each account referencing that
// strategy gates and executes the resulting candidates. A failure in one
// account never aborts the scan of the others.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evdnx/fxscan/broker"
	"github.com/evdnx/fxscan/executor"
	"github.com/evdnx/fxscan/feed"
	"github.com/evdnx/fxscan/instrument"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/metrics"
	"github.com/evdnx/fxscan/notify"
	"github.com/evdnx/fxscan/risk"
	"github.com/evdnx/fxscan/strategy"
	"github.com/evdnx/fxscan/types"
)

// Pair binds one account to its strategy and risk gate. Pairs referencing
// the same strategy instance form one scan group: the market event enters
// that strategy's price history once, and the candidates fan out to every
// account in the group.
type Pair struct {
	AccountID string
	Strategy  *strategy.Strategy
	Gate      *risk.Gate
	Broker    broker.Broker
}

// group collects the pairs sharing one strategy instance. Quotes are
// fetched through the first pair's broker; accounts in a group trade the
// same market.
type group struct {
	strategy *strategy.Strategy
	pairs    []*Pair
}

// Summary aggregates one scan pass for the tick notification.
type Summary struct {
	Signals  int
	Executed int
	Rejected int
	Errors   int
}

func (s *Summary) add(r Summary) {
	s.Signals += r.Signals
	s.Executed += r.Executed
	s.Rejected += r.Rejected
	s.Errors += r.Errors
}

func (s Summary) empty() bool {
	return s.Signals == 0 && s.Executed == 0 && s.Rejected == 0 && s.Errors == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("scan: %d signals, %d executed, %d rejected, %d errors",
		s.Signals, s.Executed, s.Rejected, s.Errors)
}

// Options tunes the scanner's cadence and timeouts.
type Options struct {
	Interval    time.Duration // timer tick cadence; default 5m
	CallTimeout time.Duration // per-broker-call budget; default 10s
	Events      <-chan feed.CandleEvent
}

type Scanner struct {
	pairs    []Pair
	groups   []group
	exec     executor.Executor
	notifier notify.Notifier
	log      logger.Logger
	opts     Options
	now      func() time.Time
}

func New(pairs []Pair, exec executor.Executor, notifier notify.Notifier, log logger.Logger, opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Scanner{
		pairs:    pairs,
		exec:     exec,
		notifier: notifier,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
	idx := make(map[*strategy.Strategy]int)
	for i := range s.pairs {
		st := s.pairs[i].Strategy
		gi, ok := idx[st]
		if !ok {
			gi = len(s.groups)
			idx[st] = gi
			s.groups = append(s.groups, group{strategy: st})
		}
		s.groups[gi].pairs = append(s.groups[gi].pairs, &s.pairs[i])
	}
	return s
}

// Run services both tick sources until the context is cancelled: candle
// events when a feed is configured, and the interval timer as a redundancy
// fallback in case the event source stalls.
func (s *Scanner) Run(ctx context.Context) {
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.ScanOnce(ctx)
		case ev, ok := <-s.opts.Events:
			if !ok {
				// feed gone; keep running on the timer alone
				s.opts.Events = nil
				continue
			}
			s.scanInstrument(ctx, ev.Instrument)
		}
	}
}

// ScanOnce runs a full pass over every strategy group and emits one
// aggregated notification. Individual failures are logged, counted and
// skipped.
func (s *Scanner) ScanOnce(ctx context.Context) Summary {
	start := s.now()
	var sum Summary
	for i := range s.groups {
		sum.add(s.scanGroup(ctx, &s.groups[i]))
	}
	metrics.ScanDuration.Observe(s.now().Sub(start).Seconds())
	if !sum.empty() {
		s.notifier.Send(sum.String(), "scan")
	}
	return sum
}

// scanInstrument services a candle event: only groups whose strategy trades
// the instrument are scanned.
func (s *Scanner) scanInstrument(ctx context.Context, inst string) Summary {
	var sum Summary
	for i := range s.groups {
		if !owns(s.groups[i].strategy, inst) {
			continue
		}
		sum.add(s.scanGroup(ctx, &s.groups[i]))
	}
	if !sum.empty() {
		s.notifier.Send(sum.String(), "scan")
	}
	return sum
}

func owns(st *strategy.Strategy, inst string) bool {
	for _, i := range st.Instruments() {
		if i == inst {
			return true
		}
	}
	return false
}

// scanGroup ingests one market snapshot into the group's strategy and fans
// the candidates out to every account in the group. One fetch, one
// GenerateSignals call per market event regardless of how many accounts
// share the strategy.
func (s *Scanner) scanGroup(ctx context.Context, g *group) Summary {
	var sum Summary

	instruments := g.strategy.Instruments()
	quotes, err := s.fetchPrices(ctx, g.pairs[0].Broker, instruments)
	if err != nil {
		s.skip(g.pairs[0], "prices", err)
		sum.Errors++
		return sum
	}

	now := s.now()
	ticks := make(map[string]types.MarketTick, len(quotes))
	for inst, q := range quotes {
		ticks[inst] = types.MarketTick{
			Instrument: inst,
			Bid:        q.Bid,
			Ask:        q.Ask,
			Time:       now,
			IsLive:     true,
			Spread:     q.Spread,
		}
	}

	candidates := g.strategy.GenerateSignals(ticks)
	sum.Signals = len(candidates)
	if len(candidates) == 0 {
		return sum
	}

	for _, p := range g.pairs {
		sum.add(s.placeForAccount(ctx, p, candidates, ticks))
	}
	return sum
}

// placeForAccount runs the risk gate and execution for one account over the
// group's candidates.
func (s *Scanner) placeForAccount(ctx context.Context, p *Pair, candidates []types.TradeCandidate, ticks map[string]types.MarketTick) Summary {
	var sum Summary

	snap, err := s.fetchSummary(ctx, p.Broker)
	if err != nil {
		s.skip(p, "account summary", err)
		sum.Errors++
		return sum
	}
	open, err := s.fetchOpenTrades(ctx, p.Broker)
	if err != nil {
		s.skip(p, "open trades", err)
		sum.Errors++
		return sum
	}
	metrics.PositionsOpen.WithLabelValues(p.AccountID).Set(float64(snap.OpenTradeCount))

	openInstruments := make([]string, 0, len(open))
	for _, t := range open {
		openInstruments = append(openInstruments, t.Instrument)
	}
	positions := snap.OpenTradeCount

	for _, c := range candidates {
		tick := ticks[c.Instrument]
		in := risk.CheckInput{
			Instrument:       c.Instrument,
			CurrentPositions: positions,
			OpenInstruments:  openInstruments,
			SignalStrength:   c.Confidence,
			SpreadPips:       instrument.SpreadPips(c.Instrument, tick.Bid, tick.Ask),
			MarginUsedPct:    snap.MarginUsedPct(),
			AccountBalance:   snap.Balance,
		}
		ok, reason := p.Gate.CanOpenPosition(in)
		if !ok {
			sum.Rejected++
			metrics.RiskRejections.WithLabelValues(c.Strategy).Inc()
			s.log.Info("candidate_rejected",
				logger.String("account", p.AccountID),
				logger.String("instrument", c.Instrument),
				logger.String("side", string(c.Side)),
				logger.String("reason", reason),
			)
			continue
		}

		ectx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
		_, err := s.exec.Execute(ectx, p.AccountID, c)
		cancel()
		if err != nil {
			sum.Errors++
			s.log.Error("execution_failed",
				logger.String("account", p.AccountID),
				logger.String("instrument", c.Instrument),
				logger.Err(err),
			)
			continue
		}
		sum.Executed++
		// later candidates in the same tick see this position
		positions++
		openInstruments = append(openInstruments, c.Instrument)
	}
	return sum
}

// Each broker call gets its own timeout so a slow quote fetch cannot starve
// the account snapshot or order submission that follows it.

func (s *Scanner) fetchPrices(ctx context.Context, b broker.Broker, instruments []string) (map[string]broker.PriceQuote, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	return b.GetCurrentPrices(cctx, instruments)
}

func (s *Scanner) fetchSummary(ctx context.Context, b broker.Broker) (types.AccountSnapshot, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	return b.GetAccountSummary(cctx)
}

func (s *Scanner) fetchOpenTrades(ctx context.Context, b broker.Broker) ([]types.OpenTrade, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()
	return b.GetOpenTrades(cctx)
}

func (s *Scanner) skip(p *Pair, op string, err error) {
	metrics.ScanErrors.Inc()
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("broker_call_timeout",
			logger.String("account", p.AccountID),
			logger.String("op", op),
		)
		return
	}
	s.log.Warn("broker_call_failed",
		logger.String("account", p.AccountID),
		logger.String("op", op),
		logger.Err(err),
	)
}

// RecordOutcome forwards an external trade-closure notification to the
// strategy's adaptation counters. Returns false when no pair runs the named
// strategy.
func (s *Scanner) RecordOutcome(strategyName string, won bool) bool {
	found := false
	for i := range s.groups {
		st := s.groups[i].strategy
		if st.Name() != strategyName {
			continue
		}
		st.RecordOutcome(won)
		found = true
	}
	return found
}
