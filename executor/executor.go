// Package executor translates approved trade candidates into broker orders
// and keeps per-account daily order counters.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evdnx/fxscan/broker"
	"github.com/evdnx/fxscan/instrument"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/metrics"
	"github.com/evdnx/fxscan/risk"
	"github.com/evdnx/fxscan/types"
)

// ErrDailyOrderCap is returned when an account has hit its per-day order
// limit; the candidate is dropped like any other execution failure.
var ErrDailyOrderCap = errors.New("daily order cap reached")

type Executor interface {
	Execute(ctx context.Context, accountID string, c types.TradeCandidate) (types.ExecutionResult, error)
}

// Config tunes order entry.
type Config struct {
	OrderType       string  // "market" (default) or "limit"
	LimitOffsetPips float64 // maker offset from entry for limit orders
	RiskPerTrade    float64 // fraction of equity risked per trade; 0 = use candidate units
	MaxOrdersPerDay int     // 0 = uncapped
}

// BrokerExecutor submits through a broker.Broker.
type BrokerExecutor struct {
	broker broker.Broker
	cfg    Config
	log    logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	day         time.Time
	ordersToday map[string]int
}

func New(b broker.Broker, cfg Config, log logger.Logger) *BrokerExecutor {
	if cfg.OrderType == "" {
		cfg.OrderType = "market"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &BrokerExecutor{
		broker:      b,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
		ordersToday: make(map[string]int),
	}
}

// Execute submits one order for an approved candidate. There is no retry: a
// failure is logged by the caller and the candidate is dropped for the tick.
func (e *BrokerExecutor) Execute(ctx context.Context, accountID string, c types.TradeCandidate) (types.ExecutionResult, error) {
	now := e.now()
	if err := e.countOrder(accountID, now); err != nil {
		return types.ExecutionResult{}, err
	}

	units := c.Units
	if e.cfg.RiskPerTrade > 0 {
		snap, err := e.broker.GetAccountSummary(ctx)
		if err != nil {
			return types.ExecutionResult{}, fmt.Errorf("account summary: %w", err)
		}
		stopDist := c.EntryPrice - c.StopLoss
		if c.Side == types.Sell {
			stopDist = c.StopLoss - c.EntryPrice
		}
		if sized := risk.CalcUnits(snap.Balance, e.cfg.RiskPerTrade, stopDist); sized > 0 {
			units = sized
		}
	}
	if c.Side == types.Sell {
		units = -units
	}

	req := broker.OrderRequest{
		Instrument: c.Instrument,
		Units:      units,
		StopLoss:   c.StopLoss,
		TakeProfit: c.TakeProfit,
	}

	var (
		conf broker.OrderConfirmation
		err  error
	)
	if e.cfg.OrderType == "limit" {
		offset := e.cfg.LimitOffsetPips * instrument.PipSize(c.Instrument)
		if c.Side == types.Buy {
			req.Price = c.EntryPrice - offset
		} else {
			req.Price = c.EntryPrice + offset
		}
		req.TimeInForce = "GTC"
		conf, err = e.broker.PlaceLimitOrder(ctx, req)
	} else {
		conf, err = e.broker.PlaceMarketOrder(ctx, req)
	}
	if err != nil {
		metrics.OrdersFailed.WithLabelValues(c.Strategy).Inc()
		e.uncountOrder(accountID, now)
		return types.ExecutionResult{}, err
	}

	metrics.OrdersSubmitted.WithLabelValues(c.Strategy).Inc()
	e.log.Info("order_submitted",
		logger.String("account", accountID),
		logger.String("instrument", c.Instrument),
		logger.String("side", string(c.Side)),
		logger.Float64("units", units),
		logger.Float64("stop_loss", c.StopLoss),
		logger.Float64("take_profit", c.TakeProfit),
		logger.String("order_id", conf.OrderID),
	)
	return types.ExecutionResult{
		OrderID:    conf.OrderID,
		Instrument: conf.Instrument,
		Units:      conf.Units,
		Submitted:  now,
	}, nil
}

// OrdersToday returns the account's order count for the current UTC day.
func (e *BrokerExecutor) OrdersToday(accountID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ordersToday[accountID]
}

func (e *BrokerExecutor) countOrder(accountID string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d := utcDay(now); !d.Equal(e.day) {
		e.day = d
		e.ordersToday = make(map[string]int)
	}
	if e.cfg.MaxOrdersPerDay > 0 && e.ordersToday[accountID] >= e.cfg.MaxOrdersPerDay {
		return fmt.Errorf("%w (%d)", ErrDailyOrderCap, e.cfg.MaxOrdersPerDay)
	}
	e.ordersToday[accountID]++
	return nil
}

// uncountOrder rolls the counter back when submission failed, so rejected
// orders don't consume the daily budget.
func (e *BrokerExecutor) uncountOrder(accountID string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if utcDay(now).Equal(e.day) && e.ordersToday[accountID] > 0 {
		e.ordersToday[accountID]--
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
