package scanner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evdnx/fxscan/broker"
	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/executor"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/risk"
	"github.com/evdnx/fxscan/strategy"
	"github.com/evdnx/fxscan/testutils"
	"github.com/evdnx/fxscan/types"
)

func goldConfig() config.StrategyConfig {
	return config.StrategyConfig{
		EMAFast:           3,
		EMASlow:           8,
		RSIPeriod:         5,
		ATRPeriod:         5,
		SRWindow:          10,
		HistoryCap:        100,
		MinWarmupPrices:   10,
		MinConfidence:     0.45,
		MaxVolatility:     5,
		MaxSpreadPips:     20,
		RelaxSteps:        2,
		RelaxPct:          0.25,
		BreakoutLookback:  5,
		BreakoutPct:       0.5,
		ExitSizing:        config.ExitFixedPips,
		StopPips:          50,
		TakeProfitPips:    100,
		ATRStopMult:       1.5,
		ATRTakeProfitMult: 3.0,
		BaseUnits:         10,
		MaxTradesPerDay:   5,
	}
}

// openLimits never gates on sessions so the tests are time-of-day
// independent.
func openLimits() config.RiskLimits {
	lim := config.DefaultRiskLimits()
	lim.MaxSpreadPips = 20
	lim.Sessions = nil
	return lim
}

func goldTick(mid float64) types.MarketTick {
	return types.MarketTick{
		Instrument: "XAU_USD",
		Bid:        mid - 0.05,
		Ask:        mid + 0.05,
		Time:       time.Now(),
		IsLive:     true,
	}
}

// prewarmedGold builds an XAU_USD strategy with a rising history one tick
// short of the quote the broker will serve.
func prewarmedGold(t *testing.T) (*strategy.Strategy, *testutils.MockBroker) {
	t.Helper()
	st, err := strategy.New("gold", []string{"XAU_USD"}, goldConfig(), logger.NewNop())
	if err != nil {
		t.Fatalf("strategy.New: %v", err)
	}
	mid := 2400.0
	for i := 0; i < 29; i++ {
		st.UpdatePriceHistory(map[string]types.MarketTick{"XAU_USD": goldTick(mid)})
		mid += 2
	}
	b := testutils.NewMockBroker()
	b.SetQuote("XAU_USD", mid-0.05, mid+0.05)
	return st, b
}

func fixture(t *testing.T, lim config.RiskLimits) (*Scanner, *testutils.MockBroker, *strategy.Strategy, *testutils.MockNotifier) {
	t.Helper()
	st, b := prewarmedGold(t)
	n := testutils.NewMockNotifier()
	pairs := []Pair{{
		AccountID: "acct-1",
		Strategy:  st,
		Gate:      risk.NewGate(lim, nil),
		Broker:    b,
	}}
	sc := New(pairs, executor.New(b, executor.Config{}, nil), n, logger.NewNop(), Options{})
	return sc, b, st, n
}

func TestScanOnceExecutesSignal(t *testing.T) {
	sc, b, _, n := fixture(t, openLimits())
	sum := sc.ScanOnce(context.Background())

	if sum.Signals != 1 || sum.Executed != 1 || sum.Rejected != 0 || sum.Errors != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	orders := b.Orders()
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Instrument != "XAU_USD" || o.Units <= 0 {
		t.Fatalf("expected a long XAU_USD order, got %+v", o)
	}
	// 50-pip stop and 100-pip target around the 2458.05 ask
	if !(o.StopLoss < o.TakeProfit && o.StopLoss > 2457 && o.TakeProfit < 2460) {
		t.Fatalf("protective levels out of order: %+v", o)
	}
	msgs := n.Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "1 signals, 1 executed") {
		t.Fatalf("expected aggregated notification, got %v", msgs)
	}
}

// Two accounts sharing one strategy instance: the market event enters the
// strategy's price history once, and the single candidate fans out to both
// accounts.
func TestSharedStrategyIngestsTickOnce(t *testing.T) {
	st, b := prewarmedGold(t)
	if got := st.HistoryLen("XAU_USD"); got != 29 {
		t.Fatalf("expected 29 prewarmed prices, got %d", got)
	}
	pairs := []Pair{
		{AccountID: "acct-1", Strategy: st, Gate: risk.NewGate(openLimits(), nil), Broker: b},
		{AccountID: "acct-2", Strategy: st, Gate: risk.NewGate(openLimits(), nil), Broker: b},
	}
	sc := New(pairs, executor.New(b, executor.Config{}, nil), nil, logger.NewNop(), Options{})
	sum := sc.ScanOnce(context.Background())

	if sum.Signals != 1 {
		t.Fatalf("shared strategy must generate once per market event, got %d signals", sum.Signals)
	}
	if sum.Executed != 2 {
		t.Fatalf("candidate must fan out to both accounts, got %d executed", sum.Executed)
	}
	if got := st.HistoryLen("XAU_USD"); got != 30 {
		t.Fatalf("one market event must enter history once, got %d prices", got)
	}
	if len(b.Orders()) != 2 {
		t.Fatalf("expected one order per account, got %d", len(b.Orders()))
	}
}

func TestScanOnceGateRejection(t *testing.T) {
	lim := openLimits()
	lim.MaxConcurrentPositions = 0
	sc, b, _, _ := fixture(t, lim)
	sum := sc.ScanOnce(context.Background())

	if sum.Signals != 1 || sum.Rejected != 1 || sum.Executed != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(b.Orders()) != 0 {
		t.Fatalf("rejected candidate must not reach the broker")
	}
}

func TestScanOnceBrokerErrorIsCounted(t *testing.T) {
	sc, b, _, _ := fixture(t, openLimits())
	b.PricesErr = errors.New("pricing down")
	sum := sc.ScanOnce(context.Background())

	if sum.Errors != 1 || sum.Signals != 0 || sum.Executed != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(b.Orders()) != 0 {
		t.Fatalf("no orders expected on a failed scan")
	}
}

func TestScanInstrumentSkipsUnownedPairs(t *testing.T) {
	sc, b, _, _ := fixture(t, openLimits())
	sum := sc.scanInstrument(context.Background(), "EUR_USD")
	if sum.Signals != 0 || len(b.Orders()) != 0 {
		t.Fatalf("pair does not own EUR_USD, got %+v", sum)
	}
	sum = sc.scanInstrument(context.Background(), "XAU_USD")
	if sum.Executed != 1 {
		t.Fatalf("expected execution on owned instrument, got %+v", sum)
	}
}

func TestRecordOutcomeRouting(t *testing.T) {
	sc, _, st, _ := fixture(t, openLimits())
	if !sc.RecordOutcome("gold", true) {
		t.Fatal("expected routing to the gold strategy")
	}
	if sc.RecordOutcome("unknown", true) {
		t.Fatal("unknown strategy must report false")
	}
	if got := st.AdaptationState(); got.Wins != 1 || got.Losses != 0 {
		t.Fatalf("unexpected counters %+v", got)
	}
}

// deadlineRecordingBroker captures the context deadline seen by successive
// broker calls.
type deadlineRecordingBroker struct {
	*testutils.MockBroker
	pricesDeadline  time.Time
	summaryDeadline time.Time
}

func (b *deadlineRecordingBroker) GetCurrentPrices(ctx context.Context, instruments []string) (map[string]broker.PriceQuote, error) {
	b.pricesDeadline, _ = ctx.Deadline()
	time.Sleep(10 * time.Millisecond)
	return b.MockBroker.GetCurrentPrices(ctx, instruments)
}

func (b *deadlineRecordingBroker) GetAccountSummary(ctx context.Context) (types.AccountSnapshot, error) {
	b.summaryDeadline, _ = ctx.Deadline()
	return b.MockBroker.GetAccountSummary(ctx)
}

// A slow quote fetch must not eat into the budget of the calls that follow:
// every broker call gets a fresh CallTimeout window.
func TestEachBrokerCallGetsAFreshTimeout(t *testing.T) {
	st, mock := prewarmedGold(t)
	b := &deadlineRecordingBroker{MockBroker: mock}
	pairs := []Pair{{
		AccountID: "acct-1",
		Strategy:  st,
		Gate:      risk.NewGate(openLimits(), nil),
		Broker:    b,
	}}
	sc := New(pairs, executor.New(mock, executor.Config{}, nil), nil, logger.NewNop(),
		Options{CallTimeout: time.Second})
	sum := sc.ScanOnce(context.Background())
	if sum.Executed != 1 {
		t.Fatalf("expected an executed signal, got %+v", sum)
	}
	if b.pricesDeadline.IsZero() || b.summaryDeadline.IsZero() {
		t.Fatal("both calls should carry a deadline")
	}
	if !b.summaryDeadline.After(b.pricesDeadline) {
		t.Fatalf("summary deadline %v must be fresher than prices deadline %v",
			b.summaryDeadline, b.pricesDeadline)
	}
}
