package registry

import (
	"errors"
	"testing"

	"github.com/evdnx/fxscan/testutils"
)

const validYAML = `
strategies:
  trend:
    ema_fast: 5
    ema_slow: 20
    rsi_period: 14
    atr_period: 14
    sr_window: 20
    history_cap: 200
    min_warmup_prices: 25
    min_confidence: 0.45
    max_volatility: 0.5
    max_spread_pips: 3.0
    relax_steps: 2
    relax_pct: 0.25
    breakout_lookback: 10
    breakout_pct: 0.3
    exit_sizing: fixed_pips
    stop_pips: 20
    take_profit_pips: 40
    base_units: 1000
    max_trades_per_day: 5

accounts:
  - account_id: "acct-1"
    active: true
    strategy: trend
    instruments: [EUR_USD, GBP_USD]
  - account_id: "acct-2"
    active: false
    strategy: trend
    instruments: [USD_JPY]
`

func TestParseValidRegistry(t *testing.T) {
	reg, err := Parse([]byte(validYAML), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reg.Accounts) != 1 {
		t.Fatalf("expected 1 active account, got %d", len(reg.Accounts))
	}
	a := reg.Accounts[0]
	if a.AccountID != "acct-1" || a.StrategyName != "trend" {
		t.Fatalf("unexpected account %+v", a)
	}
	if a.Risk == nil {
		t.Fatal("nil risk must be replaced with defaults")
	}
	if a.Risk.MaxConcurrentPositions != 3 {
		t.Fatalf("expected default risk limits, got %+v", a.Risk)
	}
	if _, ok := reg.Strategies["trend"]; !ok {
		t.Fatal("strategy bundle missing")
	}
}

func TestInvalidStrategyBundleIsFatal(t *testing.T) {
	bad := `
strategies:
  broken:
    ema_fast: 20
    ema_slow: 5
accounts:
  - account_id: "acct-1"
    active: true
    strategy: broken
    instruments: [EUR_USD]
`
	if _, err := Parse([]byte(bad), nil); err == nil {
		t.Fatal("expected a validation error for the strategy bundle")
	}
}

// An account referencing an unknown strategy is skipped with an error log,
// not fatal, as long as another valid account remains.
func TestUnknownStrategyAccountSkipped(t *testing.T) {
	yaml := validYAML + `
  - account_id: "acct-3"
    active: true
    strategy: nonexistent
    instruments: [AUD_USD]
`
	log := testutils.NewMockLogger()
	reg, err := Parse([]byte(yaml), log)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(reg.Accounts) != 1 {
		t.Fatalf("expected the bad account to be dropped, got %d", len(reg.Accounts))
	}
	if log.Count("error") != 1 || log.LastMessage() != "registry_account_skipped" {
		t.Fatalf("expected a skip log, got %v", log.Messages())
	}
}

func TestAllInactiveIsFatal(t *testing.T) {
	yaml := `
strategies:
  trend:
    ema_fast: 5
    ema_slow: 20
    rsi_period: 14
    atr_period: 14
    sr_window: 20
    history_cap: 200
    min_warmup_prices: 25
    min_confidence: 0.45
    max_volatility: 0.5
    max_spread_pips: 3.0
    relax_pct: 0.25
    breakout_pct: 0
    exit_sizing: fixed_pips
    stop_pips: 20
    take_profit_pips: 40
    base_units: 1000
    max_trades_per_day: 5
accounts:
  - account_id: "acct-1"
    active: false
    strategy: trend
    instruments: [EUR_USD]
`
	if _, err := Parse([]byte(yaml), nil); !errors.Is(err, ErrNoActiveAccounts) {
		t.Fatalf("expected ErrNoActiveAccounts, got %v", err)
	}
}

func TestMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("strategies: ["), nil); err == nil {
		t.Fatal("expected a parse error")
	}
}
