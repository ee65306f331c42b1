package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/evdnx/fxscan/types"
)

// PaperBroker is an in-memory broker used for dry runs and tests: perfect
// fills, no slippage, margin modeled as a flat fraction of notional.
type PaperBroker struct {
	mu         sync.RWMutex
	balance    float64
	marginRate float64
	quotes     map[string]PriceQuote
	trades     []types.OpenTrade
	seq        int
}

func NewPaperBroker(balance float64) *PaperBroker {
	return &PaperBroker{
		balance:    balance,
		marginRate: 0.03, // 1:33 leverage
		quotes:     make(map[string]PriceQuote),
	}
}

// SetQuote seeds or updates the paper market for one instrument.
func (p *PaperBroker) SetQuote(instrument string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[instrument] = PriceQuote{Bid: bid, Ask: ask, Spread: ask - bid}
}

func (p *PaperBroker) GetCurrentPrices(_ context.Context, instruments []string) (map[string]PriceQuote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]PriceQuote, len(instruments))
	for _, inst := range instruments {
		if q, ok := p.quotes[inst]; ok {
			out[inst] = q
		}
	}
	return out, nil
}

func (p *PaperBroker) GetCandles(_ context.Context, _, _ string, _ int) ([]types.Candle, error) {
	return nil, nil // paper market has no candle history
}

func (p *PaperBroker) marginUsedLocked() float64 {
	used := 0.0
	for _, t := range p.trades {
		used += t.Units * t.EntryPrice * p.marginRate
	}
	return used
}

func (p *PaperBroker) GetAccountSummary(_ context.Context) (types.AccountSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	used := p.marginUsedLocked()
	return types.AccountSnapshot{
		ID:              "paper",
		Balance:         p.balance,
		MarginUsed:      used,
		MarginAvailable: p.balance - used,
		OpenTradeCount:  len(p.trades),
	}, nil
}

func (p *PaperBroker) GetOpenTrades(_ context.Context) ([]types.OpenTrade, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.OpenTrade, len(p.trades))
	copy(out, p.trades)
	return out, nil
}

func (p *PaperBroker) fill(req OrderRequest, price float64) (OrderConfirmation, error) {
	side := types.Buy
	units := req.Units
	if units < 0 {
		side = types.Sell
		units = -units
	}
	if units == 0 {
		return OrderConfirmation{}, fmt.Errorf("%w: zero units", ErrOrderRejected)
	}
	if units*price*p.marginRate > p.balance-p.marginUsedLocked() {
		return OrderConfirmation{}, fmt.Errorf("%w: insufficient margin", ErrOrderRejected)
	}
	p.trades = append(p.trades, types.OpenTrade{
		Instrument: req.Instrument, Side: side, Units: units, EntryPrice: price,
	})
	p.seq++
	return OrderConfirmation{
		OrderID:    uuid.NewString(),
		Instrument: req.Instrument,
		Units:      req.Units,
	}, nil
}

func (p *PaperBroker) PlaceMarketOrder(_ context.Context, req OrderRequest) (OrderConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.quotes[req.Instrument]
	if !ok {
		return OrderConfirmation{}, fmt.Errorf("%w: no market for %s", ErrOrderRejected, req.Instrument)
	}
	price := q.Ask
	if req.Units < 0 {
		price = q.Bid
	}
	return p.fill(req, price)
}

func (p *PaperBroker) PlaceLimitOrder(_ context.Context, req OrderRequest) (OrderConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Price <= 0 {
		return OrderConfirmation{}, fmt.Errorf("%w: limit order without price", ErrOrderRejected)
	}
	// paper market fills limits immediately at the limit price
	return p.fill(req, req.Price)
}
