package testutils

import (
	"context"
	"strconv"
	"sync"

	"github.com/evdnx/fxscan/broker"
	"github.com/evdnx/fxscan/types"
)

// MockBroker implements broker.Broker in-memory with injectable state and
// failures, recording every order for assertions.
type MockBroker struct {
	mu sync.RWMutex

	Quotes   map[string]broker.PriceQuote
	Snapshot types.AccountSnapshot
	Trades   []types.OpenTrade

	// When set, the matching call returns the error instead of data.
	PricesErr  error
	SummaryErr error
	TradesErr  error
	OrderErr   error

	orders []broker.OrderRequest
	nextID int
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		Quotes: make(map[string]broker.PriceQuote),
		Snapshot: types.AccountSnapshot{
			ID:              "mock",
			Balance:         10_000,
			MarginAvailable: 10_000,
		},
	}
}

// SetQuote updates the mock market for one instrument.
func (m *MockBroker) SetQuote(instrument string, bid, ask float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[instrument] = broker.PriceQuote{Bid: bid, Ask: ask, Spread: ask - bid}
}

func (m *MockBroker) GetCurrentPrices(_ context.Context, instruments []string) (map[string]broker.PriceQuote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PricesErr != nil {
		return nil, m.PricesErr
	}
	out := make(map[string]broker.PriceQuote, len(instruments))
	for _, inst := range instruments {
		if q, ok := m.Quotes[inst]; ok {
			out[inst] = q
		}
	}
	return out, nil
}

func (m *MockBroker) GetCandles(context.Context, string, string, int) ([]types.Candle, error) {
	return nil, nil
}

func (m *MockBroker) GetAccountSummary(context.Context) (types.AccountSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.SummaryErr != nil {
		return types.AccountSnapshot{}, m.SummaryErr
	}
	return m.Snapshot, nil
}

func (m *MockBroker) GetOpenTrades(context.Context) ([]types.OpenTrade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.TradesErr != nil {
		return nil, m.TradesErr
	}
	out := make([]types.OpenTrade, len(m.Trades))
	copy(out, m.Trades)
	return out, nil
}

func (m *MockBroker) place(req broker.OrderRequest) (broker.OrderConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return broker.OrderConfirmation{}, m.OrderErr
	}
	m.orders = append(m.orders, req)
	m.nextID++
	return broker.OrderConfirmation{
		OrderID:    "mock-" + strconv.Itoa(m.nextID),
		Instrument: req.Instrument,
		Units:      req.Units,
	}, nil
}

func (m *MockBroker) PlaceMarketOrder(_ context.Context, req broker.OrderRequest) (broker.OrderConfirmation, error) {
	return m.place(req)
}

func (m *MockBroker) PlaceLimitOrder(_ context.Context, req broker.OrderRequest) (broker.OrderConfirmation, error) {
	return m.place(req)
}

// Orders returns a copy of every submitted order request.
func (m *MockBroker) Orders() []broker.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]broker.OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}
