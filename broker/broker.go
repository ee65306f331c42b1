// Package broker defines the external broker collaborator: quote and candle
// retrieval, account snapshots and order submission. The core only depends
// on the Broker interface; REST and paper implementations live alongside.
package broker

import (
	"context"
	"errors"

	"github.com/evdnx/fxscan/types"
)

// ErrOrderRejected is returned when the broker refuses an order. The core
// treats it as "execution failed": logged, no retry in the same tick, no
// win/loss credit.
var ErrOrderRejected = errors.New("broker rejected order")

// PriceQuote is the broker's current bid/ask for one instrument.
type PriceQuote struct {
	Bid    float64
	Ask    float64
	Spread float64
}

// OrderRequest describes a market or limit order. Units are signed: positive
// buys, negative sells. Price is only used by limit orders.
type OrderRequest struct {
	Instrument  string
	Units       float64
	Price       float64
	TimeInForce string
	StopLoss    float64
	TakeProfit  float64
	ClientID    string
}

// OrderConfirmation echoes what the broker accepted.
type OrderConfirmation struct {
	OrderID    string
	Instrument string
	Units      float64
}

type Broker interface {
	GetCurrentPrices(ctx context.Context, instruments []string) (map[string]PriceQuote, error)
	GetCandles(ctx context.Context, instrument, granularity string, count int) ([]types.Candle, error)
	GetAccountSummary(ctx context.Context) (types.AccountSnapshot, error)
	GetOpenTrades(ctx context.Context) ([]types.OpenTrade, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error)
	PlaceLimitOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error)
}
