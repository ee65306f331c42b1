package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/fxscan/types"
)

// RESTBroker talks to an OANDA-style v3 REST API. All calls are synchronous
// network I/O with a bounded client timeout; callers additionally scope each
// call with a context deadline.
type RESTBroker struct {
	baseURL   string
	token     string
	accountID string
	client    *http.Client
}

// NewRESTBroker builds a client. timeout <= 0 falls back to 10s.
func NewRESTBroker(baseURL, token, accountID string, timeout time.Duration) *RESTBroker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTBroker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		accountID: accountID,
		client:    &http.Client{Timeout: timeout},
	}
}

// statusError carries the HTTP status so order placement can distinguish a
// broker rejection from transport or server failures. A 400 on a pricing
// GET is a plain error, never ErrOrderRejected.
type statusError struct {
	method string
	path   string
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("broker %s %s: status %d: %s", e.method, e.path, e.status, e.msg)
}

func (b *RESTBroker) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			method: method,
			path:   path,
			status: resp.StatusCode,
			msg:    strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type pricingResponse struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

func (b *RESTBroker) GetCurrentPrices(ctx context.Context, instruments []string) (map[string]PriceQuote, error) {
	q := url.Values{"instruments": {strings.Join(instruments, ",")}}
	var resp pricingResponse
	path := fmt.Sprintf("/v3/accounts/%s/pricing?%s", b.accountID, q.Encode())
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]PriceQuote, len(resp.Prices))
	for _, p := range resp.Prices {
		if len(p.Bids) == 0 || len(p.Asks) == 0 {
			continue
		}
		bid, err1 := strconv.ParseFloat(p.Bids[0].Price, 64)
		ask, err2 := strconv.ParseFloat(p.Asks[0].Price, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[p.Instrument] = PriceQuote{Bid: bid, Ask: ask, Spread: ask - bid}
	}
	return out, nil
}

type candlesResponse struct {
	Candles []struct {
		Time     time.Time `json:"time"`
		Complete bool      `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

func (b *RESTBroker) GetCandles(ctx context.Context, instrument, granularity string, count int) ([]types.Candle, error) {
	q := url.Values{
		"granularity": {granularity},
		"count":       {strconv.Itoa(count)},
		"price":       {"M"},
	}
	var resp candlesResponse
	path := fmt.Sprintf("/v3/instruments/%s/candles?%s", instrument, q.Encode())
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]types.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		o, _ := strconv.ParseFloat(c.Mid.O, 64)
		h, _ := strconv.ParseFloat(c.Mid.H, 64)
		l, _ := strconv.ParseFloat(c.Mid.L, 64)
		cl, _ := strconv.ParseFloat(c.Mid.C, 64)
		out = append(out, types.Candle{
			Time: c.Time, Open: o, High: h, Low: l, Close: cl, Complete: c.Complete,
		})
	}
	return out, nil
}

type summaryResponse struct {
	Account struct {
		Balance         string `json:"balance"`
		MarginUsed      string `json:"marginUsed"`
		MarginAvailable string `json:"marginAvailable"`
		OpenTradeCount  int    `json:"openTradeCount"`
	} `json:"account"`
}

func (b *RESTBroker) GetAccountSummary(ctx context.Context) (types.AccountSnapshot, error) {
	var resp summaryResponse
	path := fmt.Sprintf("/v3/accounts/%s/summary", b.accountID)
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return types.AccountSnapshot{}, err
	}
	bal, _ := strconv.ParseFloat(resp.Account.Balance, 64)
	used, _ := strconv.ParseFloat(resp.Account.MarginUsed, 64)
	avail, _ := strconv.ParseFloat(resp.Account.MarginAvailable, 64)
	return types.AccountSnapshot{
		ID:              b.accountID,
		Balance:         bal,
		MarginUsed:      used,
		MarginAvailable: avail,
		OpenTradeCount:  resp.Account.OpenTradeCount,
	}, nil
}

type openTradesResponse struct {
	Trades []struct {
		Instrument   string `json:"instrument"`
		CurrentUnits string `json:"currentUnits"`
		Price        string `json:"price"`
	} `json:"trades"`
}

func (b *RESTBroker) GetOpenTrades(ctx context.Context) ([]types.OpenTrade, error) {
	var resp openTradesResponse
	path := fmt.Sprintf("/v3/accounts/%s/openTrades", b.accountID)
	if err := b.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]types.OpenTrade, 0, len(resp.Trades))
	for _, t := range resp.Trades {
		units, _ := strconv.ParseFloat(t.CurrentUnits, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		side := types.Buy
		if units < 0 {
			side = types.Sell
			units = -units
		}
		out = append(out, types.OpenTrade{
			Instrument: t.Instrument, Side: side, Units: units, EntryPrice: price,
		})
	}
	return out, nil
}

type orderBody struct {
	Order struct {
		Type             string `json:"type"`
		Instrument       string `json:"instrument"`
		Units            string `json:"units"`
		Price            string `json:"price,omitempty"`
		TimeInForce      string `json:"timeInForce"`
		ClientExtensions struct {
			ID string `json:"id"`
		} `json:"clientExtensions"`
		StopLossOnFill   *onFill `json:"stopLossOnFill,omitempty"`
		TakeProfitOnFill *onFill `json:"takeProfitOnFill,omitempty"`
	} `json:"order"`
}

type onFill struct {
	Price string `json:"price"`
}

type orderResponse struct {
	OrderCreateTransaction struct {
		ID         string `json:"id"`
		Instrument string `json:"instrument"`
		Units      string `json:"units"`
	} `json:"orderCreateTransaction"`
}

func (b *RESTBroker) placeOrder(ctx context.Context, typ string, req OrderRequest) (OrderConfirmation, error) {
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}
	var body orderBody
	body.Order.Type = typ
	body.Order.Instrument = req.Instrument
	body.Order.Units = strconv.FormatFloat(req.Units, 'f', 0, 64)
	body.Order.TimeInForce = req.TimeInForce
	body.Order.ClientExtensions.ID = req.ClientID
	if typ == "LIMIT" {
		body.Order.Price = strconv.FormatFloat(req.Price, 'f', 5, 64)
	}
	if req.StopLoss > 0 {
		body.Order.StopLossOnFill = &onFill{Price: strconv.FormatFloat(req.StopLoss, 'f', 5, 64)}
	}
	if req.TakeProfit > 0 {
		body.Order.TakeProfitOnFill = &onFill{Price: strconv.FormatFloat(req.TakeProfit, 'f', 5, 64)}
	}

	var resp orderResponse
	path := fmt.Sprintf("/v3/accounts/%s/orders", b.accountID)
	if err := b.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.status == http.StatusBadRequest || se.status == http.StatusConflict) {
			return OrderConfirmation{}, fmt.Errorf("%w: %s", ErrOrderRejected, se.msg)
		}
		return OrderConfirmation{}, err
	}
	units, _ := strconv.ParseFloat(resp.OrderCreateTransaction.Units, 64)
	return OrderConfirmation{
		OrderID:    resp.OrderCreateTransaction.ID,
		Instrument: resp.OrderCreateTransaction.Instrument,
		Units:      units,
	}, nil
}

func (b *RESTBroker) PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error) {
	if req.TimeInForce == "" {
		req.TimeInForce = "FOK"
	}
	return b.placeOrder(ctx, "MARKET", req)
}

func (b *RESTBroker) PlaceLimitOrder(ctx context.Context, req OrderRequest) (OrderConfirmation, error) {
	if req.TimeInForce == "" {
		req.TimeInForce = "GTC"
	}
	return b.placeOrder(ctx, "LIMIT", req)
}
