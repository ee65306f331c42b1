package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func restServer(t *testing.T, handler http.HandlerFunc) (*RESTBroker, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	b := NewRESTBroker(srv.URL, "test-token", "acct-1", 5*time.Second)
	return b, srv
}

func TestGetCurrentPricesParsesQuotes(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/accounts/acct-1/pricing" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		io.WriteString(w, `{"prices":[
			{"instrument":"EUR_USD","bids":[{"price":"1.0999"}],"asks":[{"price":"1.1001"}]},
			{"instrument":"XAU_USD","bids":[],"asks":[{"price":"2400.30"}]}
		]}`)
	})
	defer srv.Close()

	quotes, err := b.GetCurrentPrices(context.Background(), []string{"EUR_USD", "XAU_USD"})
	if err != nil {
		t.Fatalf("GetCurrentPrices: %v", err)
	}
	q, ok := quotes["EUR_USD"]
	if !ok || q.Bid != 1.0999 || q.Ask != 1.1001 {
		t.Fatalf("unexpected quote %+v", q)
	}
	// one-sided quotes are dropped, not zero-filled
	if _, ok := quotes["XAU_USD"]; ok {
		t.Fatal("quote without bids must be dropped")
	}
}

func TestGetAccountSummaryParsesDecimalStrings(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"account":{
			"balance":"10000.50","marginUsed":"250.25",
			"marginAvailable":"9750.25","openTradeCount":2
		}}`)
	})
	defer srv.Close()

	snap, err := b.GetAccountSummary(context.Background())
	if err != nil {
		t.Fatalf("GetAccountSummary: %v", err)
	}
	if snap.ID != "acct-1" || snap.Balance != 10000.50 || snap.OpenTradeCount != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestGetOpenTradesNormalizesShorts(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"trades":[
			{"instrument":"EUR_USD","currentUnits":"-1000","price":"1.1000"}
		]}`)
	})
	defer srv.Close()

	trades, err := b.GetOpenTrades(context.Background())
	if err != nil {
		t.Fatalf("GetOpenTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Side != "SELL" || trades[0].Units != 1000 {
		t.Fatalf("short must have positive units and SELL side, got %+v", trades[0])
	}
}

func TestPlaceMarketOrderBody(t *testing.T) {
	var got map[string]any
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v3/accounts/acct-1/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		io.WriteString(w, `{"orderCreateTransaction":{"id":"42","instrument":"EUR_USD","units":"1000"}}`)
	})
	defer srv.Close()

	conf, err := b.PlaceMarketOrder(context.Background(), OrderRequest{
		Instrument: "EUR_USD",
		Units:      1000,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}
	if conf.OrderID != "42" || conf.Units != 1000 {
		t.Fatalf("unexpected confirmation %+v", conf)
	}

	order := got["order"].(map[string]any)
	if order["type"] != "MARKET" || order["units"] != "1000" || order["timeInForce"] != "FOK" {
		t.Fatalf("unexpected order body %v", order)
	}
	sl := order["stopLossOnFill"].(map[string]any)
	if sl["price"] != "1.09500" {
		t.Fatalf("unexpected stop price %v", sl["price"])
	}
	ext := order["clientExtensions"].(map[string]any)
	if ext["id"] == "" {
		t.Fatal("client order ID must be set")
	}
}

func TestPlaceOrderRejectionMapsToSentinel(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"errorMessage":"UNITS_INVALID"}`)
	})
	defer srv.Close()

	_, err := b.PlaceMarketOrder(context.Background(), OrderRequest{Instrument: "EUR_USD", Units: 1000})
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
}

// Only order placement may surface ErrOrderRejected: a malformed pricing
// request is a plain error even when the broker answers 400.
func TestBadRequestOnGetIsNotARejection(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"errorMessage":"INVALID_INSTRUMENT"}`)
	})
	defer srv.Close()

	_, err := b.GetCurrentPrices(context.Background(), []string{"BOGUS"})
	if err == nil || errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected a plain error, got %v", err)
	}
	if _, err := b.GetAccountSummary(context.Background()); errors.Is(err, ErrOrderRejected) {
		t.Fatalf("summary error must not be a rejection, got %v", err)
	}
}

func TestConflictOnOrderIsARejection(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"errorMessage":"ORDER_ALREADY_EXISTS"}`)
	})
	defer srv.Close()

	_, err := b.PlaceLimitOrder(context.Background(), OrderRequest{Instrument: "EUR_USD", Units: 1000, Price: 1.1})
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
}

func TestServerErrorIsNotARejection(t *testing.T) {
	b, srv := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := b.GetAccountSummary(context.Background())
	if err == nil || errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected a plain error, got %v", err)
	}
}
