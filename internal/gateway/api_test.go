package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/shopspring/decimal"
)

func newTestAPI(handler http.Handler) (*ClientPortalAPI, *httptest.Server) {
	server := httptest.NewServer(handler)
	api := NewClientPortalAPIWithClient(server.URL, "test-key", "DU12345", server.Client())
	return api, server
}

func TestPortfolioPositions(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portfolio/DU12345/positions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		fmt.Fprint(w, `{"positions": [
			{"conid": 1, "sec_type": "STK", "symbol": "ABC", "position": 200, "market_price": 50, "market_value": 10000, "avg_cost": 45, "currency": "USD", "exchange": "SMART"},
			{"conid": 2, "sec_type": "OPT", "symbol": "ABC", "expiration": "20250620", "strike": 45, "right": "PUT", "position": -2, "market_price": 1.2, "avg_cost": 2.1, "currency": "USD", "exchange": "SMART"}
		]}`)
	}))
	defer server.Close()

	snapshot, err := api.PortfolioPositions(context.Background())
	if err != nil {
		t.Fatalf("PortfolioPositions returned error: %v", err)
	}

	positions := snapshot["ABC"]
	if len(positions) != 2 {
		t.Fatalf("got %d positions, expected 2", len(positions))
	}
	if positions[0].Kind != models.KindStock || positions[0].Quantity != 200 {
		t.Errorf("stock position = %+v", positions[0])
	}
	if positions[1].Kind != models.KindPut {
		t.Errorf("option kind = %v, expected put from right PUT", positions[1].Kind)
	}
	if positions[1].Contract.ConID != 2 || positions[1].Quantity != -2 {
		t.Errorf("option position = %+v", positions[1])
	}
}

func TestAccountSummary(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portfolio/DU12345/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"buying_power": "100000.50", "excess_liquidity": "200000", "net_liquidation": "150000"}`)
	}))
	defer server.Close()

	summary, err := api.AccountSummary(context.Background())
	if err != nil {
		t.Fatalf("AccountSummary returned error: %v", err)
	}
	if !summary.BuyingPower.Equal(decimal.RequireFromString("100000.50")) {
		t.Errorf("buying power = %s", summary.BuyingPower)
	}
	if !summary.NetLiquidation.Equal(decimal.NewFromInt(150000)) {
		t.Errorf("net liquidation = %s", summary.NetLiquidation)
	}
}

func TestResolveInstrumentNotFound(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	if _, err := api.ResolveInstrument(context.Background(), "NOPE"); err == nil {
		t.Error("expected error for unresolvable symbol")
	}
}

func TestQuotesFanOutPreservesOrder(t *testing.T) {
	var requests int32
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		conid := r.URL.Query().Get("conid")
		// Price derived from conid so order mix-ups are visible.
		fmt.Fprintf(w, `{"conid": %s, "market_price": %s.5, "delta": -0.2}`, conid, conid)
	}))
	defer server.Close()

	contracts := make([]models.Contract, 20)
	for i := range contracts {
		c := models.NewOption("ABC", "20250620", 50+float64(i), models.RightPut, "ABC")
		c.ConID = int64(i + 1)
		contracts[i] = c
	}

	tickers, err := api.Quotes(context.Background(), contracts)
	if err != nil {
		t.Fatalf("Quotes returned error: %v", err)
	}
	if len(tickers) != 20 {
		t.Fatalf("got %d tickers, expected 20", len(tickers))
	}
	for i, ticker := range tickers {
		expected := float64(i+1) + 0.5
		if ticker.MarketPrice != expected {
			t.Errorf("ticker %d price = %v, expected %v", i, ticker.MarketPrice, expected)
		}
		if ticker.Contract.ConID != int64(i+1) {
			t.Errorf("ticker %d carries conid %d", i, ticker.Contract.ConID)
		}
		if ticker.Delta == nil || *ticker.Delta != -0.2 {
			t.Errorf("ticker %d delta = %v", i, ticker.Delta)
		}
	}
	if got := atomic.LoadInt32(&requests); got != 20 {
		t.Errorf("bridge saw %d requests, expected 20", got)
	}
}

func TestQuotesMissingOpenInterestIsNaN(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"conid": 1, "market_price": 2.5}`)
	}))
	defer server.Close()

	contract := models.NewOption("ABC", "20250620", 50, models.RightPut, "ABC")
	contract.ConID = 1
	tickers, err := api.Quotes(context.Background(), []models.Contract{contract})
	if err != nil {
		t.Fatalf("Quotes returned error: %v", err)
	}
	if tickers[0].OpenInterestPopulated() {
		t.Error("open interest absent from the snapshot must stay unset")
	}
	if tickers[0].Delta != nil {
		t.Error("missing delta must stay nil")
	}
}

func TestLiveOpenInterestLifecycle(t *testing.T) {
	var deleted int32
	mux := http.NewServeMux()
	mux.HandleFunc("/marketdata/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("subscription created with %s", r.Method)
		}
		fmt.Fprint(w, `{"subscription_id": "sub-1"}`)
	})
	mux.HandleFunc("/marketdata/subscriptions/sub-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			atomic.AddInt32(&deleted, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		fmt.Fprint(w, `{"conid": 1, "market_price": 2.5, "put_open_interest": 400, "call_open_interest": 300}`)
	})
	api, server := newTestAPI(mux)
	defer server.Close()

	contract := models.NewOption("ABC", "20250620", 50, models.RightPut, "ABC")
	contract.ConID = 1

	feed, err := api.LiveOpenInterest(context.Background(), contract)
	if err != nil {
		t.Fatalf("LiveOpenInterest returned error: %v", err)
	}

	ticker, err := feed.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if !ticker.OpenInterestPopulated() || ticker.PutOpenInterest != 400 {
		t.Errorf("ticker = %+v", ticker)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if atomic.LoadInt32(&deleted) != 1 {
		t.Error("closing the feed must delete the subscription")
	}
}

func TestSubmitOrder(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/DU12345/orders" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var order orderPayload
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			t.Fatalf("decoding order: %v", err)
		}
		if order.OrderType != "LMT" || order.Action != "SELL" || order.Quantity != 2 {
			t.Errorf("order = %+v", order)
		}
		if order.Contract == nil || order.Contract.ConID != 7 {
			t.Errorf("order contract = %+v", order.Contract)
		}
		fmt.Fprint(w, `{"order_id": "o-1", "status": "Submitted"}`)
	}))
	defer server.Close()

	contract := models.NewOption("ABC", "20250620", 50, models.RightPut, "ABC")
	contract.ConID = 7
	trade, err := api.SubmitOrder(context.Background(), contract, OrderSpec{
		Action:     ActionSell,
		Quantity:   2,
		LimitPrice: 1.25,
		TIF:        "DAY",
	})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if trade.OrderID != "o-1" || trade.Status != "Submitted" {
		t.Errorf("trade = %+v", trade)
	}
}

func TestAPIErrorOnBadStatus(t *testing.T) {
	api, server := newTestAPI(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := api.AccountSummary(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("status = %d, expected 403", apiErr.Status)
	}
	if !strings.Contains(apiErr.Body, "insufficient permissions") {
		t.Errorf("body = %q", apiErr.Body)
	}
}
