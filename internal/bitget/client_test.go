package bitget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

func init() {
	// Collapse retry waits for tests.
	retryDelay = time.Millisecond
}

func newTestClient(url string) *Client {
	return NewClient(Config{Symbol: "BTCUSDT", Timeframe: "15m", RootURL: url})
}

func candleRows() string {
	return `{"code":"00000","msg":"success","data":[
		["1709251200000","100","101","99","100.5","12","1200"],
		["1709252100000","100.5","102","100","101.5","8","810"]
	]}`
}

func TestFetchCandles_ParsesAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/mix/market/candles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("granularity"); got != "15m" {
			t.Errorf("granularity: got %s", got)
		}
		w.Write([]byte(candleRows()))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).FetchCandles(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d candles, want 2", len(series))
	}
	if series[0].Close != 100.5 || series[1].Close != 101.5 {
		t.Errorf("closes: got %f, %f", series[0].Close, series[1].Close)
	}
	if !series[0].TS.Before(series[1].TS) {
		t.Error("candles must ascend by timestamp")
	}
}

func TestFetchCandles_ReversesDescendingInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","data":[
			["1709252100000","100.5","102","100","101.5","8","810"],
			["1709251200000","100","101","99","100.5","12","1200"]
		]}`))
	}))
	defer srv.Close()

	series, err := newTestClient(srv.URL).FetchCandles(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if !series[0].TS.Before(series[1].TS) {
		t.Error("descending payload must be reversed to ascending")
	}
}

func TestDoRetry_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"code":"50001","msg":"server busy"}`))
			return
		}
		w.Write([]byte(candleRows()))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).FetchCandles(context.Background(), 2); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3", attempts)
	}
}

func TestDoRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":"42901","msg":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchCandles(context.Background(), 2)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxAttempts {
		t.Errorf("attempts: got %d, want %d", attempts, maxAttempts)
	}
}

func TestDoRetry_RejectionSurfacesImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		// HTTP 200 but a non-success exchange code: a rejection.
		w.Write([]byte(`{"code":"40034","msg":"parameter error"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchCandles(context.Background(), 2)
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if attempts != 1 {
		t.Errorf("rejections must not retry: %d attempts", attempts)
	}
}

func TestPlaceOrder_RoutesPlanLegs(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"code":"00000","data":{"orderId":"o-123"}}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	ack, err := c.PlaceOrder(context.Background(), model.OrderRequest{
		Side: model.OrderSell, Type: model.OrderStop, Size: 0.5, TriggerPrice: 90,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if ack.OrderID != "o-123" {
		t.Errorf("order id: got %s", ack.OrderID)
	}
	if gotPath != "/api/v2/mix/order/place-plan-order" {
		t.Errorf("stop leg must use the plan endpoint, got %s", gotPath)
	}
	if gotBody["planType"] != "loss_plan" {
		t.Errorf("planType: got %v, want loss_plan", gotBody["planType"])
	}
	if gotBody["triggerPrice"] != "90" {
		t.Errorf("triggerPrice: got %v", gotBody["triggerPrice"])
	}

	if _, err := c.PlaceOrder(context.Background(), model.OrderRequest{
		Side: model.OrderSell, Type: model.OrderTakeProfit, Size: 0.25, TriggerPrice: 115,
	}); err != nil {
		t.Fatalf("PlaceOrder tp: %v", err)
	}
	if gotBody["planType"] != "profit_plan" {
		t.Errorf("planType: got %v, want profit_plan", gotBody["planType"])
	}

	if _, err := c.PlaceOrder(context.Background(), model.OrderRequest{
		Side: model.OrderBuy, Type: model.OrderMarket, Size: 0.5,
	}); err != nil {
		t.Fatalf("PlaceOrder market: %v", err)
	}
	if gotPath != "/api/v2/mix/order/place-order" {
		t.Errorf("market leg must use the order endpoint, got %s", gotPath)
	}
}

func TestFetchPositions_FiltersOtherSymbolsAndZeroSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","data":[
			{"symbol":"BTCUSDT","holdSide":"long","total":"0.5","openPriceAvg":"50000","markPrice":"50100"},
			{"symbol":"BTCUSDT","holdSide":"short","total":"0","openPriceAvg":"0","markPrice":"50100"},
			{"symbol":"ETHUSDT","holdSide":"long","total":"2","openPriceAvg":"3000","markPrice":"3010"}
		]}`))
	}))
	defer srv.Close()

	positions, err := newTestClient(srv.URL).FetchPositions(context.Background())
	if err != nil {
		t.Fatalf("FetchPositions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	p := positions[0]
	if p.Side != model.Long || p.Size != 0.5 || p.AvgPrice != 50000 {
		t.Errorf("unexpected position %+v", p)
	}
}

func TestFetchBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"00000","data":{"available":"1234.56"}}`))
	}))
	defer srv.Close()

	bal, err := newTestClient(srv.URL).FetchBalance(context.Background())
	if err != nil {
		t.Fatalf("FetchBalance: %v", err)
	}
	if bal != 1234.56 {
		t.Errorf("balance: got %f", bal)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{400, false},
		{200, false},
	}
	for _, c := range cases {
		e := &APIError{Status: c.status}
		if e.Retryable() != c.want {
			t.Errorf("status %d: retryable=%v, want %v", c.status, e.Retryable(), c.want)
		}
	}
}

func TestParseWSCandle(t *testing.T) {
	c, err := parseWSCandle([]string{"1709251200000", "100", "101", "99", "100.5", "12"})
	if err != nil {
		t.Fatalf("parseWSCandle: %v", err)
	}
	if c.Close != 100.5 || c.Volume != 12 {
		t.Errorf("unexpected candle %+v", c)
	}
	if c.TS != time.UnixMilli(1709251200000).UTC() {
		t.Errorf("timestamp: got %v", c.TS)
	}

	if _, err := parseWSCandle([]string{"1709251200000", "100"}); err == nil {
		t.Error("short row must error")
	}
}
