// Package bitget is the exchange gateway: candle history, account balance,
// open positions, and order placement against the Bitget USDT-futures API.
//
// Every call is retried a bounded number of times with doubling delay when
// the failure is transient; rejections surface immediately. Callers treat a
// call as succeed-or-fail — a retried placement could in principle duplicate
// an order, which is an accepted risk boundary of this design.
package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

const (
	defaultRoot = "https://api.bitget.com"
	productType = "USDT-FUTURES"
	marginCoin  = "USDT"

	maxAttempts = 3
)

// retryDelay is the initial backoff; it doubles between attempts. A variable
// so tests can collapse the waits.
var retryDelay = 2 * time.Second

var routes = map[string]string{
	"market.candles":    "/api/v2/mix/market/candles",
	"account.account":   "/api/v2/mix/account/account",
	"account.leverage":  "/api/v2/mix/account/set-leverage",
	"position.all":      "/api/v2/mix/position/all-position",
	"order.place":       "/api/v2/mix/order/place-order",
	"order.cancel-all":  "/api/v2/mix/order/cancel-all-orders",
	"order.plan-place":  "/api/v2/mix/order/place-plan-order",
	"order.plan-cancel": "/api/v2/mix/order/cancel-plan-order",
}

// Config holds the client credentials and instrument scope.
type Config struct {
	APIKey     string
	APISecret  string
	Passphrase string

	Symbol    string // e.g. "BTCUSDT"
	Timeframe string // e.g. "15m"

	RootURL string        // default: https://api.bitget.com
	Timeout time.Duration // default: 10s
}

// Client talks to the Bitget REST API for one instrument.
type Client struct {
	cfg        Config
	rootURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. It does not touch the network.
func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		rootURL:    strings.TrimRight(cfg.RootURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ── Market data ──

// FetchCandles returns the most recent limit candles, ascending by
// timestamp.
func (c *Client) FetchCandles(ctx context.Context, limit int) (model.Series, error) {
	raw, err := c.doRetry(ctx, http.MethodGet, "market.candles", map[string]string{
		"symbol":      c.cfg.Symbol,
		"productType": productType,
		"granularity": c.cfg.Timeframe,
		"limit":       strconv.Itoa(limit),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	return parseCandles(raw)
}

// FetchCandlesSince pages through historical candles between two instants,
// chunking by the exchange's per-request limit. Used by the backtest driver
// to assemble long windows.
func (c *Client) FetchCandlesSince(ctx context.Context, since, until time.Time) (model.Series, error) {
	const chunk = 1000
	var all model.Series
	cursor := since

	for cursor.Before(until) {
		raw, err := c.doRetry(ctx, http.MethodGet, "market.candles", map[string]string{
			"symbol":      c.cfg.Symbol,
			"productType": productType,
			"granularity": c.cfg.Timeframe,
			"startTime":   strconv.FormatInt(cursor.UnixMilli(), 10),
			"endTime":     strconv.FormatInt(until.UnixMilli(), 10),
			"limit":       strconv.Itoa(chunk),
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch candles since %s: %w", cursor.Format(time.RFC3339), err)
		}
		batch, err := parseCandles(raw)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		next := batch[len(batch)-1].TS
		if !next.After(cursor) {
			break
		}
		cursor = next.Add(time.Millisecond)
	}
	return all, nil
}

// ── Account ──

// FetchBalance returns the available USDT equity.
func (c *Client) FetchBalance(ctx context.Context) (float64, error) {
	raw, err := c.doRetry(ctx, http.MethodGet, "account.account", map[string]string{
		"symbol":      c.cfg.Symbol,
		"productType": productType,
		"marginCoin":  marginCoin,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	var data struct {
		Available string `json:"available"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, fmt.Errorf("fetch balance: decode: %w", err)
	}
	return strconv.ParseFloat(data.Available, 64)
}

// SetLeverage sets the account leverage for the instrument.
func (c *Client) SetLeverage(ctx context.Context, leverage int) error {
	_, err := c.doRetry(ctx, http.MethodPost, "account.leverage", nil, map[string]any{
		"symbol":      c.cfg.Symbol,
		"productType": productType,
		"marginCoin":  marginCoin,
		"leverage":    strconv.Itoa(leverage),
	})
	if err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// FetchPositions returns the open positions for the instrument. Positions
// with zero size are filtered out.
func (c *Client) FetchPositions(ctx context.Context) ([]model.ExchangePosition, error) {
	raw, err := c.doRetry(ctx, http.MethodGet, "position.all", map[string]string{
		"productType": productType,
		"marginCoin":  marginCoin,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	var rows []struct {
		Symbol    string `json:"symbol"`
		HoldSide  string `json:"holdSide"` // "long" | "short"
		Total     string `json:"total"`
		OpenPrice string `json:"openPriceAvg"`
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("fetch positions: decode: %w", err)
	}

	var out []model.ExchangePosition
	for _, r := range rows {
		if r.Symbol != c.cfg.Symbol {
			continue
		}
		size, _ := strconv.ParseFloat(r.Total, 64)
		if size == 0 {
			continue
		}
		avg, _ := strconv.ParseFloat(r.OpenPrice, 64)
		mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
		side := model.Long
		if r.HoldSide == "short" {
			side = model.Short
		}
		out = append(out, model.ExchangePosition{
			Side:      side,
			Size:      size,
			AvgPrice:  avg,
			MarkPrice: mark,
		})
	}
	return out, nil
}

// ── Orders ──

// PlaceOrder submits one order leg. Market and limit legs go to the regular
// order endpoint; stop and take-profit legs go to the plan (trigger) order
// endpoint.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderAck, error) {
	body := map[string]any{
		"symbol":      c.cfg.Symbol,
		"productType": productType,
		"marginCoin":  marginCoin,
		"marginMode":  "crossed",
		"side":        string(req.Side),
		"size":        formatSize(req.Size),
	}

	route := "order.place"
	switch req.Type {
	case model.OrderMarket:
		body["orderType"] = "market"
	case model.OrderLimit:
		body["orderType"] = "limit"
		body["price"] = formatSize(req.Price)
	case model.OrderStop, model.OrderTakeProfit:
		route = "order.plan-place"
		body["orderType"] = "market"
		body["triggerType"] = "mark_price"
		body["triggerPrice"] = formatSize(req.TriggerPrice)
		if req.Type == model.OrderStop {
			body["planType"] = "loss_plan"
		} else {
			body["planType"] = "profit_plan"
		}
	default:
		return model.OrderAck{}, fmt.Errorf("place order: unknown type %q", req.Type)
	}

	raw, err := c.doRetry(ctx, http.MethodPost, route, nil, body)
	if err != nil {
		return model.OrderAck{}, fmt.Errorf("place %s order: %w", req.Type, err)
	}

	var data struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return model.OrderAck{}, fmt.Errorf("place order: decode: %w", err)
	}
	log.Printf("[bitget] placed %s %s size=%s id=%s", req.Side, req.Type, formatSize(req.Size), data.OrderID)
	return model.OrderAck{OrderID: data.OrderID}, nil
}

// CancelAllOrders cancels all working orders for the instrument.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	_, err := c.doRetry(ctx, http.MethodPost, "order.cancel-all", nil, map[string]any{
		"symbol":      c.cfg.Symbol,
		"productType": productType,
		"marginCoin":  marginCoin,
	})
	if err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	return nil
}

// ── Request plumbing ──

// doRetry performs a request with bounded retries on transient failures.
// The delay doubles between attempts (2s, 4s).
func (c *Client) doRetry(ctx context.Context, method, route string, query map[string]string, body map[string]any) (json.RawMessage, error) {
	delay := retryDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.do(ctx, method, route, query, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == maxAttempts {
			break
		}
		log.Printf("[bitget] %s attempt %d/%d failed, retrying in %s: %v", route, attempt, maxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, route string, query map[string]string, body map[string]any) (json.RawMessage, error) {
	path, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("unknown route: %s", route)
	}

	requestPath := path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		requestPath += "?" + q.Encode()
	}

	var payload []byte
	var reader io.Reader
	if body != nil {
		payload, _ = json.Marshal(body)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.rootURL+requestPath, reader)
	if err != nil {
		return nil, err
	}
	c.sign(req, method, requestPath, payload)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Msg: "unparseable response"}
	}
	if resp.StatusCode != http.StatusOK || (envelope.Code != "" && envelope.Code != "00000") {
		return nil, &APIError{Status: resp.StatusCode, Code: envelope.Code, Msg: envelope.Msg}
	}
	return envelope.Data, nil
}

// sign attaches the ACCESS-* authentication headers. Public market-data
// endpoints work unauthenticated; headers are skipped without credentials.
func (c *Client) sign(req *http.Request, method, requestPath string, body []byte) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey == "" {
		return
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(ts + method + requestPath))
	mac.Write(body)

	req.Header.Set("ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.cfg.Passphrase)
}

// parseCandles decodes the exchange's [[ts,o,h,l,c,baseVol,quoteVol],...]
// rows into a Series, ascending by timestamp.
func parseCandles(raw json.RawMessage) (model.Series, error) {
	var rows [][]string
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse candles: %w", err)
	}

	series := make(model.Series, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse candles: bad timestamp %q", r[0])
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(r[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse candles: bad field %q", r[i+1])
			}
			vals[i] = v
		}
		series = append(series, model.Candle{
			TS:     time.UnixMilli(ms).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}

	// The API returns newest-last already, but don't rely on it.
	for i := 1; i < len(series); i++ {
		if series[i].TS.Before(series[i-1].TS) {
			reverse(series)
			break
		}
	}
	return series, nil
}

func reverse(s model.Series) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
