package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

const (
	defaultWSURL   = "wss://ws.bitget.com/v2/ws/public"
	pingInterval   = 30 * time.Second
	reconnectDelay = 5 * time.Second
)

// CandleStream subscribes to the public candle channel and pushes closed
// candles into a channel. It reconnects with a fixed delay on any transport
// error and resubscribes after each reconnect.
//
// The live driver can use this as an alternative candle source; the REST
// poll path stays the default.
type CandleStream struct {
	url       string
	symbol    string
	timeframe string

	// OnReconnect is an optional metrics hook.
	OnReconnect func()
}

// NewCandleStream creates a stream for one instrument and timeframe.
func NewCandleStream(symbol, timeframe string) *CandleStream {
	return &CandleStream{
		url:       defaultWSURL,
		symbol:    symbol,
		timeframe: timeframe,
	}
}

// Run connects and streams candles into candleCh until ctx is cancelled.
// Only completed candles are forwarded; the forming bucket is skipped so
// downstream indicator state never sees a value that will be revised.
func (s *CandleStream) Run(ctx context.Context, candleCh chan<- model.Candle) error {
	for {
		if err := s.runOnce(ctx, candleCh); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[ws] connection lost, reconnecting in %s: %v", reconnectDelay, err)
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (s *CandleStream) runOnce(ctx context.Context, candleCh chan<- model.Candle) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{{
			"instType": productType,
			"channel":  "candle" + s.timeframe,
			"instId":   s.symbol,
		}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("ws subscribe: %w", err)
	}
	log.Printf("[ws] subscribed to candle%s %s", s.timeframe, s.symbol)

	// Close the connection when ctx is done so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var lastClosed time.Time
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}
		if string(msg) == "pong" {
			continue
		}

		var frame struct {
			Action string     `json:"action"`
			Data   [][]string `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Printf("[ws] unparseable message: %v", err)
			continue
		}
		if frame.Action == "" || len(frame.Data) == 0 {
			continue // subscribe ack or event frame
		}

		// The last row is the forming bucket; everything before it is
		// closed. On the very first snapshot that can be many rows.
		for _, row := range frame.Data[:len(frame.Data)-1] {
			c, err := parseWSCandle(row)
			if err != nil {
				log.Printf("[ws] bad candle row: %v", err)
				continue
			}
			if !c.TS.After(lastClosed) {
				continue
			}
			lastClosed = c.TS
			select {
			case candleCh <- c:
			default:
				log.Println("[ws] candle channel full, dropping")
			}
		}
	}
}

func parseWSCandle(row []string) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return model.Candle{}, fmt.Errorf("bad timestamp %q", row[0])
	}
	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("bad field %q", row[i+1])
		}
		vals[i] = v
	}
	return model.Candle{
		TS:     time.UnixMilli(ms).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
