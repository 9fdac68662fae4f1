// Package redis implements the live trade journal on a capped Redis stream,
// plus a small set of latest-state keys for dashboards.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

const (
	// streamMaxLen caps the journal stream (approximate trimming).
	streamMaxLen = 100000

	stateTTL = 24 * time.Hour
)

// Journal writes trade records to a Redis stream and mirrors the latest
// account state into plain keys. One Journal serves one instrument.
type Journal struct {
	client *goredis.Client
	prefix string
	symbol string
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, db int, prefix, symbol string) (*Journal, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s (db %d)", addr, db)
	return &Journal{client: client, prefix: prefix, symbol: symbol}, nil
}

// Client exposes the underlying connection for health checks.
func (j *Journal) Client() *goredis.Client { return j.client }

func (j *Journal) key(parts ...string) string {
	k := j.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// RecordTrade appends a trade record to the journal stream.
func (j *Journal) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	values := map[string]interface{}{
		"symbol":        j.symbol,
		"kind":          string(rec.Kind),
		"entry_ts":      rec.EntryTime.Unix(),
		"entry_price":   rec.EntryPrice,
		"size":          rec.Size,
		"balance_after": rec.BalanceAfter,
	}
	if rec.IsClose() {
		values["reason"] = string(rec.Reason)
		values["exit_ts"] = rec.ExitTime.Unix()
		values["exit_price"] = rec.ExitPrice
		values["profit"] = rec.Profit
	} else {
		values["stop_loss"] = rec.StopLoss
		values["take_profit1"] = rec.TakeProfit1
		values["take_profit2"] = rec.TakeProfit2
	}

	err := j.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: j.key("trades"),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd: %w", err)
	}
	return nil
}

// SetBalance mirrors the latest account balance.
func (j *Journal) SetBalance(ctx context.Context, balance float64) error {
	return j.client.Set(ctx, j.key("balance"),
		strconv.FormatFloat(balance, 'f', -1, 64), stateTTL).Err()
}

// SetPosition mirrors the open position, or clears it when pos is nil.
func (j *Journal) SetPosition(ctx context.Context, pos *model.Position) error {
	k := j.key("position", j.symbol)
	if pos == nil {
		return j.client.Del(ctx, k).Err()
	}
	return j.client.HSet(ctx, k, map[string]interface{}{
		"side":         pos.Side.String(),
		"entry_price":  pos.EntryPrice,
		"size":         pos.Size,
		"stop_loss":    pos.StopLoss,
		"take_profit1": pos.TakeProfit1,
		"take_profit2": pos.TakeProfit2,
		"opened_at":    pos.OpenedAt.Unix(),
		"partial":      strconv.FormatBool(pos.Partial),
	}).Err()
}

// Close releases the Redis connection.
func (j *Journal) Close() error { return j.client.Close() }
