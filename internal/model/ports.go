package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the engine and drivers from the concrete exchange
// client and journal implementations. The core never talks to a network
// directly; it sees these contracts only.

// MarketData supplies candle history.
type MarketData interface {
	// FetchCandles returns the most recent limit candles, ascending by
	// timestamp.
	FetchCandles(ctx context.Context, limit int) (Series, error)
}

// Gateway is the order-execution side of the exchange. Calls either succeed
// or return an error; retries on transient failures happen inside the
// implementation, not in the core.
type Gateway interface {
	MarketData

	// FetchBalance returns the available quote-currency equity.
	FetchBalance(ctx context.Context) (float64, error)

	// FetchPositions returns the currently open positions for the
	// configured instrument.
	FetchPositions(ctx context.Context) ([]ExchangePosition, error)

	// SetLeverage sets the account leverage for the instrument.
	SetLeverage(ctx context.Context, leverage int) error

	// PlaceOrder submits one order leg.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)

	// CancelAllOrders cancels all working orders for the instrument.
	CancelAllOrders(ctx context.Context) error
}

// TradeJournal receives trade records as they are produced. Best effort:
// drivers log and swallow journal errors.
type TradeJournal interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
	Close() error
}
