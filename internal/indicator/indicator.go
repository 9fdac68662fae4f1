// Package indicator provides technical indicator calculations over candle data.
//
// All indicators are incremental: they consume candles one at a time through
// Update and expose the current value in O(1), so the same recurrences serve
// both the vectorized backtest path and the per-tick live path. The value at
// any step depends only on candles seen so far — there is no look-ahead.
package indicator

import "github.com/shaumne/trade-bot-bitget/internal/model"

// Indicator is the interface for all technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA_9", "ATR_14").
	Name() string

	// Update feeds a new candle and recalculates.
	Update(candle model.Candle)

	// Value returns the current calculated value.
	Value() float64

	// Ready reports whether at least one candle has been consumed.
	Ready() bool
}
