// Package strategy derives discrete trade signals from indicator crossovers.
//
// The composite signal combines EMA and MACD crossover events over a short
// trailing window: both oscillators must have crossed in the same direction
// within the last three candles for a directional signal to fire. Exits use
// the instantaneous crossover at the current row only.
package strategy

import "github.com/shaumne/trade-bot-bitget/internal/indicator"

// window is the trailing number of rows (inclusive) a crossover stays
// relevant for entry confirmation.
const window = 3

// Annotate fills the frame's Signal column in place and returns the frame.
//
// signal[i] = +1 when the trailing-window sums of both crossover columns are
// positive, -1 when both are negative, else 0. The first window-1 rows stay 0
// (window not yet full). If opposite-signed contributions ever satisfy both
// directions at one row, long wins: it is checked first.
func Annotate(f *indicator.Frame) *indicator.Frame {
	for i := window - 1; i < f.Len(); i++ {
		emaSum, macdSum := 0, 0
		for j := i - window + 1; j <= i; j++ {
			emaSum += f.EMACross[j]
			macdSum += f.MACDCross[j]
		}
		switch {
		case emaSum > 0 && macdSum > 0:
			f.Signal[i] = 1
		case emaSum < 0 && macdSum < 0:
			f.Signal[i] = -1
		}
	}
	return f
}

// ExitLong reports the instantaneous bearish confluence that closes a long:
// EMA and MACD both crossed down at this exact row.
func ExitLong(row indicator.Row) bool {
	return row.EMACross == -1 && row.MACDCross == -1
}

// ExitShort reports the instantaneous bullish confluence that closes a short.
func ExitShort(row indicator.Row) bool {
	return row.EMACross == 1 && row.MACDCross == 1
}

// RecentBullishConfluence reports whether any bullish EMA crossover and any
// bullish MACD crossover occurred within the trailing window ending at row i.
// This is the live driver's relaxed long entry trigger: looser than the
// composite signal because the two crossovers need not survive summation
// against bearish ones. There is deliberately no short counterpart — the
// historical control flow only relaxed the long side.
func RecentBullishConfluence(f *indicator.Frame, i int) bool {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	ema, macd := false, false
	for j := lo; j <= i; j++ {
		if f.EMACross[j] == 1 {
			ema = true
		}
		if f.MACDCross[j] == 1 {
			macd = true
		}
	}
	return ema && macd
}
