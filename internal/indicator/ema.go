package indicator

import (
	"fmt"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// EMA calculates an Exponential Moving Average.
// O(1) per update — no window storage needed.
//
// The first observation seeds the average directly, so every row has a value
// (no leading gap to back-fill). Subsequent updates apply
// ema = price*k + ema_prev*(1-k) with k = 2/(period+1).
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA_%d", e.period) }

func (e *EMA) Update(candle model.Candle) {
	e.UpdateValue(candle.Close)
}

// UpdateValue feeds a raw value instead of a candle close. MACD uses this to
// smooth its own oscillator line.
func (e *EMA) UpdateValue(v float64) {
	e.count++
	if e.count == 1 {
		e.current = v
		return
	}
	e.current = v*e.multiplier + e.current*(1-e.multiplier)
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count > 0 }
