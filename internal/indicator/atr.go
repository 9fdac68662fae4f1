package indicator

import (
	"fmt"
	"math"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// ATR calculates the Average True Range, a volatility measure over the
// high/low/close ranges. True range is smoothed with the Wilder recurrence
// atr = (atr_prev*(period-1) + tr) / period, seeded from the first candle's
// high-low range. ATR is non-negative for any input.
type ATR struct {
	period    int
	current   float64
	prevClose float64
	count     int
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR_%d", a.period) }

func (a *ATR) Update(candle model.Candle) {
	a.count++
	if a.count == 1 {
		a.current = candle.High - candle.Low
		a.prevClose = candle.Close
		return
	}

	tr := candle.High - candle.Low
	if v := math.Abs(candle.High - a.prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(candle.Low - a.prevClose); v > tr {
		tr = v
	}

	n := float64(a.period)
	a.current = (a.current*(n-1) + tr) / n
	a.prevClose = candle.Close
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count > 0 }
