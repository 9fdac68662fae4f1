// Package risk maps account equity and volatility to position sizes and
// protective price levels.
package risk

import (
	"math"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// Params holds the fixed risk configuration for a strategy instance.
type Params struct {
	RiskFraction float64 // fraction of equity risked per new position
	StopMult     float64 // stop-loss distance in ATR multiples
	TP1Mult      float64 // first take-profit distance in ATR multiples
	TP2Mult      float64 // second take-profit distance in ATR multiples
}

// Levels are the protective prices attached to a new position.
type Levels struct {
	StopLoss    float64
	TakeProfit1 float64
	TakeProfit2 float64
}

// LevelsFor computes stop and take-profit prices from the entry price and
// current ATR. The stop sits against the position, the targets with it:
// for a long, stop = entry - atr*stopMult and targets above entry; signs
// flip for a short.
func (p Params) LevelsFor(side model.Side, entry, atr float64) Levels {
	sign := side.Sign()
	return Levels{
		StopLoss:    entry - sign*atr*p.StopMult,
		TakeProfit1: entry + sign*atr*p.TP1Mult,
		TakeProfit2: entry + sign*atr*p.TP2Mult,
	}
}

// LiveSize computes the live-trading position size by dividing the risked
// equity by the per-unit loss at the stop. Returns 0 when the stop collapses
// onto the entry (degenerate ATR of zero); callers skip the entry in that
// case rather than propagating an error.
func (p Params) LiveSize(equity, entry, stop float64) float64 {
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit == 0 {
		return 0
	}
	return equity * p.RiskFraction / riskPerUnit
}

// BacktestNotional is the simulation driver's simplified sizing: the risked
// equity used directly as notional. It computes materially different sizes
// than LiveSize for the same inputs; the two formulas reflect different
// historical behavior and are kept separate on purpose.
func (p Params) BacktestNotional(equity float64) float64 {
	return equity * p.RiskFraction
}
