package model

import "time"

// Position is an open position owned by the lifecycle engine.
// At most one position is open per instrument; Size shrinks on a partial
// close and never grows after entry.
type Position struct {
	Side        Side      `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Size        float64   `json:"size"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	OpenedAt    time.Time `json:"opened_at"`
	Partial     bool      `json:"partial"` // TP1 already filled
}

// PnL returns the realized profit of closing size units at exitPrice,
// as a fraction of entry notional (matching the historical accounting).
func (p *Position) PnL(exitPrice, size float64) float64 {
	return p.Side.Sign() * (exitPrice - p.EntryPrice) / p.EntryPrice * size
}

// StopHit reports whether the candle breached the stop level.
func (p *Position) StopHit(c Candle) bool {
	if p.Side == Long {
		return c.Low <= p.StopLoss
	}
	return c.High >= p.StopLoss
}

// TargetHit reports whether the candle breached a take-profit level.
func (p *Position) TargetHit(c Candle, target float64) bool {
	if p.Side == Long {
		return c.High >= target
	}
	return c.Low <= target
}
