package indicator

import (
	"fmt"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// MACD is the moving-average-convergence-divergence oscillator:
// fast EMA minus slow EMA, with its own EMA signal line and their difference.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	fastPeriod, slowPeriod, signalPeriod int
}

// NewMACD creates a MACD with the given fast/slow/signal periods
// (conventionally 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:         NewEMA(fastPeriod),
		slow:         NewEMA(slowPeriod),
		signal:       NewEMA(signalPeriod),
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Update(candle model.Candle) {
	m.fast.Update(candle)
	m.slow.Update(candle)
	m.signal.UpdateValue(m.fast.Value() - m.slow.Value())
}

// Value returns the MACD line (fast EMA − slow EMA).
func (m *MACD) Value() float64 { return m.fast.Value() - m.slow.Value() }

// Signal returns the smoothed signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Diff returns the MACD histogram (line − signal).
func (m *MACD) Diff() float64 { return m.Value() - m.Signal() }

func (m *MACD) Ready() bool { return m.fast.Ready() }
