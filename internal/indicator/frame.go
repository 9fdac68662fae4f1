package indicator

import "github.com/shaumne/trade-bot-bitget/internal/model"

// Params holds the window parameters for a full indicator frame.
type Params struct {
	EMAFast    int
	EMASlow    int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	ATRPeriod  int
}

// Frame is a candle series augmented with per-row indicator columns.
// All slices have the same length as Candles. The value at row i is a
// function only of candles[0..i].
//
// EMACross/MACDCross are -1, 0 or +1 and nonzero only at the exact row where
// the two series invert their relative order. Signal is the composite
// directional decision filled in by the strategy package; Compute leaves
// it zeroed.
type Frame struct {
	Candles model.Series

	EMAFast    []float64
	EMASlow    []float64
	MACD       []float64
	MACDSignal []float64
	MACDDiff   []float64
	ATR        []float64

	EMACross  []int
	MACDCross []int
	Signal    []int
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Candles) }

// Row bundles the values the lifecycle engine consumes at one time step.
type Row struct {
	Candle    model.Candle
	ATR       float64
	EMACross  int
	MACDCross int
	Signal    int
}

// Row returns the engine view of row i.
func (f *Frame) Row(i int) Row {
	return Row{
		Candle:    f.Candles[i],
		ATR:       f.ATR[i],
		EMACross:  f.EMACross[i],
		MACDCross: f.MACDCross[i],
		Signal:    f.Signal[i],
	}
}

// Compute runs the indicator recurrences over the series and derives the
// crossover columns. Row 0 crossovers are 0 (no previous row to compare).
func Compute(series model.Series, p Params) *Frame {
	n := len(series)
	f := &Frame{
		Candles:    series,
		EMAFast:    make([]float64, n),
		EMASlow:    make([]float64, n),
		MACD:       make([]float64, n),
		MACDSignal: make([]float64, n),
		MACDDiff:   make([]float64, n),
		ATR:        make([]float64, n),
		EMACross:   make([]int, n),
		MACDCross:  make([]int, n),
		Signal:     make([]int, n),
	}

	fast := NewEMA(p.EMAFast)
	slow := NewEMA(p.EMASlow)
	macd := NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal)
	atr := NewATR(p.ATRPeriod)

	for i, c := range series {
		fast.Update(c)
		slow.Update(c)
		macd.Update(c)
		atr.Update(c)

		f.EMAFast[i] = fast.Value()
		f.EMASlow[i] = slow.Value()
		f.MACD[i] = macd.Value()
		f.MACDSignal[i] = macd.Signal()
		f.MACDDiff[i] = macd.Diff()
		f.ATR[i] = atr.Value()

		if i > 0 {
			f.EMACross[i] = crossover(f.EMAFast[i-1], f.EMASlow[i-1], f.EMAFast[i], f.EMASlow[i])
			f.MACDCross[i] = crossover(f.MACD[i-1], f.MACDSignal[i-1], f.MACD[i], f.MACDSignal[i])
		}
	}
	return f
}

// crossover returns +1 when a crosses above b at this step, -1 when it
// crosses below, else 0.
func crossover(prevA, prevB, a, b float64) int {
	switch {
	case a > b && prevA <= prevB:
		return 1
	case a < b && prevA >= prevB:
		return -1
	}
	return 0
}
