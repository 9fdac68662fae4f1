package engine

import (
	"math"
	"testing"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/model"
	"github.com/shaumne/trade-bot-bitget/internal/risk"
)

var testRisk = risk.Params{RiskFraction: 0.1, StopMult: 2, TP1Mult: 3, TP2Mult: 5}

func newBacktestEngine(balance float64) *Engine {
	return New(Config{Mode: Backtest, Risk: testRisk, MaxTradesPerDay: 6}, balance)
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// row builds a step input row. High/Low straddle the close by ±1 unless the
// test overrides them afterwards.
func row(ts time.Time, close, atr float64, signal int) indicator.Row {
	return indicator.Row{
		Candle: model.Candle{TS: ts, Open: close, High: close + 1, Low: close - 1, Close: close},
		ATR:    atr,
		Signal: signal,
	}
}

// openLong drives the engine into a long at close=100, ATR=5:
// stop 90, tp1 115, tp2 125, size = balance * 0.1.
func openLong(t *testing.T, e *Engine) model.TradeRecord {
	t.Helper()
	recs := e.Step(StepInput{Row: row(day0, 100, 5, 1)})
	if len(recs) != 1 || recs[0].Kind != model.TradeOpenLong {
		t.Fatalf("expected one open_long record, got %+v", recs)
	}
	return recs[0]
}

func TestStep_OpensLongOnSignal(t *testing.T) {
	e := newBacktestEngine(1000)
	rec := openLong(t, e)

	assertClose(t, "size", rec.Size, 100) // 1000 * 0.1 notional
	assertClose(t, "stop", rec.StopLoss, 90)
	assertClose(t, "tp1", rec.TakeProfit1, 115)
	assertClose(t, "tp2", rec.TakeProfit2, 125)

	pos := e.Position()
	if pos == nil || pos.Side != model.Long {
		t.Fatalf("expected open long position, got %+v", pos)
	}
	if e.Account().TradesToday != 1 {
		t.Errorf("TradesToday: got %d, want 1", e.Account().TradesToday)
	}
}

func TestStep_OpensShortOnSignal(t *testing.T) {
	e := newBacktestEngine(1000)
	recs := e.Step(StepInput{Row: row(day0, 100, 5, -1)})
	if len(recs) != 1 || recs[0].Kind != model.TradeOpenShort {
		t.Fatalf("expected one open_short record, got %+v", recs)
	}
	assertClose(t, "stop above entry", recs[0].StopLoss, 110)
	assertClose(t, "tp1 below entry", recs[0].TakeProfit1, 85)
}

func TestStep_StopLossClosesAtStopPrice(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	next := row(day0.Add(15*time.Minute), 88, 5, 0)
	recs := e.Step(StepInput{Row: next})
	if len(recs) != 1 || recs[0].Reason != model.ReasonStopLoss {
		t.Fatalf("expected stop-loss close, got %+v", recs)
	}

	// Fill at the stop level, not the candle close.
	assertClose(t, "exit price", recs[0].ExitPrice, 90)
	assertClose(t, "pnl", recs[0].Profit, -10) // (90-100)/100 * 100
	assertClose(t, "balance", e.Account().Balance, 990)

	stats := e.Stats()
	if stats.Losses != 1 {
		t.Errorf("losses: got %f, want 1", stats.Losses)
	}
	assertClose(t, "total loss", stats.TotalLoss, 10)
	if e.Position() != nil {
		t.Error("position must be flat after stop")
	}
}

func TestStep_PartialThenFullTakeProfit(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	// TP1: high reaches 116, half the size closes at exactly 115.
	tp1 := row(day0.Add(15*time.Minute), 115, 5, 0)
	recs := e.Step(StepInput{Row: tp1})
	if len(recs) != 1 || recs[0].Reason != model.ReasonTakeProfit1 {
		t.Fatalf("expected tp1 partial close, got %+v", recs)
	}
	assertClose(t, "half size", recs[0].Size, 50)
	assertClose(t, "tp1 pnl", recs[0].Profit, 7.5)
	assertClose(t, "balance after tp1", e.Account().Balance, 1007.5)

	pos := e.Position()
	if pos == nil || !pos.Partial {
		t.Fatalf("expected partial position, got %+v", pos)
	}
	assertClose(t, "remaining size", pos.Size, 50)

	// A second touch of TP1 must not re-halve the remainder.
	recs = e.Step(StepInput{Row: tp1})
	if len(recs) != 0 {
		t.Fatalf("tp1 fired twice: %+v", recs)
	}
	assertClose(t, "size unchanged", e.Position().Size, 50)

	// TP2 closes the rest.
	tp2 := row(day0.Add(45*time.Minute), 125, 5, 0)
	recs = e.Step(StepInput{Row: tp2})
	if len(recs) != 1 || recs[0].Reason != model.ReasonTakeProfit2 {
		t.Fatalf("expected tp2 close, got %+v", recs)
	}
	assertClose(t, "tp2 pnl", recs[0].Profit, 12.5)
	assertClose(t, "final balance", e.Account().Balance, 1020)

	stats := e.Stats()
	assertClose(t, "wins counted as halves", stats.Wins, 1)
	assertClose(t, "total profit", stats.TotalProfit, 20)
	if e.Position() != nil {
		t.Error("position must be flat after tp2")
	}
}

func TestStep_StopBeatsTakeProfitOnSameCandle(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	// A wide candle touching both the stop and tp1: the stop wins.
	wide := row(day0.Add(15*time.Minute), 100, 5, 0)
	wide.Candle.High = 120
	wide.Candle.Low = 85
	recs := e.Step(StepInput{Row: wide})
	if len(recs) != 1 || recs[0].Reason != model.ReasonStopLoss {
		t.Fatalf("expected stop-loss to win the priority chain, got %+v", recs)
	}
}

func TestStep_SignalExitClosesAtCandleClose(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	exit := row(day0.Add(15*time.Minute), 104, 5, 0)
	exit.EMACross = -1
	exit.MACDCross = -1
	recs := e.Step(StepInput{Row: exit})
	if len(recs) != 1 || recs[0].Reason != model.ReasonSignal {
		t.Fatalf("expected signal exit, got %+v", recs)
	}
	assertClose(t, "exit at close", recs[0].ExitPrice, 104)
	assertClose(t, "pnl", recs[0].Profit, 4)

	stats := e.Stats()
	if stats.Wins != 1 {
		t.Errorf("profitable signal exit must count one win, got %f", stats.Wins)
	}
}

func TestStep_LoneCrossoverDoesNotExit(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	only := row(day0.Add(15*time.Minute), 104, 5, 0)
	only.EMACross = -1 // MACD did not confirm
	if recs := e.Step(StepInput{Row: only}); len(recs) != 0 {
		t.Fatalf("single bearish crossover must not close, got %+v", recs)
	}
}

func TestStep_NoChainedEntryAfterClose(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	// Exit and entry conditions on the same candle: only the close fires.
	both := row(day0.Add(15*time.Minute), 104, 5, 1)
	both.EMACross = -1
	both.MACDCross = -1
	recs := e.Step(StepInput{Row: both})
	if len(recs) != 1 || !recs[0].IsClose() {
		t.Fatalf("expected exactly the close, got %+v", recs)
	}
	if e.Position() != nil {
		t.Error("entry must not chain into the same step as a close")
	}
}

func TestStep_DailyCapBlocksAndResets(t *testing.T) {
	e := New(Config{Mode: Backtest, Risk: testRisk, MaxTradesPerDay: 2}, 1000)

	exitRow := func(ts time.Time) indicator.Row {
		r := row(ts, 100, 5, 0)
		r.EMACross = -1
		r.MACDCross = -1
		return r
	}

	ts := day0
	for i := 0; i < 2; i++ {
		if recs := e.Step(StepInput{Row: row(ts, 100, 5, 1)}); len(recs) != 1 {
			t.Fatalf("entry %d blocked unexpectedly", i+1)
		}
		ts = ts.Add(15 * time.Minute)
		e.Step(StepInput{Row: exitRow(ts)})
		ts = ts.Add(15 * time.Minute)
	}

	// Third entry on the same UTC date is capped.
	if recs := e.Step(StepInput{Row: row(ts, 100, 5, 1)}); len(recs) != 0 {
		t.Fatalf("third same-day entry must be capped, got %+v", recs)
	}

	// The next calendar day resets the counter.
	nextDay := day0.Add(24 * time.Hour)
	if recs := e.Step(StepInput{Row: row(nextDay, 100, 5, 1)}); len(recs) != 1 {
		t.Fatal("entry must be allowed after the daily reset")
	}
}

func TestStep_BlockEntry(t *testing.T) {
	e := newBacktestEngine(1000)
	recs := e.Step(StepInput{Row: row(day0, 100, 5, 1), BlockEntry: true})
	if len(recs) != 0 {
		t.Fatalf("blocked entry still opened: %+v", recs)
	}
	if e.Account().TradesToday != 0 {
		t.Error("blocked entry must not consume the daily cap")
	}
}

func TestStep_RelaxedLongIsLiveOnly(t *testing.T) {
	live := New(Config{Mode: Live, Risk: testRisk, MaxTradesPerDay: 6}, 1000)
	recs := live.Step(StepInput{Row: row(day0, 100, 5, 0), RelaxedLong: true})
	if len(recs) != 1 || recs[0].Kind != model.TradeOpenLong {
		t.Fatalf("live relaxed trigger must open a long, got %+v", recs)
	}
	// Live sizing: 1000*0.1 risked over the 10-point stop distance.
	assertClose(t, "live size", recs[0].Size, 10)

	sim := newBacktestEngine(1000)
	if recs := sim.Step(StepInput{Row: row(day0, 100, 5, 0), RelaxedLong: true}); len(recs) != 0 {
		t.Fatalf("backtest mode must ignore the relaxed trigger, got %+v", recs)
	}
}

func TestStep_LiveZeroSizeSkipsEntry(t *testing.T) {
	e := New(Config{Mode: Live, Risk: testRisk, MaxTradesPerDay: 6}, 1000)

	// ATR 0 collapses the stop onto the entry: size degenerates to zero.
	recs := e.Step(StepInput{Row: row(day0, 100, 0, 1)})
	if len(recs) != 0 {
		t.Fatalf("zero-size entry must be skipped, got %+v", recs)
	}
	if e.Position() != nil {
		t.Error("no position may be opened at zero size")
	}
	if e.Account().TradesToday != 0 {
		t.Error("skipped entry must not consume the daily cap")
	}
}

func TestForceClose(t *testing.T) {
	e := newBacktestEngine(1000)
	openLong(t, e)

	ts := day0.Add(time.Hour)
	rec, ok := e.ForceClose(110, ts, model.ReasonEndOfData)
	if !ok {
		t.Fatal("force close with an open position must produce a record")
	}
	if rec.Reason != model.ReasonEndOfData {
		t.Errorf("reason: got %s", rec.Reason)
	}
	assertClose(t, "pnl", rec.Profit, 10)
	assertClose(t, "balance", e.Account().Balance, 1010)
	if e.Position() != nil {
		t.Error("position must be flat after force close")
	}

	if _, ok := e.ForceClose(110, ts, model.ReasonEndOfData); ok {
		t.Error("force close while flat must be a no-op")
	}
}

func TestStats_WinRateCountsFractionalWins(t *testing.T) {
	e := newBacktestEngine(1000)

	ts := day0
	runTrade := func(exitClose float64) {
		e.Step(StepInput{Row: row(ts, 100, 5, 1)})
		ts = ts.Add(15 * time.Minute)
		exit := row(ts, exitClose, 5, 0)
		exit.EMACross = -1
		exit.MACDCross = -1
		e.Step(StepInput{Row: exit})
		ts = ts.Add(15 * time.Minute)
	}

	runTrade(104) // win
	runTrade(98)  // loss
	runTrade(97)  // loss

	stats := e.Stats()
	if stats.Opened != 3 {
		t.Fatalf("opened: got %d, want 3", stats.Opened)
	}
	assertClose(t, "win rate", stats.WinRate(), 1.0/3.0)
}

func TestStats_WinRateZeroBeforeAnyTrade(t *testing.T) {
	if got := (Stats{}).WinRate(); got != 0 {
		t.Errorf("empty stats win rate: got %f", got)
	}
}

func TestStep_ShortLifecycle(t *testing.T) {
	e := newBacktestEngine(1000)
	e.Step(StepInput{Row: row(day0, 100, 5, -1)})
	// short: stop 110, tp1 85, tp2 75

	// TP1 for a short triggers on the low.
	tp1 := row(day0.Add(15*time.Minute), 86, 5, 0)
	tp1.Candle.Low = 84
	recs := e.Step(StepInput{Row: tp1})
	if len(recs) != 1 || recs[0].Kind != model.TradePartialCloseShort {
		t.Fatalf("expected short partial close, got %+v", recs)
	}
	// (100-85)/100 * 50
	assertClose(t, "short tp1 pnl", recs[0].Profit, 7.5)

	// Stop on the remainder: high through 110.
	stop := row(day0.Add(30*time.Minute), 109, 5, 0)
	stop.Candle.High = 111
	recs = e.Step(StepInput{Row: stop})
	if len(recs) != 1 || recs[0].Reason != model.ReasonStopLoss {
		t.Fatalf("expected short stop, got %+v", recs)
	}
	// (100-110)/100 * 50
	assertClose(t, "short stop pnl", recs[0].Profit, -5)
	assertClose(t, "balance", e.Account().Balance, 1002.5)
}
