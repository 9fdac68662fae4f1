package strategy

import (
	"testing"

	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// frame builds a minimal frame with hand-set crossover columns.
func frame(emaCross, macdCross []int) *indicator.Frame {
	n := len(emaCross)
	return &indicator.Frame{
		Candles:   make(model.Series, n),
		EMACross:  emaCross,
		MACDCross: macdCross,
		Signal:    make([]int, n),
	}
}

func TestAnnotate_TrailingWindowSums(t *testing.T) {
	f := frame(
		[]int{0, 1, 0, 0, -1, -1},
		[]int{0, 0, 1, 0, -1, 0},
	)
	Annotate(f)

	want := []int{0, 0, 1, 1, 0, -1}
	for i, w := range want {
		if f.Signal[i] != w {
			t.Errorf("Signal[%d]: got %d, want %d", i, f.Signal[i], w)
		}
	}
}

func TestAnnotate_FirstRowsStayZero(t *testing.T) {
	// Crossovers at rows 0 and 1 alone cannot produce a signal before the
	// window is full.
	f := frame([]int{1, 1, 0}, []int{1, 1, 0})
	Annotate(f)
	if f.Signal[0] != 0 || f.Signal[1] != 0 {
		t.Errorf("rows before the window filled must stay 0, got %v", f.Signal[:2])
	}
	if f.Signal[2] != 1 {
		t.Errorf("Signal[2]: got %d, want 1", f.Signal[2])
	}
}

func TestAnnotate_RequiresBothOscillators(t *testing.T) {
	// EMA crossed up but MACD never did: no signal anywhere.
	f := frame([]int{0, 1, 0, 0, 1, 0}, []int{0, 0, 0, 0, 0, 0})
	Annotate(f)
	for i, s := range f.Signal {
		if s != 0 {
			t.Errorf("Signal[%d]: got %d, want 0 (MACD never confirmed)", i, s)
		}
	}
}

func TestAnnotate_MixedWindowCancelsOut(t *testing.T) {
	// A bullish and a bearish EMA crossover inside one window sum to zero.
	f := frame([]int{0, 1, -1, 0}, []int{0, 1, 1, 0})
	Annotate(f)
	if f.Signal[2] != 0 {
		t.Errorf("Signal[2]: got %d, want 0 (ema sum cancels)", f.Signal[2])
	}
}

func TestExitLong(t *testing.T) {
	if !ExitLong(indicator.Row{EMACross: -1, MACDCross: -1}) {
		t.Error("both bearish crossovers must exit a long")
	}
	if ExitLong(indicator.Row{EMACross: -1, MACDCross: 0}) {
		t.Error("a lone EMA crossover must not exit a long")
	}
	if ExitLong(indicator.Row{EMACross: 0, MACDCross: -1}) {
		t.Error("a lone MACD crossover must not exit a long")
	}
}

func TestExitShort(t *testing.T) {
	if !ExitShort(indicator.Row{EMACross: 1, MACDCross: 1}) {
		t.Error("both bullish crossovers must exit a short")
	}
	if ExitShort(indicator.Row{EMACross: 1, MACDCross: -1}) {
		t.Error("mixed crossovers must not exit a short")
	}
}

func TestRecentBullishConfluence(t *testing.T) {
	f := frame([]int{0, 1, 0}, []int{0, 0, 1})

	if !RecentBullishConfluence(f, 2) {
		t.Error("EMA up at row 1 and MACD up at row 2 should count at row 2")
	}
	if RecentBullishConfluence(f, 1) {
		t.Error("MACD has not crossed yet at row 1")
	}
}

func TestRecentBullishConfluence_SurvivesMixedWindow(t *testing.T) {
	// Unlike the composite signal, the relaxed trigger ignores bearish
	// crossovers in the same window.
	f := frame([]int{0, 1, -1, 0}, []int{0, 1, 1, 0})
	if !RecentBullishConfluence(f, 2) {
		t.Error("relaxed trigger should fire despite the bearish EMA crossover")
	}
}

func TestRecentBullishConfluence_ClampsAtStart(t *testing.T) {
	f := frame([]int{1}, []int{1})
	if !RecentBullishConfluence(f, 0) {
		t.Error("window shorter than 3 rows should still evaluate")
	}
}
