// Package backtest replays the lifecycle engine over historical candles in
// one synchronous pass and aggregates performance statistics.
package backtest

import (
	"log"
	"math"

	"github.com/shaumne/trade-bot-bitget/internal/engine"
	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/model"
	"github.com/shaumne/trade-bot-bitget/internal/risk"
	"github.com/shaumne/trade-bot-bitget/internal/strategy"
)

// Config holds the simulation parameters.
type Config struct {
	InitialBalance  float64
	Indicators      indicator.Params
	Risk            risk.Params
	MaxTradesPerDay int
}

// Summary is the aggregate performance record of one simulation run.
type Summary struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	NetProfit      float64 `json:"net_profit"`
	PercentReturn  float64 `json:"percent_return"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  float64 `json:"winning_trades"` // fractional: partials count 0.5
	LosingTrades   float64 `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"` // +Inf when total loss is zero
	TotalProfit    float64 `json:"total_profit"`
	TotalLoss      float64 `json:"total_loss"`
}

// Result bundles everything a run produces: the trade ledger, the equity
// curve (one sample per realized close, after the initial balance), and the
// summary metrics.
type Result struct {
	Trades      []model.TradeRecord
	EquityCurve []float64
	Summary     Summary
}

// Run computes indicators and signals over the series, replays the engine
// step by step, and force-closes any position left open at the end of data.
//
// Evaluation starts at the second row, matching the historical replay: the
// first row has no predecessor for crossover detection.
func Run(series model.Series, cfg Config) Result {
	frame := strategy.Annotate(indicator.Compute(series, cfg.Indicators))

	eng := engine.New(engine.Config{
		Mode:            engine.Backtest,
		Risk:            cfg.Risk,
		MaxTradesPerDay: cfg.MaxTradesPerDay,
	}, cfg.InitialBalance)

	res := Result{
		EquityCurve: []float64{cfg.InitialBalance},
	}

	for i := 1; i < frame.Len(); i++ {
		for _, rec := range eng.Step(engine.StepInput{Row: frame.Row(i)}) {
			res.record(rec)
		}
	}

	if last := frame.Len() - 1; last >= 0 {
		c := frame.Candles[last]
		if rec, ok := eng.ForceClose(c.Close, c.TS, model.ReasonEndOfData); ok {
			log.Printf("[backtest] forced close at end of data: %.4f", c.Close)
			res.record(rec)
		}
	}

	res.Summary = summarize(cfg.InitialBalance, eng)
	return res
}

func (r *Result) record(rec model.TradeRecord) {
	r.Trades = append(r.Trades, rec)
	if rec.IsClose() {
		r.EquityCurve = append(r.EquityCurve, rec.BalanceAfter)
	}
}

func summarize(initial float64, eng *engine.Engine) Summary {
	stats := eng.Stats()
	balance := eng.Account().Balance

	profitFactor := math.Inf(1)
	if stats.TotalLoss > 0 {
		profitFactor = stats.TotalProfit / stats.TotalLoss
	}

	net := balance - initial
	return Summary{
		InitialBalance: initial,
		FinalBalance:   balance,
		NetProfit:      net,
		PercentReturn:  net / initial * 100,
		TotalTrades:    stats.Opened,
		WinningTrades:  stats.Wins,
		LosingTrades:   stats.Losses,
		WinRate:        stats.WinRate(),
		ProfitFactor:   profitFactor,
		TotalProfit:    stats.TotalProfit,
		TotalLoss:      stats.TotalLoss,
	}
}
