// Package engine implements the position lifecycle state machine.
//
// One Engine instance tracks a single instrument: FLAT → OPEN(side) →
// PARTIAL(side) → FLAT, with a direct OPEN→FLAT on stop-loss or forced
// close. Each Step evaluates exactly one time step against the priority
// chain stop-loss > take-profit-1 > take-profit-2 > signal exit, and only
// when flat considers a new entry. Every transition produces exactly one
// trade record.
//
// The same engine serves the simulation and live drivers; Mode selects the
// sizing formula and the relaxed live entry trigger. There is no hidden
// state: drivers hold and pass an injected instance.
package engine

import (
	"log"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/model"
	"github.com/shaumne/trade-bot-bitget/internal/risk"
	"github.com/shaumne/trade-bot-bitget/internal/strategy"
)

// Mode selects driver-specific behavior inside the engine.
type Mode int

const (
	// Backtest sizes positions as risked notional and never uses the
	// relaxed entry trigger.
	Backtest Mode = iota
	// Live sizes positions by risk-per-unit division and accepts the
	// relaxed bullish confluence entry.
	Live
)

// Config is the static engine configuration.
type Config struct {
	Mode            Mode
	Risk            risk.Params
	MaxTradesPerDay int
}

// Stats aggregates win/loss accounting across all closed trades.
// Wins is fractional: a take-profit partial counts as half a win regardless
// of its sign — a deliberate historical simplification that the win-rate
// statistic depends on.
type Stats struct {
	Opened      int
	Wins        float64
	Losses      float64
	TotalProfit float64
	TotalLoss   float64
}

// WinRate returns (wins including halves) / trades opened, or 0 before any
// trade.
func (s Stats) WinRate() float64 {
	if s.Opened == 0 {
		return 0
	}
	return s.Wins / float64(s.Opened)
}

// StepInput is everything one evaluation step consumes.
type StepInput struct {
	Row indicator.Row

	// RelaxedLong enables the live driver's looser long entry: recent
	// bullish EMA and MACD crossovers even when the composite signal has
	// not turned on. Ignored in Backtest mode and never applied to shorts.
	RelaxedLong bool

	// BlockEntry gates new entries externally, e.g. when the exchange
	// already reports the maximum number of open positions.
	BlockEntry bool
}

// Engine is the per-instrument lifecycle state machine.
type Engine struct {
	cfg      Config
	account  model.Account
	position *model.Position
	stats    Stats
}

// New creates an engine starting flat with the given balance.
func New(cfg Config, initialBalance float64) *Engine {
	return &Engine{
		cfg:     cfg,
		account: model.Account{Balance: initialBalance},
	}
}

// Position returns the open position, or nil when flat.
func (e *Engine) Position() *model.Position { return e.position }

// Account returns a copy of the account state.
func (e *Engine) Account() model.Account { return e.account }

// Stats returns the accumulated win/loss accounting.
func (e *Engine) Stats() Stats { return e.stats }

// SetBalance overwrites the tracked balance with an externally observed
// equity figure. The live driver calls this with the exchange balance each
// iteration so sizing uses real equity rather than the simulated ledger.
func (e *Engine) SetBalance(balance float64) { e.account.Balance = balance }

// Step evaluates one time step. It returns the trade records produced:
// empty when nothing fired, one record otherwise. The exit chain and entry
// are mutually exclusive within a step — a close never chains into an open
// on the same candle.
func (e *Engine) Step(in StepInput) []model.TradeRecord {
	row := in.Row
	e.account.MaybeResetDaily(row.Candle.TS)

	if e.position != nil {
		if rec, ok := e.evalExits(row); ok {
			return []model.TradeRecord{rec}
		}
		return nil
	}

	if in.BlockEntry || e.account.TradesToday >= e.cfg.MaxTradesPerDay {
		return nil
	}

	side, ok := e.entrySide(in)
	if !ok {
		return nil
	}
	rec, ok := e.open(side, row)
	if !ok {
		return nil
	}
	return []model.TradeRecord{rec}
}

// ForceClose liquidates any open position at the given price, used when the
// data ends or the process stops with a position still open. The result is
// folded into win/loss accounting like a signal exit.
func (e *Engine) ForceClose(price float64, ts time.Time, reason model.CloseReason) (model.TradeRecord, bool) {
	if e.position == nil {
		return model.TradeRecord{}, false
	}
	return e.closeFull(price, ts, reason), true
}

// entrySide decides the direction of a new position, or none.
func (e *Engine) entrySide(in StepInput) (model.Side, bool) {
	switch {
	case in.Row.Signal == 1:
		return model.Long, true
	case e.cfg.Mode == Live && in.RelaxedLong:
		// Recent bullish confluence without a confirmed composite
		// signal. Long only; the short side never had this relaxation.
		return model.Long, true
	case in.Row.Signal == -1:
		return model.Short, true
	}
	return model.Long, false
}

// evalExits runs the exit priority chain. At most one transition fires per
// step.
func (e *Engine) evalExits(row indicator.Row) (model.TradeRecord, bool) {
	pos := e.position
	c := row.Candle

	switch {
	case pos.StopHit(c):
		rec := e.closeFull(pos.StopLoss, c.TS, model.ReasonStopLoss)
		return rec, true

	case !pos.Partial && pos.TargetHit(c, pos.TakeProfit1):
		rec := e.closeHalf(pos.TakeProfit1, c.TS)
		return rec, true

	case pos.TargetHit(c, pos.TakeProfit2):
		rec := e.closeFull(pos.TakeProfit2, c.TS, model.ReasonTakeProfit2)
		return rec, true

	case pos.Side == model.Long && strategy.ExitLong(row),
		pos.Side == model.Short && strategy.ExitShort(row):
		rec := e.closeFull(c.Close, c.TS, model.ReasonSignal)
		return rec, true
	}
	return model.TradeRecord{}, false
}

// open creates a new position at the row's close price. Returns false when
// sizing degenerates to zero (live mode with entry == stop); the entry is
// skipped and the daily counter untouched.
func (e *Engine) open(side model.Side, row indicator.Row) (model.TradeRecord, bool) {
	entry := row.Candle.Close
	levels := e.cfg.Risk.LevelsFor(side, entry, row.ATR)

	var size float64
	if e.cfg.Mode == Live {
		size = e.cfg.Risk.LiveSize(e.account.Balance, entry, levels.StopLoss)
		if size == 0 {
			log.Printf("[engine] skipping %s entry at %.4f: zero size (stop == entry)", side, entry)
			return model.TradeRecord{}, false
		}
	} else {
		size = e.cfg.Risk.BacktestNotional(e.account.Balance)
	}

	e.position = &model.Position{
		Side:        side,
		EntryPrice:  entry,
		Size:        size,
		StopLoss:    levels.StopLoss,
		TakeProfit1: levels.TakeProfit1,
		TakeProfit2: levels.TakeProfit2,
		OpenedAt:    row.Candle.TS,
	}
	e.account.TradesToday++
	e.stats.Opened++

	kind := model.TradeOpenLong
	if side == model.Short {
		kind = model.TradeOpenShort
	}
	return model.TradeRecord{
		Kind:         kind,
		EntryTime:    row.Candle.TS,
		EntryPrice:   entry,
		Size:         size,
		StopLoss:     levels.StopLoss,
		TakeProfit1:  levels.TakeProfit1,
		TakeProfit2:  levels.TakeProfit2,
		BalanceAfter: e.account.Balance,
	}, true
}

// closeHalf realizes the first take-profit: exactly half the current size
// closes, the remainder keeps its stop and second target.
func (e *Engine) closeHalf(price float64, ts time.Time) model.TradeRecord {
	pos := e.position
	half := pos.Size * 0.5
	pnl := pos.PnL(price, half)
	e.account.Balance += pnl

	if pnl > 0 {
		e.stats.TotalProfit += pnl
	}
	e.stats.Wins += 0.5

	pos.Size = half
	pos.Partial = true

	kind := model.TradePartialCloseLong
	if pos.Side == model.Short {
		kind = model.TradePartialCloseShort
	}
	return model.TradeRecord{
		Kind:         kind,
		Reason:       model.ReasonTakeProfit1,
		EntryTime:    pos.OpenedAt,
		ExitTime:     ts,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		Size:         half,
		Profit:       pnl,
		BalanceAfter: e.account.Balance,
	}
}

// closeFull realizes the remaining size and returns the engine to FLAT.
func (e *Engine) closeFull(price float64, ts time.Time, reason model.CloseReason) model.TradeRecord {
	pos := e.position
	pnl := pos.PnL(price, pos.Size)
	e.account.Balance += pnl

	switch reason {
	case model.ReasonStopLoss:
		if pnl < 0 {
			e.stats.TotalLoss += -pnl
		}
		e.stats.Losses++
	case model.ReasonTakeProfit2:
		if pnl > 0 {
			e.stats.TotalProfit += pnl
		}
		e.stats.Wins += 0.5
	default: // signal exit or forced liquidation
		if pnl > 0 {
			e.stats.TotalProfit += pnl
			e.stats.Wins++
		} else {
			e.stats.TotalLoss += -pnl
			e.stats.Losses++
		}
	}

	kind := model.TradeCloseLong
	if pos.Side == model.Short {
		kind = model.TradeCloseShort
	}
	rec := model.TradeRecord{
		Kind:         kind,
		Reason:       reason,
		EntryTime:    pos.OpenedAt,
		ExitTime:     ts,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		Size:         pos.Size,
		Profit:       pnl,
		BalanceAfter: e.account.Balance,
	}
	e.position = nil
	return rec
}
