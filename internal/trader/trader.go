// Package trader is the live driver: it polls the exchange on an interval,
// recomputes the indicator frame over a trailing candle window, advances the
// lifecycle engine by one step, and mirrors the engine's transitions onto
// the exchange as order legs.
//
// Each iteration is independent: an error aborts that iteration only and the
// loop continues at the next tick. Order legs are fire-and-forget after the
// gateway's own retries — a failed protective leg is logged and alerted, not
// rolled back.
package trader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/engine"
	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/metrics"
	"github.com/shaumne/trade-bot-bitget/internal/model"
	"github.com/shaumne/trade-bot-bitget/internal/notification"
	"github.com/shaumne/trade-bot-bitget/internal/strategy"
)

// candleWindow is the trailing history recomputed each iteration. Long
// enough for the slowest recurrence to converge, short enough to stay one
// request.
const candleWindow = 100

// Config holds the static live-driver configuration.
type Config struct {
	Symbol       string
	Leverage     int
	Indicators   indicator.Params
	MaxPositions int
	PollInterval time.Duration
}

// StateMirror is the optional journal extension that mirrors live state for
// dashboards. The redis journal implements it; others may not.
type StateMirror interface {
	SetBalance(ctx context.Context, balance float64) error
	SetPosition(ctx context.Context, pos *model.Position) error
}

// Trader runs the live evaluation loop for one instrument.
type Trader struct {
	cfg      Config
	gateway  model.Gateway
	engine   *engine.Engine
	journal  model.TradeJournal
	notifier notification.Notifier
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus

	leverageSet   bool
	lastEvaluated time.Time
}

// New creates a trader. journal, notifier, m and health may be nil.
func New(cfg Config, gw model.Gateway, eng *engine.Engine, journal model.TradeJournal,
	notifier notification.Notifier, m *metrics.Metrics, health *metrics.HealthStatus) *Trader {
	return &Trader{
		cfg:      cfg,
		gateway:  gw,
		engine:   eng,
		journal:  journal,
		notifier: notifier,
		metrics:  m,
		health:   health,
	}
}

// Run executes the polling loop until ctx is cancelled. On shutdown any
// tracked position is left open on the exchange, protected by its resting
// stop and take-profit orders; a final alert reports the state.
func (t *Trader) Run(ctx context.Context) error {
	log.Printf("[trader] starting %s loop, interval %s", t.cfg.Symbol, t.cfg.PollInterval)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[trader] iteration failed: %v", err)
			if t.metrics != nil {
				t.metrics.IterationErrors.Inc()
			}
			if t.health != nil {
				t.health.SetGatewayOK(false)
			}
		}

		select {
		case <-ctx.Done():
			t.shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	t.shutdown()
	return ctx.Err()
}

// RunStream consumes closed candles from candleCh instead of polling. The
// indicator window is still refetched per candle so the frame stays aligned
// with exchange history after gaps.
func (t *Trader) RunStream(ctx context.Context, candleCh <-chan model.Candle) error {
	log.Printf("[trader] starting %s stream loop", t.cfg.Symbol)
	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return ctx.Err()
		case c := <-candleCh:
			if t.health != nil {
				t.health.SetLastCandleTime(c.TS)
			}
			if err := t.iterate(ctx); err != nil {
				if ctx.Err() != nil {
					t.shutdown()
					return ctx.Err()
				}
				log.Printf("[trader] iteration failed: %v", err)
				if t.metrics != nil {
					t.metrics.IterationErrors.Inc()
				}
			}
		}
	}
}

// iterate performs one full evaluation: fetch, compute, step, execute.
func (t *Trader) iterate(ctx context.Context) error {
	start := time.Now()
	if t.metrics != nil {
		t.metrics.IterationsTotal.Inc()
		defer func() { t.metrics.IterationDur.Observe(time.Since(start).Seconds()) }()
	}

	series, err := t.gateway.FetchCandles(ctx, candleWindow)
	if err != nil {
		return err
	}
	if len(series) < t.minRows() {
		return fmt.Errorf("only %d candles, need %d", len(series), t.minRows())
	}

	f := strategy.Annotate(indicator.Compute(series, t.cfg.Indicators))
	last := f.Len() - 1
	row := f.Row(last)

	// Evaluate each closed candle at most once.
	if !row.Candle.TS.After(t.lastEvaluated) {
		return nil
	}

	balance, err := t.gateway.FetchBalance(ctx)
	if err != nil {
		return err
	}
	t.engine.SetBalance(balance)

	positions, err := t.gateway.FetchPositions(ctx)
	if err != nil {
		return err
	}

	t.lastEvaluated = row.Candle.TS
	t.observe(row, balance)

	recs := t.engine.Step(engine.StepInput{
		Row:         row,
		RelaxedLong: strategy.RecentBullishConfluence(f, last),
		BlockEntry:  len(positions) >= t.cfg.MaxPositions,
	})

	for i := range recs {
		t.execute(ctx, recs[i])
	}
	t.mirror(ctx, balance)
	return nil
}

// execute maps one engine transition onto exchange orders, then journals and
// alerts it.
func (t *Trader) execute(ctx context.Context, rec model.TradeRecord) {
	if !rec.IsClose() {
		t.executeEntry(ctx, rec)
	} else {
		t.executeClose(ctx, rec)
	}

	if t.journal != nil {
		if err := t.journal.RecordTrade(ctx, rec); err != nil {
			log.Printf("[trader] journal write failed: %v", err)
		}
	}
	notification.Notify(ctx, t.notifier, notification.TradeAlert(t.cfg.Symbol, rec))
}

// executeEntry places the market entry plus the three protective legs: a
// full-size stop, and two half-size take-profits.
func (t *Trader) executeEntry(ctx context.Context, rec model.TradeRecord) {
	side := rec.Kind.Side()

	if !t.leverageSet {
		if err := t.gateway.SetLeverage(ctx, t.cfg.Leverage); err != nil {
			log.Printf("[trader] set leverage failed: %v", err)
		} else {
			t.leverageSet = true
		}
	}

	half := rec.Size * 0.5
	legs := []model.OrderRequest{
		{Side: model.EntryOrderSide(side), Type: model.OrderMarket, Size: rec.Size},
		{Side: model.ExitOrderSide(side), Type: model.OrderStop, Size: rec.Size, TriggerPrice: rec.StopLoss},
		{Side: model.ExitOrderSide(side), Type: model.OrderTakeProfit, Size: half, TriggerPrice: rec.TakeProfit1},
		{Side: model.ExitOrderSide(side), Type: model.OrderTakeProfit, Size: half, TriggerPrice: rec.TakeProfit2},
	}
	for _, leg := range legs {
		t.placeLeg(ctx, leg)
	}

	if t.metrics != nil {
		t.metrics.TradesOpened.Inc()
	}
	log.Printf("[trader] opened %s %s size=%.6f entry=%.4f stop=%.4f",
		side, t.cfg.Symbol, rec.Size, rec.EntryPrice, rec.StopLoss)
}

// executeClose reconciles a full or partial close. Stop and take-profit
// closes were already executed by the exchange's resting plan orders; only a
// signal exit needs a fresh market order. Any full close sweeps leftover
// plan orders.
func (t *Trader) executeClose(ctx context.Context, rec model.TradeRecord) {
	side := rec.Kind.Side()

	if rec.Reason == model.ReasonSignal || rec.Reason == model.ReasonEndOfData {
		t.placeLeg(ctx, model.OrderRequest{
			Side: model.ExitOrderSide(side),
			Type: model.OrderMarket,
			Size: rec.Size,
		})
	}

	if rec.Kind != model.TradePartialCloseLong && rec.Kind != model.TradePartialCloseShort {
		if err := t.gateway.CancelAllOrders(ctx); err != nil {
			log.Printf("[trader] cancel working orders failed: %v", err)
		}
	}

	if t.metrics != nil {
		t.metrics.TradesClosed.WithLabelValues(string(rec.Reason)).Inc()
	}
	log.Printf("[trader] closed %s %s (%s) size=%.6f pnl=%.4f",
		side, t.cfg.Symbol, rec.Reason, rec.Size, rec.Profit)
}

// placeLeg submits one order leg. A failed leg does not abort the remaining
// legs; the bot alerts and carries on with whatever protection did land.
func (t *Trader) placeLeg(ctx context.Context, req model.OrderRequest) {
	if _, err := t.gateway.PlaceOrder(ctx, req); err != nil {
		log.Printf("[trader] %s %s leg failed: %v", req.Side, req.Type, err)
		if t.metrics != nil {
			t.metrics.OrderFailures.WithLabelValues(string(req.Type)).Inc()
		}
		notification.Notify(ctx, t.notifier, notification.ErrorAlert(
			fmt.Sprintf("%s %s order for %s failed: %v", req.Side, req.Type, t.cfg.Symbol, err)))
		return
	}
	if t.metrics != nil {
		t.metrics.OrdersPlaced.WithLabelValues(string(req.Type)).Inc()
	}
}

func (t *Trader) observe(row indicator.Row, balance float64) {
	if t.health != nil {
		t.health.SetGatewayOK(true)
		t.health.SetLastIteration(time.Now())
		t.health.SetLastCandleTime(row.Candle.TS)
	}
	if t.metrics == nil {
		return
	}
	t.metrics.LastSignal.Set(float64(row.Signal))
	t.metrics.Equity.Set(balance)
	t.metrics.CandleLag.Set(time.Since(row.Candle.TS).Seconds())

	switch pos := t.engine.Position(); {
	case pos == nil:
		t.metrics.OpenPosition.Set(0)
	default:
		t.metrics.OpenPosition.Set(pos.Side.Sign())
	}
}

// mirror pushes latest balance and position state to the journal when it
// supports state mirroring.
func (t *Trader) mirror(ctx context.Context, balance float64) {
	m, ok := t.journal.(StateMirror)
	if !ok {
		return
	}
	if err := m.SetBalance(ctx, balance); err != nil {
		log.Printf("[trader] balance mirror failed: %v", err)
	}
	if err := m.SetPosition(ctx, t.engine.Position()); err != nil {
		log.Printf("[trader] position mirror failed: %v", err)
	}
}

// minRows is the smallest window worth evaluating: the slowest indicator
// period plus the crossover lookback.
func (t *Trader) minRows() int {
	min := t.cfg.Indicators.EMASlow
	if t.cfg.Indicators.MACDSlow > min {
		min = t.cfg.Indicators.MACDSlow
	}
	if t.cfg.Indicators.ATRPeriod > min {
		min = t.cfg.Indicators.ATRPeriod
	}
	return min + 3
}

// shutdown reports the final state. Open positions stay on the exchange
// protected by their resting orders.
func (t *Trader) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Trading loop for %s stopped. No open position.", t.cfg.Symbol)
	if pos := t.engine.Position(); pos != nil {
		msg = fmt.Sprintf("Trading loop for %s stopped with an open %s position (size %.6f, stop %.4f). Resting orders remain active.",
			t.cfg.Symbol, pos.Side, pos.Size, pos.StopLoss)
	}
	log.Printf("[trader] %s", msg)
	notification.Notify(ctx, t.notifier, notification.Alert{
		Level: notification.AlertWarning, Title: "Trading bot stopped", Message: msg,
	})
}
