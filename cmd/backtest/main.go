// cmd/backtest replays historical Bitget candles through the crossover
// strategy and the lifecycle engine, prints the performance summary, and
// optionally persists the full trade ledger to SQLite.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSDT --tf=15m --days=30 --balance=1000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaumne/trade-bot-bitget/internal/backtest"
	"github.com/shaumne/trade-bot-bitget/internal/bitget"
	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/risk"
	sqlitestore "github.com/shaumne/trade-bot-bitget/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	symbol := flag.String("symbol", "BTCUSDT", "Instrument symbol")
	tf := flag.String("tf", "15m", "Candle timeframe (granularity)")
	days := flag.Int("days", 30, "Days of history to replay (ignored when --from is set)")
	from := flag.String("from", "", "Replay start, RFC3339 (overrides --days)")
	to := flag.String("to", "", "Replay end, RFC3339 (default: now)")
	balance := flag.Float64("balance", 1000, "Initial balance in quote currency")
	dbPath := flag.String("db", "", "SQLite path to persist the run (empty: don't persist)")

	emaFast := flag.Int("ema-fast", 9, "Fast EMA period")
	emaSlow := flag.Int("ema-slow", 21, "Slow EMA period")
	atrPeriod := flag.Int("atr", 14, "ATR period")
	riskFrac := flag.Float64("risk", 0.5, "Fraction of equity per position")
	maxPerDay := flag.Int("max-per-day", 6, "Daily entry cap")
	flag.Parse()

	until := time.Now().UTC()
	if *to != "" {
		t, err := time.Parse(time.RFC3339, *to)
		if err != nil {
			log.Fatalf("[backtest] bad --to: %v", err)
		}
		until = t
	}
	since := until.AddDate(0, 0, -*days)
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			log.Fatalf("[backtest] bad --from: %v", err)
		}
		since = t
	}
	if !since.Before(until) {
		log.Fatal("[backtest] start must precede end")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Market data is public: no credentials needed.
	client := bitget.NewClient(bitget.Config{Symbol: *symbol, Timeframe: *tf})

	log.Printf("[backtest] fetching %s %s candles %s → %s", *symbol, *tf,
		since.Format(time.RFC3339), until.Format(time.RFC3339))
	series, err := client.FetchCandlesSince(ctx, since, until)
	if err != nil {
		log.Fatalf("[backtest] candle fetch failed: %v", err)
	}
	if len(series) < 2 {
		log.Fatalf("[backtest] only %d candles in window, nothing to replay", len(series))
	}
	log.Printf("[backtest] replaying %d candles", len(series))

	cfg := backtest.Config{
		InitialBalance: *balance,
		Indicators: indicator.Params{
			EMAFast:    *emaFast,
			EMASlow:    *emaSlow,
			MACDFast:   12,
			MACDSlow:   26,
			MACDSignal: 9,
			ATRPeriod:  *atrPeriod,
		},
		Risk: risk.Params{
			RiskFraction: *riskFrac,
			StopMult:     2,
			TP1Mult:      3,
			TP2Mult:      5,
		},
		MaxTradesPerDay: *maxPerDay,
	}

	res := backtest.Run(series, cfg)
	printSummary(*symbol, *tf, res.Summary)

	if *dbPath != "" {
		ledger, err := sqlitestore.Open(*dbPath)
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer ledger.Close()
		runID, err := ledger.SaveRun(ctx, *symbol, *tf, res)
		if err != nil {
			log.Fatalf("[backtest] persist failed: %v", err)
		}
		log.Printf("[backtest] ledger saved as run %d in %s", runID, *dbPath)
	}
}

func printSummary(symbol, tf string, s backtest.Summary) {
	pf := fmt.Sprintf("%.2f", s.ProfitFactor)
	if math.IsInf(s.ProfitFactor, 1) {
		pf = "inf"
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║         BACKTEST COMPLETE            ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Instrument:      %-9s %-8s ║\n", symbol, tf)
	fmt.Printf("║  Initial balance: %-18.2f ║\n", s.InitialBalance)
	fmt.Printf("║  Final balance:   %-18.2f ║\n", s.FinalBalance)
	fmt.Printf("║  Net profit:      %-18.2f ║\n", s.NetProfit)
	fmt.Printf("║  Return:          %-17.2f%% ║\n", s.PercentReturn)
	fmt.Printf("║  Trades:          %-18d ║\n", s.TotalTrades)
	fmt.Printf("║  Wins / losses:   %-8.1f/ %-8.1f ║\n", s.WinningTrades, s.LosingTrades)
	fmt.Printf("║  Win rate:        %-17.2f%% ║\n", s.WinRate*100)
	fmt.Printf("║  Profit factor:   %-18s ║\n", pf)
	fmt.Println("╚══════════════════════════════════════╝")
}
