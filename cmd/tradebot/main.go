// cmd/tradebot runs the live trading loop against Bitget USDT futures:
// poll candles (or stream them over WebSocket), evaluate the crossover
// strategy, and mirror engine transitions onto the exchange.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaumne/trade-bot-bitget/config"
	"github.com/shaumne/trade-bot-bitget/internal/bitget"
	"github.com/shaumne/trade-bot-bitget/internal/engine"
	"github.com/shaumne/trade-bot-bitget/internal/indicator"
	"github.com/shaumne/trade-bot-bitget/internal/logger"
	"github.com/shaumne/trade-bot-bitget/internal/metrics"
	"github.com/shaumne/trade-bot-bitget/internal/model"
	"github.com/shaumne/trade-bot-bitget/internal/notification"
	"github.com/shaumne/trade-bot-bitget/internal/risk"
	redisstore "github.com/shaumne/trade-bot-bitget/internal/store/redis"
	"github.com/shaumne/trade-bot-bitget/internal/trader"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("tradebot", slog.LevelInfo)
	log.Println("[tradebot] starting...")

	cfg := config.Load()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[tradebot] shutdown signal received")
		cancel()
	}()

	// ---- Exchange gateway ----
	gateway := bitget.NewClient(bitget.Config{
		APIKey:     cfg.BitgetAPIKey,
		APISecret:  cfg.BitgetAPISecret,
		Passphrase: cfg.BitgetPassphrase,
		Symbol:     cfg.Symbol,
		Timeframe:  cfg.Timeframe,
	})

	balance, err := gateway.FetchBalance(ctx)
	if err != nil {
		log.Fatalf("[tradebot] cannot reach exchange: %v", err)
	}
	health.SetGatewayOK(true)
	log.Printf("[tradebot] connected, balance %.4f USDT", balance)

	// ---- Trade journal (optional) ----
	var journal model.TradeJournal
	j, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "tradebot", cfg.Symbol)
	if err != nil {
		log.Printf("[tradebot] WARNING: redis unavailable: %v (continuing without journal)", err)
	} else {
		journal = j
		defer j.Close()
		health.StartLivenessChecker(ctx, j.Client(), 10*time.Second)
	}

	// ---- Notifications ----
	var notifier notification.Notifier = notification.NewLogNotifier()
	switch {
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID != "":
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		log.Println("[tradebot] telegram notifications enabled")
	case cfg.WebhookURL != "":
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
		log.Println("[tradebot] webhook notifications enabled")
	}

	// ---- Engine & driver ----
	indParams := indicator.Params{
		EMAFast:    cfg.EMAFast,
		EMASlow:    cfg.EMASlow,
		MACDFast:   cfg.MACDFast,
		MACDSlow:   cfg.MACDSlow,
		MACDSignal: cfg.MACDSignal,
		ATRPeriod:  cfg.ATRPeriod,
	}
	eng := engine.New(engine.Config{
		Mode: engine.Live,
		Risk: risk.Params{
			RiskFraction: cfg.RiskPerTrade,
			StopMult:     cfg.StopMult,
			TP1Mult:      cfg.TP1Mult,
			TP2Mult:      cfg.TP2Mult,
		},
		MaxTradesPerDay: cfg.MaxTradesPerDay,
	}, balance)

	bot := trader.New(trader.Config{
		Symbol:       cfg.Symbol,
		Leverage:     cfg.Leverage,
		Indicators:   indParams,
		MaxPositions: cfg.MaxPositions,
		PollInterval: cfg.PollInterval,
	}, gateway, eng, journal, notifier, prom, health)

	notification.Notify(ctx, notifier, notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Trading bot started",
		Message: "Instrument: " + cfg.Symbol + " " + cfg.Timeframe,
	})

	// ---- Run ----
	if cfg.CandleSource == "ws" {
		stream := bitget.NewCandleStream(cfg.Symbol, cfg.Timeframe)
		stream.OnReconnect = prom.WSReconnects.Inc
		candleCh := make(chan model.Candle, 64)
		go func() {
			if err := stream.Run(ctx, candleCh); err != nil && ctx.Err() == nil {
				log.Printf("[tradebot] candle stream stopped: %v", err)
			}
		}()
		bot.RunStream(ctx, candleCh)
	} else {
		bot.Run(ctx)
	}

	// ---- Cleanup ----
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[tradebot] shutdown complete.")
}
