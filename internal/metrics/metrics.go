package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	IterationsTotal prometheus.Counter
	IterationErrors prometheus.Counter
	IterationDur    prometheus.Histogram

	OrdersPlaced  *prometheus.CounterVec // labels: type
	OrderFailures *prometheus.CounterVec // labels: type
	TradesOpened  prometheus.Counter
	TradesClosed  *prometheus.CounterVec // labels: reason

	LastSignal   prometheus.Gauge // -1, 0, +1
	Equity       prometheus.Gauge
	OpenPosition prometheus.Gauge // 0=flat, 1=long, -1=short

	WSReconnects prometheus.Counter
	CandleLag    prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		IterationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_iterations_total",
			Help: "Total evaluation iterations of the live loop",
		}),
		IterationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_iteration_errors_total",
			Help: "Iterations aborted by an error",
		}),
		IterationDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebot_iteration_duration_seconds",
			Help:    "Full iteration latency (fetch, compute, execute)",
			Buckets: prometheus.DefBuckets,
		}),

		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_orders_placed_total",
			Help: "Orders accepted by the exchange (by order type)",
		}, []string{"type"}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_order_failures_total",
			Help: "Order legs that failed after retries (by order type)",
		}, []string{"type"}),
		TradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_trades_opened_total",
			Help: "Positions opened",
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebot_trades_closed_total",
			Help: "Position closes, full and partial (by reason)",
		}, []string{"reason"}),

		LastSignal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_last_signal",
			Help: "Composite signal of the latest evaluated candle (-1, 0, 1)",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_equity",
			Help: "Last known account equity in quote currency",
		}),
		OpenPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_open_position",
			Help: "Tracked position direction (0=flat, 1=long, -1=short)",
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebot_ws_reconnects_total",
			Help: "Candle stream reconnection attempts",
		}),
		CandleLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebot_candle_lag_seconds",
			Help: "Age of the newest closed candle at evaluation time",
		}),
	}

	prometheus.MustRegister(
		m.IterationsTotal,
		m.IterationErrors,
		m.IterationDur,
		m.OrdersPlaced,
		m.OrderFailures,
		m.TradesOpened,
		m.TradesClosed,
		m.LastSignal,
		m.Equity,
		m.OpenPosition,
		m.WSReconnects,
		m.CandleLag,
	)

	return m
}

// HealthStatus represents the bot's health.
type HealthStatus struct {
	mu sync.RWMutex

	GatewayOK      bool      `json:"gateway_ok"`
	RedisConnected bool      `json:"redis_connected"`
	LastCandleTime time.Time `json:"last_candle_time"`
	LastIterAt     time.Time `json:"last_iteration_at"`

	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetGatewayOK(v bool) {
	h.mu.Lock()
	h.GatewayOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastIteration(t time.Time) {
	h.mu.Lock()
	h.LastIterAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if rdb != nil {
					probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
					h.CheckRedis(probeCtx, rdb)
					cancel()
				}
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.GatewayOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Second).String()
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		GatewayOK      bool    `json:"gateway_ok"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		LastCandleTime string  `json:"last_candle_time"`
		CandleAge      string  `json:"candle_age"`
		LastIterAt     string  `json:"last_iteration_at"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		GatewayOK:      h.GatewayOK,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastCandleTime: h.LastCandleTime.Format(time.RFC3339),
		CandleAge:      candleAge,
		LastIterAt:     h.LastIterAt.Format(time.RFC3339),
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
