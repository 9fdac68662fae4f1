// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events. Delivery is best effort: the
// trading loop never blocks on or fails because of a notification.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shaumne/trade-bot-bitget/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development
// and as the fallback when no channel is configured).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// TradeAlert formats an engine trade record into a human-readable alert.
func TradeAlert(symbol string, rec model.TradeRecord) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s\n", symbol)
	fmt.Fprintf(&b, "Size: %.6f\n", rec.Size)
	fmt.Fprintf(&b, "Entry: %.4f\n", rec.EntryPrice)

	title := fmt.Sprintf("%s %s", strings.ToUpper(string(rec.Kind)), symbol)
	if rec.IsClose() {
		fmt.Fprintf(&b, "Exit: %.4f (%s)\n", rec.ExitPrice, rec.Reason)
		fmt.Fprintf(&b, "PnL: %.4f\n", rec.Profit)
		fmt.Fprintf(&b, "Balance: %.4f", rec.BalanceAfter)
	} else {
		fmt.Fprintf(&b, "Stop: %.4f\n", rec.StopLoss)
		fmt.Fprintf(&b, "TP1: %.4f, TP2: %.4f", rec.TakeProfit1, rec.TakeProfit2)
	}
	return Alert{Level: AlertInfo, Title: title, Message: b.String()}
}

// ErrorAlert wraps an error message for delivery.
func ErrorAlert(msg string) Alert {
	return Alert{Level: AlertCritical, Title: "Trading bot error", Message: msg}
}

// Notify sends best-effort: failures are logged and swallowed so callers
// never branch on the result.
func Notify(ctx context.Context, n Notifier, alert Alert) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, alert); err != nil {
		log.Printf("[notify] send failed: %v", err)
	}
}
