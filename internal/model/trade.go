package model

import "time"

// TradeKind identifies the transition that produced a trade record.
type TradeKind string

const (
	TradeOpenLong          TradeKind = "open_long"
	TradeOpenShort         TradeKind = "open_short"
	TradePartialCloseLong  TradeKind = "partial_close_long"
	TradePartialCloseShort TradeKind = "partial_close_short"
	TradeCloseLong         TradeKind = "close_long"
	TradeCloseShort        TradeKind = "close_short"
)

// CloseReason explains why a position (or half of one) was closed.
type CloseReason string

const (
	ReasonStopLoss    CloseReason = "stop_loss"
	ReasonTakeProfit1 CloseReason = "take_profit1"
	ReasonTakeProfit2 CloseReason = "take_profit2"
	ReasonSignal      CloseReason = "signal"
	ReasonEndOfData   CloseReason = "end_of_backtest"
)

// TradeRecord is an immutable append-only ledger entry, one per engine
// transition (open, partial close, close).
type TradeRecord struct {
	Kind         TradeKind   `json:"kind"`
	Reason       CloseReason `json:"reason,omitempty"` // empty on opens
	EntryTime    time.Time   `json:"entry_time"`
	ExitTime     time.Time   `json:"exit_time,omitempty"`
	EntryPrice   float64     `json:"entry_price"`
	ExitPrice    float64     `json:"exit_price,omitempty"`
	Size         float64     `json:"size"`
	StopLoss     float64     `json:"stop_loss,omitempty"`
	TakeProfit1  float64     `json:"take_profit1,omitempty"`
	TakeProfit2  float64     `json:"take_profit2,omitempty"`
	Profit       float64     `json:"profit"`
	BalanceAfter float64     `json:"balance_after"`
}

// Side returns the position direction the kind refers to.
func (k TradeKind) Side() Side {
	switch k {
	case TradeOpenShort, TradePartialCloseShort, TradeCloseShort:
		return Short
	}
	return Long
}

// IsClose reports whether the record realizes PnL (full or partial close).
func (t *TradeRecord) IsClose() bool {
	switch t.Kind {
	case TradeOpenLong, TradeOpenShort:
		return false
	}
	return true
}
