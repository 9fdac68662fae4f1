package model

// OrderType is the exchange order type for a leg.
type OrderType string

const (
	OrderMarket     OrderType = "market"
	OrderLimit      OrderType = "limit"
	OrderStop       OrderType = "stop"
	OrderTakeProfit OrderType = "take_profit"
)

// OrderSide is the exchange-facing direction of an order leg. A long entry
// buys; its protective legs sell, and vice versa for shorts.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// EntryOrderSide returns the order side that opens a position.
func EntryOrderSide(s Side) OrderSide {
	if s == Short {
		return OrderSell
	}
	return OrderBuy
}

// ExitOrderSide returns the order side that closes a position.
func ExitOrderSide(s Side) OrderSide {
	if s == Short {
		return OrderBuy
	}
	return OrderSell
}

// OrderRequest is a single outbound order leg.
type OrderRequest struct {
	Side         OrderSide `json:"side"`
	Type         OrderType `json:"type"`
	Size         float64   `json:"size"`
	Price        float64   `json:"price,omitempty"`         // limit price
	TriggerPrice float64   `json:"trigger_price,omitempty"` // stop/take-profit trigger
}

// OrderAck is the exchange's acknowledgement of a placed order.
type OrderAck struct {
	OrderID string `json:"order_id"`
}

// ExchangePosition is a position as reported by the exchange, used by the
// live driver to stay synchronized.
type ExchangePosition struct {
	Side      Side    `json:"side"`
	Size      float64 `json:"size"`
	AvgPrice  float64 `json:"avg_price"`
	MarkPrice float64 `json:"mark_price"`
}
