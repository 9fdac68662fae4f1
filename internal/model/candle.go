package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV candle for a single instrument.
// Prices are quote-currency floats as delivered by the exchange.
type Candle struct {
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Series is a finite candle sequence, ascending by timestamp.
type Series []Candle

// Closes extracts the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Last returns the final candle. Panics on an empty series, same as indexing.
func (s Series) Last() Candle {
	return s[len(s)-1]
}
