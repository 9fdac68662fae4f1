package model

import "time"

// Account tracks the balance and the per-day trade cap state.
type Account struct {
	Balance     float64   `json:"balance"`
	TradesToday int       `json:"trades_today"`
	LastReset   time.Time `json:"last_reset"` // UTC date of the last counter reset
}

// MaybeResetDaily zeroes TradesToday the first time a step is evaluated on a
// new UTC calendar date. Returns true if a reset happened.
func (a *Account) MaybeResetDaily(now time.Time) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.After(a.LastReset) {
		return false
	}
	a.TradesToday = 0
	a.LastReset = day
	return true
}
