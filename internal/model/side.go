package model

// Side is the direction of a position: Long or Short.
// A tagged value with a derived sign keeps the entry/exit formulas symmetric
// instead of duplicating long/short branch pairs.
type Side int

const (
	Long Side = iota
	Short
)

// Sign returns +1 for Long and -1 for Short. Price levels and PnL are
// computed as entry ± sign*offset so both sides share one formula.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Long {
		return Short
	}
	return Long
}

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}
