package models

// PortfolioSnapshot maps an underlying symbol to its positions for one
// management cycle. A snapshot is treated as an immutable value once
// fetched; any narrowing produces a filtered copy. It becomes stale after
// any order submission and must be re-fetched before allocation decisions.
type PortfolioSnapshot map[string][]Position

// Filter returns a copy of the snapshot containing only the symbols for
// which keep returns true. The receiver is never mutated.
func (s PortfolioSnapshot) Filter(keep func(symbol string) bool) PortfolioSnapshot {
	out := make(PortfolioSnapshot, len(s))
	for symbol, positions := range s {
		if !keep(symbol) {
			continue
		}
		copied := make([]Position, len(positions))
		copy(copied, positions)
		out[symbol] = copied
	}
	return out
}

// Symbols returns the snapshot's symbol keys in no particular order.
func (s PortfolioSnapshot) Symbols() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
