// Package strategy implements the wheel: roll evaluation, target
// allocation, and the management cycle that ties them to the selector and
// order builder.
package strategy

import (
	"math"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
)

// OptionPositions returns all option positions across the snapshot whose
// right matches by prefix, so "P" matches "P" and "PUT" alike. The snapshot
// is not modified.
func OptionPositions(snapshot models.PortfolioSnapshot, right models.Right) []models.Position {
	var out []models.Position
	for _, positions := range snapshot {
		for _, p := range positions {
			if p.IsOption() && right.Matches(string(p.Contract.Right)) {
				out = append(out, p)
			}
		}
	}
	return out
}

// FilterToConfiguredSymbols returns a copy of the snapshot narrowed to the
// symbols present in the config. This is the only place the snapshot is
// narrowed before roll and allocation logic runs.
func FilterToConfiguredSymbols(snapshot models.PortfolioSnapshot, cfg *config.Config) models.PortfolioSnapshot {
	return snapshot.Filter(cfg.HasSymbol)
}

// CountOptionPositions returns the total number of open contracts for one
// symbol and right, summing absolute quantities floored toward zero.
func CountOptionPositions(snapshot models.PortfolioSnapshot, symbol string, right models.Right) int {
	total := 0
	for _, p := range snapshot[symbol] {
		if p.IsOption() && right.Matches(string(p.Contract.Right)) {
			total += int(math.Abs(p.Quantity))
		}
	}
	return total
}

// stockQuantity returns the whole-share stock count held for a symbol.
func stockQuantity(snapshot models.PortfolioSnapshot, symbol string) int {
	var total float64
	for _, p := range snapshot[symbol] {
		if p.Kind == models.KindStock {
			total += p.Quantity
		}
	}
	return int(math.Floor(total))
}
