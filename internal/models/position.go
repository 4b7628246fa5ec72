package models

import "math"

// PositionKind is the explicit discriminant for a portfolio position.
type PositionKind string

const (
	// KindStock marks a stock position
	KindStock PositionKind = "stock"
	// KindPut marks a put option position
	KindPut PositionKind = "put"
	// KindCall marks a call option position
	KindCall PositionKind = "call"
)

// Position is a read-only snapshot of one portfolio position. The gateway
// owns the live data; the core only ever sees per-cycle copies.
type Position struct {
	Contract    Contract     `json:"contract"`
	Kind        PositionKind `json:"kind"`
	Quantity    float64      `json:"quantity"` // signed, negative = short
	MarketPrice float64      `json:"market_price"`
	MarketValue float64      `json:"market_value"`
	AvgCost     float64      `json:"avg_cost"`
}

// IsOption reports whether the position is an option of either right.
func (p Position) IsOption() bool {
	return p.Kind == KindPut || p.Kind == KindCall
}

// ProfitFraction returns the position's unrealized P&L as a fraction of its
// cost basis, positive = profit. For a short option this is the fraction of
// the credit already captured: (avgCost - marketPrice) / avgCost.
func (p Position) ProfitFraction() float64 {
	if p.AvgCost == 0 {
		return 0
	}
	frac := (p.MarketPrice - p.AvgCost) / math.Abs(p.AvgCost)
	if p.Quantity < 0 {
		return -frac
	}
	return frac
}

// KindForRight maps an option right onto the position discriminant.
func KindForRight(right string) PositionKind {
	switch {
	case RightPut.Matches(right):
		return KindPut
	case RightCall.Matches(right):
		return KindCall
	default:
		return KindStock
	}
}
