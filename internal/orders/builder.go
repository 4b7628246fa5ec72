// Package orders constructs and submits the orders the wheel produces:
// single-leg writes and two-leg roll combos.
package orders

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/eddiefleurent/schrute_wheel/internal/util"
	"github.com/google/uuid"
)

// SubmissionError wraps a gateway rejection or routing failure. The builder
// never retries; whether the order posted must be confirmed before any
// resubmission.
type SubmissionError struct {
	Symbol string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("order submission failed for %s: %v", e.Symbol, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Builder builds and submits orders through the gateway.
type Builder struct {
	gateway gateway.Gateway
	logger  *log.Logger
}

// NewBuilder creates an order builder.
func NewBuilder(gw gateway.Gateway, logger *log.Logger) *Builder {
	return &Builder{gateway: gw, logger: logger}
}

// WriteContract submits a limit sell for the chosen contract at its current
// market price rounded to cents, with a patient adaptive execution
// preference, valid for the day.
func (b *Builder) WriteContract(ctx context.Context, ticker *models.Ticker, quantity int) (*gateway.Trade, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("write quantity must be positive, got %d", quantity)
	}

	spec := gateway.OrderSpec{
		Action:       gateway.ActionSell,
		Quantity:     quantity,
		LimitPrice:   util.RoundToCents(ticker.MarketPrice),
		TIF:          "DAY",
		AlgoStrategy: "Adaptive",
		AlgoPriority: "Patient",
		Tag:          orderTag("write", ticker.Contract.Symbol),
	}

	trade, err := b.gateway.SubmitOrder(ctx, ticker.Contract, spec)
	if err != nil {
		return nil, &SubmissionError{Symbol: ticker.Contract.Symbol, Err: err}
	}

	b.logger.Printf("Order submitted: sell %d %s @ %.2f (order %s, status %s)",
		quantity, ticker.Contract.LocalSymbol(), spec.LimitPrice, trade.OrderID, trade.Status)
	return trade, nil
}

// RollPosition closes the held contract and opens the replacement as one
// atomic combo: buy-to-close the existing leg, sell-to-open the new one, at
// a net price of buy leg market price minus sell leg market price rounded
// to cents. Quantity is the absolute size of the position being rolled.
func (b *Builder) RollPosition(ctx context.Context, position models.Position, replacement *models.Ticker) (*gateway.Trade, error) {
	symbol := position.Contract.Symbol

	quotes, err := b.gateway.Quotes(ctx, []models.Contract{position.Contract})
	if err != nil {
		return nil, fmt.Errorf("pricing buy leg for %s: %w", position.Contract.LocalSymbol(), err)
	}
	if len(quotes) == 0 || math.IsNaN(quotes[0].MarketPrice) {
		return nil, fmt.Errorf("%w: no market price for %s", gateway.ErrMarketDataUnavailable, position.Contract.LocalSymbol())
	}
	buyPrice := quotes[0].MarketPrice

	legs := []gateway.ComboLeg{
		{ConID: position.Contract.ConID, Ratio: 1, Action: gateway.ActionBuy, Exchange: "SMART"},
		{ConID: replacement.Contract.ConID, Ratio: 1, Action: gateway.ActionSell, Exchange: "SMART"},
	}
	spec := gateway.OrderSpec{
		Action:       gateway.ActionBuy,
		Quantity:     int(math.Abs(position.Quantity)),
		LimitPrice:   util.RoundToCents(buyPrice - replacement.MarketPrice),
		TIF:          "DAY",
		AlgoStrategy: "Adaptive",
		AlgoPriority: "Patient",
		Tag:          orderTag("roll", symbol),
	}

	trade, err := b.gateway.SubmitComboOrder(ctx, symbol, legs, spec)
	if err != nil {
		return nil, &SubmissionError{Symbol: symbol, Err: err}
	}

	b.logger.Printf("Roll submitted: %s -> %s x%d net %.2f (order %s, status %s)",
		position.Contract.LocalSymbol(), replacement.Contract.LocalSymbol(),
		spec.Quantity, spec.LimitPrice, trade.OrderID, trade.Status)
	return trade, nil
}

// orderTag builds a short client order tag so resubmitted cycles never
// collide.
func orderTag(kind, symbol string) string {
	return fmt.Sprintf("%s-%s-%s", kind, symbol, uuid.New().String()[:8])
}
