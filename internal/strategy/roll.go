package strategy

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/eddiefleurent/schrute_wheel/internal/util"
)

// RollEvaluator decides whether an existing short option qualifies for a
// roll. The DTE and PnL thresholds are independently sufficient; either one
// alone makes a position eligible.
type RollEvaluator struct {
	gateway gateway.Gateway
	cfg     *config.Config
	logger  *log.Logger
}

// NewRollEvaluator creates a roll evaluator.
func NewRollEvaluator(gw gateway.Gateway, cfg *config.Config, logger *log.Logger) *RollEvaluator {
	return &RollEvaluator{gateway: gw, cfg: cfg, logger: logger}
}

// PutCanBeRolled reports whether the put position qualifies for a roll,
// with a justification naming the threshold that triggered. In-the-money
// puts are never rolled regardless of DTE or PnL.
func (e *RollEvaluator) PutCanBeRolled(ctx context.Context, put models.Position) (bool, string, error) {
	itm, err := e.putIsITM(ctx, put)
	if err != nil {
		return false, "", err
	}
	if itm {
		return false, fmt.Sprintf("%s is in the money, not rolling", put.Contract.LocalSymbol()), nil
	}
	return e.meetsRollThresholds(put)
}

// CallCanBeRolled reports whether the call position qualifies for a roll.
// Calls are evaluated regardless of moneyness.
func (e *RollEvaluator) CallCanBeRolled(call models.Position) (bool, string, error) {
	return e.meetsRollThresholds(call)
}

// putIsITM checks the put against the underlying's current market price.
func (e *RollEvaluator) putIsITM(ctx context.Context, put models.Position) (bool, error) {
	stock, err := e.gateway.ResolveInstrument(ctx, put.Contract.Symbol)
	if err != nil {
		return false, fmt.Errorf("resolving underlying for %s: %w", put.Contract.LocalSymbol(), err)
	}
	quotes, err := e.gateway.Quotes(ctx, []models.Contract{stock})
	if err != nil {
		return false, fmt.Errorf("fetching underlying quote for %s: %w", put.Contract.Symbol, err)
	}
	if len(quotes) == 0 || quotes[0].MarketPrice <= 0 || math.IsNaN(quotes[0].MarketPrice) {
		return false, fmt.Errorf("%w: no market price for %s", gateway.ErrMarketDataUnavailable, put.Contract.Symbol)
	}
	return put.Contract.Strike >= quotes[0].MarketPrice, nil
}

// meetsRollThresholds applies the shared rule: eligible when DTE has decayed
// to the threshold or the profit fraction has been captured. An expiration
// that cannot be parsed is a data bug and fails the evaluation outright.
func (e *RollEvaluator) meetsRollThresholds(pos models.Position) (bool, string, error) {
	dte, err := util.OptionDTE(pos.Contract.Expiration)
	if err != nil {
		return false, "", fmt.Errorf("evaluating %s: %w", pos.Contract.LocalSymbol(), err)
	}
	pnl := pos.ProfitFraction()

	if dte <= e.cfg.RollWhen.DTE {
		return true, fmt.Sprintf("%s can be rolled because DTE of %d is <= %d",
			pos.Contract.LocalSymbol(), dte, e.cfg.RollWhen.DTE), nil
	}
	if pnl >= e.cfg.RollWhen.PnL {
		return true, fmt.Sprintf("%s can be rolled because P&L of %.1f%% is >= %.1f%%",
			pos.Contract.LocalSymbol(), pnl*100, e.cfg.RollWhen.PnL*100), nil
	}

	return false, fmt.Sprintf("%s not eligible (dte=%d, pnl=%.1f%%)",
		pos.Contract.LocalSymbol(), dte, pnl*100), nil
}
