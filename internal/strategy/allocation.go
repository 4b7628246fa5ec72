package strategy

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/shopspring/decimal"
)

// sharesPerContract is the option contract multiplier; the strategy reasons
// in contract-equivalents of 100 shares.
const sharesPerContract = 100

// AllocationCalculator computes how many additional puts each configured
// symbol needs to reach its target weight.
type AllocationCalculator struct {
	gateway gateway.Gateway
	cfg     *config.Config
	logger  *log.Logger
}

// NewAllocationCalculator creates an allocation calculator.
func NewAllocationCalculator(gw gateway.Gateway, cfg *config.Config, logger *log.Logger) *AllocationCalculator {
	return &AllocationCalculator{gateway: gw, cfg: cfg, logger: logger}
}

// AdditionalPutsNeeded returns, per configured symbol, the number of new
// puts to write. Share and contract counts are floored toward zero so the
// strategy never over-allocates; weights are used as given without
// normalization. A symbol whose market price cannot be fetched lands in the
// failed map instead of defaulting to zero; other symbols are unaffected.
func (a *AllocationCalculator) AdditionalPutsNeeded(
	ctx context.Context,
	account *models.AccountSummary,
	snapshot models.PortfolioSnapshot,
) (needs map[string]int, failed map[string]error) {
	remaining := account.RemainingBuyingPower(a.cfg.Account.MinimumCushion)

	totalValue := remaining
	stockHeld := make(map[string]decimal.Decimal)
	for symbol, positions := range snapshot {
		for _, p := range positions {
			if p.Kind != models.KindStock {
				continue
			}
			totalValue = totalValue.Add(decimal.NewFromFloat(p.MarketValue).Mul(decimal.NewFromFloat(p.Quantity)))
			stockHeld[symbol] = stockHeld[symbol].Add(decimal.NewFromFloat(p.Quantity))
		}
	}
	a.logger.Printf("Remaining buying power %s, total value %s", remaining.StringFixed(0), totalValue.StringFixed(0))

	needs = make(map[string]int, len(a.cfg.Symbols))
	failed = make(map[string]error)

	for symbol, sc := range a.cfg.Symbols {
		price, err := a.marketPrice(ctx, symbol)
		if err != nil {
			failed[symbol] = err
			continue
		}

		target := decimal.NewFromFloat(sc.Weight).Mul(totalValue)
		targetShares := target.Div(decimal.NewFromFloat(price)).Floor()
		additionalShares := targetShares.Sub(stockHeld[symbol])

		// Integer division truncates toward zero; a symbol already at or
		// over target yields no new puts.
		targetPuts := int(additionalShares.IntPart()) / sharesPerContract
		currentPuts := CountOptionPositions(snapshot, symbol, models.RightPut)

		if currentPuts < targetPuts {
			needs[symbol] = targetPuts - currentPuts
		}
	}

	return needs, failed
}

func (a *AllocationCalculator) marketPrice(ctx context.Context, symbol string) (float64, error) {
	stock, err := a.gateway.ResolveInstrument(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", symbol, err)
	}
	quotes, err := a.gateway.Quotes(ctx, []models.Contract{stock})
	if err != nil {
		return 0, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if len(quotes) == 0 || quotes[0].MarketPrice <= 0 || math.IsNaN(quotes[0].MarketPrice) {
		return 0, fmt.Errorf("%w: no market price for %s", gateway.ErrMarketDataUnavailable, symbol)
	}
	return quotes[0].MarketPrice, nil
}
