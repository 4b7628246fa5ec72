// Package selector picks the single best replacement option contract for a
// symbol and right from the underlying's chain.
package selector

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/config"
	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/eddiefleurent/schrute_wheel/internal/util"
)

// NoEligibleContractError is returned when the selection pipeline exhausts
// all candidates for a symbol. It never stands in for a placeholder result.
type NoEligibleContractError struct {
	Symbol string
}

func (e *NoEligibleContractError) Error() string {
	return fmt.Sprintf("no eligible contracts found for %s", e.Symbol)
}

// Selector runs the candidate selection pipeline against a gateway.
type Selector struct {
	gateway      gateway.Gateway
	cfg          *config.Config
	logger       *log.Logger
	pollInterval time.Duration
}

// New creates a Selector. The open-interest poll interval comes from the
// schedule config; an unset value falls back to the Wait default.
func New(gw gateway.Gateway, cfg *config.Config, logger *log.Logger) *Selector {
	interval, err := cfg.OpenInterestPollInterval()
	if err != nil {
		interval = 0 // Wait applies its default
	}
	return &Selector{
		gateway:      gw,
		cfg:          cfg,
		logger:       logger,
		pollInterval: interval,
	}
}

// SelectBestContract returns the best replacement contract for the symbol
// and right, with its quote attached. Filter order and the two-pass sort are
// load-bearing: candidates are filtered by delta then open interest, sorted
// by descending |delta|, then stably re-sorted by ascending DTE so that DTE
// dominates and delta magnitude breaks ties within an expiration.
func (s *Selector) SelectBestContract(ctx context.Context, symbol string, right models.Right) (*models.Ticker, error) {
	// Resolve the underlying and its current price.
	stock, err := s.gateway.ResolveInstrument(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("resolving instrument %s: %w", symbol, err)
	}

	underlyingPrice, err := s.underlyingPrice(ctx, stock)
	if err != nil {
		return nil, err
	}

	chain, err := s.smartChain(ctx, stock)
	if err != nil {
		return nil, err
	}

	strikes := otmStrikes(chain.Strikes, underlyingPrice, right)
	expirations, dteByExpiration, err := s.eligibleExpirations(chain.Expirations)
	if err != nil {
		return nil, err
	}
	strikes = s.nearestStrikes(strikes, right)

	if len(strikes) == 0 || len(expirations) == 0 {
		return nil, &NoEligibleContractError{Symbol: symbol}
	}

	candidates := make([]models.Contract, 0, len(expirations)*len(strikes))
	for _, expiration := range expirations {
		for _, strike := range strikes {
			candidates = append(candidates, models.NewOption(symbol, expiration, strike, right, chain.TradingClass))
		}
	}

	qualified, err := s.gateway.QualifyContracts(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("qualifying %d candidates for %s: %w", len(candidates), symbol, err)
	}
	if len(qualified) == 0 {
		return nil, &NoEligibleContractError{Symbol: symbol}
	}

	tickers, err := s.gateway.Quotes(ctx, qualified)
	if err != nil {
		return nil, fmt.Errorf("fetching quotes for %s candidates: %w", symbol, err)
	}

	survivors := s.filterByDelta(tickers)
	s.logger.Printf("%s: %d of %d candidates within delta %.2f", symbol, len(survivors), len(tickers), s.cfg.Target.Delta)

	survivors, err = s.filterByOpenInterest(ctx, survivors, right)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("%s: %d candidates pass open interest >= %d", symbol, len(survivors), s.cfg.Target.MinimumOpenInterest)

	if len(survivors) == 0 {
		return nil, &NoEligibleContractError{Symbol: symbol}
	}

	// Two-pass stable sort. The second pass dominates: soonest acceptable
	// expiration wins, and within one expiration the highest |delta|
	// survives from the first pass.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].AbsDelta() > survivors[j].AbsDelta()
	})
	sort.SliceStable(survivors, func(i, j int) bool {
		return dteByExpiration[survivors[i].Contract.Expiration] < dteByExpiration[survivors[j].Contract.Expiration]
	})

	best := survivors[0]
	s.logger.Printf("%s: selected %s (dte=%d, delta=%.3f)", symbol, best.Contract.LocalSymbol(),
		dteByExpiration[best.Contract.Expiration], best.AbsDelta())
	return &best, nil
}

// underlyingPrice fetches the underlying's current market price.
func (s *Selector) underlyingPrice(ctx context.Context, stock models.Contract) (float64, error) {
	quotes, err := s.gateway.Quotes(ctx, []models.Contract{stock})
	if err != nil {
		return 0, fmt.Errorf("fetching quote for %s: %w", stock.Symbol, err)
	}
	if len(quotes) == 0 || quotes[0].MarketPrice <= 0 || math.IsNaN(quotes[0].MarketPrice) {
		return 0, fmt.Errorf("%w: no market price for %s", gateway.ErrMarketDataUnavailable, stock.Symbol)
	}
	return quotes[0].MarketPrice, nil
}

// smartChain returns the SMART-routed chain entry for the underlying.
// A missing entry is a configuration mismatch, not a transient fault.
func (s *Selector) smartChain(ctx context.Context, stock models.Contract) (*models.Chain, error) {
	chains, err := s.gateway.OptionChainParams(ctx, stock)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain params for %s: %w", stock.Symbol, err)
	}
	for i := range chains {
		if chains[i].Exchange == "SMART" {
			return &chains[i], nil
		}
	}
	return nil, fmt.Errorf("no SMART option chain for %s: check symbol configuration", stock.Symbol)
}

// otmStrikes keeps the out-of-the-money-or-at-the-money side of the chain
// for the right, sorted ascending.
func otmStrikes(strikes []float64, underlyingPrice float64, right models.Right) []float64 {
	kept := make([]float64, 0, len(strikes))
	for _, strike := range strikes {
		if right == models.RightPut && strike <= underlyingPrice {
			kept = append(kept, strike)
		}
		if right == models.RightCall && strike >= underlyingPrice {
			kept = append(kept, strike)
		}
	}
	sort.Float64s(kept)
	return kept
}

// eligibleExpirations keeps expirations at or beyond the target DTE and
// returns the nearest configured count, soonest first, along with the DTE of
// each kept expiration. A malformed expiration in the chain is a data bug
// and fails the selection outright.
func (s *Selector) eligibleExpirations(expirations []string) ([]string, map[string]int, error) {
	type expDTE struct {
		expiration string
		dte        int
	}

	kept := make([]expDTE, 0, len(expirations))
	for _, expiration := range expirations {
		dte, err := util.OptionDTE(expiration)
		if err != nil {
			return nil, nil, fmt.Errorf("option chain for target: %w", err)
		}
		if dte >= s.cfg.Target.DTE {
			kept = append(kept, expDTE{expiration: expiration, dte: dte})
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].dte < kept[j].dte })

	if len(kept) > s.cfg.OptionChains.Expirations {
		kept = kept[:s.cfg.OptionChains.Expirations]
	}

	out := make([]string, 0, len(kept))
	dteByExpiration := make(map[string]int, len(kept))
	for _, e := range kept {
		out = append(out, e.expiration)
		dteByExpiration[e.expiration] = e.dte
	}
	return out, dteByExpiration, nil
}

// nearestStrikes trims the ascending strike list to the configured count
// closest to the money: the top slice for puts (closest from below), the
// bottom slice for calls (closest from above).
func (s *Selector) nearestStrikes(strikes []float64, right models.Right) []float64 {
	count := s.cfg.OptionChains.Strikes
	if len(strikes) <= count {
		return strikes
	}
	if right == models.RightPut {
		return strikes[len(strikes)-count:]
	}
	return strikes[:count]
}

// filterByDelta discards candidates whose model delta is missing or whose
// magnitude exceeds the target.
func (s *Selector) filterByDelta(tickers []models.Ticker) []models.Ticker {
	kept := make([]models.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if t.Delta == nil {
			continue
		}
		if math.Abs(*t.Delta) > s.cfg.Target.Delta {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// filterByOpenInterest checks each surviving candidate against the live
// open-interest feed. The feed starts unset and populates asynchronously, so
// each check blocks on a re-polled wait until both sides arrive; the
// subscription is released immediately after the check either way.
func (s *Selector) filterByOpenInterest(ctx context.Context, tickers []models.Ticker, right models.Right) ([]models.Ticker, error) {
	kept := make([]models.Ticker, 0, len(tickers))
	for _, t := range tickers {
		ok, err := s.openInterestIsValid(ctx, t, right)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

func (s *Selector) openInterestIsValid(ctx context.Context, t models.Ticker, right models.Right) (bool, error) {
	feed, err := s.gateway.LiveOpenInterest(ctx, t.Contract)
	if err != nil {
		return false, fmt.Errorf("open interest subscription for %s: %w", t.Contract.LocalSymbol(), err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			s.logger.Printf("Warning: failed to release open interest feed for %s: %v", t.Contract.LocalSymbol(), err)
		}
	}()

	var latest models.Ticker
	err = Wait(ctx, s.pollInterval, func(waitCtx context.Context) (bool, error) {
		snap, err := feed.Snapshot(waitCtx)
		if err != nil {
			return false, err
		}
		latest = snap
		return snap.OpenInterestPopulated(), nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: open interest for %s: %v", gateway.ErrMarketDataUnavailable, t.Contract.LocalSymbol(), err)
	}

	return latest.OpenInterestFor(right) >= float64(s.cfg.Target.MinimumOpenInterest), nil
}
