// Package mock provides an in-memory simulated gateway for paper trading
// and tests. Prices random-walk, chains are synthesized around the current
// price, and orders are recorded instead of routed.
package mock

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/eddiefleurent/schrute_wheel/internal/gateway"
	"github.com/eddiefleurent/schrute_wheel/internal/models"
	"github.com/shopspring/decimal"
)

// secureFloat64 generates a cryptographically secure random float64 between 0 and 1
func secureFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// Fallback to a reasonable default if crypto/rand fails
		return 0.5
	}
	return float64(n.Int64()) / (1 << 53)
}

// secureInt63n generates a cryptographically secure random int64 between 0 and n-1
func secureInt63n(n int64) int64 {
	r, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return n / 2
	}
	return r.Int64()
}

// SimGateway implements gateway.Gateway against simulated market data.
type SimGateway struct {
	mu        sync.Mutex
	prices    map[string]float64
	conIDs    map[string]int64
	nextConID int64
	positions models.PortfolioSnapshot
	account   models.AccountSummary
	trades    []gateway.Trade
	midIV     float64

	// oiPollsUntilPopulated is how many feed snapshots return unset open
	// interest before values arrive, mimicking a slow live subscription.
	oiPollsUntilPopulated int
}

// NewSimGateway creates a simulated gateway with a plausible paper account.
func NewSimGateway() *SimGateway {
	return &SimGateway{
		prices:    make(map[string]float64),
		conIDs:    make(map[string]int64),
		nextConID: 1000,
		positions: models.PortfolioSnapshot{},
		account: models.AccountSummary{
			BuyingPower:     decimal.NewFromInt(200000),
			ExcessLiquidity: decimal.NewFromInt(150000),
			NetLiquidation:  decimal.NewFromInt(100000),
		},
		midIV: 12.0 + secureFloat64()*18,
	}
}

// SetOpenInterestDelay makes each new feed return unset open interest for
// the first polls snapshots.
func (s *SimGateway) SetOpenInterestDelay(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oiPollsUntilPopulated = polls
}

// SetAccount overrides the simulated account summary.
func (s *SimGateway) SetAccount(account models.AccountSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
}

// SetPositions overrides the simulated portfolio.
func (s *SimGateway) SetPositions(snapshot models.PortfolioSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = snapshot
}

// SubmittedTrades returns every order routed through the simulator.
func (s *SimGateway) SubmittedTrades() []gateway.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// PortfolioPositions returns a copy of the simulated portfolio.
func (s *SimGateway) PortfolioPositions(_ context.Context) (models.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions.Filter(func(string) bool { return true }), nil
}

// AccountSummary returns the simulated account figures.
func (s *SimGateway) AccountSummary(_ context.Context) (*models.AccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.account
	return &account, nil
}

// ResolveInstrument returns a qualified stock contract, seeding a price for
// symbols not seen before.
func (s *SimGateway) ResolveInstrument(_ context.Context, symbol string) (models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedPrice(symbol)
	stock := models.NewStock(symbol)
	stock.ConID = s.conIDFor(stock.LocalSymbol())
	return stock, nil
}

// QualifyContracts assigns stable conids to every contract.
func (s *SimGateway) QualifyContracts(_ context.Context, contracts []models.Contract) ([]models.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qualified := make([]models.Contract, len(contracts))
	for i, c := range contracts {
		c.ConID = s.conIDFor(c.LocalSymbol())
		qualified[i] = c
	}
	return qualified, nil
}

// Quotes prices each contract: stocks from the random walk, options from the
// decay model with a delta attached.
func (s *SimGateway) Quotes(_ context.Context, contracts []models.Contract) ([]models.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickers := make([]models.Ticker, len(contracts))
	for i, c := range contracts {
		if c.SecType == models.SecTypeOption {
			price, delta := s.priceOption(c)
			d := delta
			tickers[i] = models.Ticker{
				Contract:    c,
				MarketPrice: price,
				Delta:       &d,
			}
			continue
		}
		tickers[i] = models.Ticker{Contract: c, MarketPrice: s.underlyingPrice(c.Symbol)}
	}
	return tickers, nil
}

// OptionChainParams synthesizes a single SMART chain: five-dollar strikes
// within fifty dollars of the money and eight weekly expirations.
func (s *SimGateway) OptionChainParams(_ context.Context, underlying models.Contract) ([]models.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.underlyingPrice(underlying.Symbol)
	strikeInterval := 5.0
	startStrike := math.Floor(price/strikeInterval)*strikeInterval - 50
	var strikes []float64
	for strike := startStrike; strike <= startStrike+100; strike += strikeInterval {
		if strike > 0 {
			strikes = append(strikes, strike)
		}
	}

	var expirations []string
	for week := 1; week <= 8; week++ {
		expirations = append(expirations, time.Now().AddDate(0, 0, 7*week).Format("20060102"))
	}

	return []models.Chain{{
		Exchange:     "SMART",
		TradingClass: underlying.Symbol,
		Strikes:      strikes,
		Expirations:  expirations,
	}}, nil
}

// LiveOpenInterest returns a feed whose open interest stays unset for the
// first polls, then settles on a random value.
func (s *SimGateway) LiveOpenInterest(_ context.Context, contract models.Contract) (gateway.OpenInterestFeed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &simFeed{
		gateway:        s,
		contract:       contract,
		remainingEmpty: s.oiPollsUntilPopulated,
		openInterest:   float64(secureInt63n(50000)),
	}, nil
}

// SubmitOrder records the order and reports it submitted.
func (s *SimGateway) SubmitOrder(_ context.Context, contract models.Contract, spec gateway.OrderSpec) (*gateway.Trade, error) {
	return s.recordTrade(contract.Symbol, spec)
}

// SubmitComboOrder records the combo and reports it submitted.
func (s *SimGateway) SubmitComboOrder(_ context.Context, symbol string, _ []gateway.ComboLeg, spec gateway.OrderSpec) (*gateway.Trade, error) {
	return s.recordTrade(symbol, spec)
}

func (s *SimGateway) recordTrade(symbol string, spec gateway.OrderSpec) (*gateway.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trade := gateway.Trade{
		OrderID:     fmt.Sprintf("SIM-%d", len(s.trades)+1),
		Status:      "Submitted",
		Symbol:      symbol,
		LimitPrice:  spec.LimitPrice,
		Quantity:    spec.Quantity,
		SubmittedAt: time.Now().Format(time.RFC3339),
	}
	s.trades = append(s.trades, trade)
	return &trade, nil
}

// seedPrice initializes a symbol's price on first sight. Callers must hold
// the lock.
func (s *SimGateway) seedPrice(symbol string) {
	if _, ok := s.prices[symbol]; !ok {
		s.prices[symbol] = 50.0 + secureFloat64()*400
	}
}

// underlyingPrice advances the random walk and returns the new price.
// Callers must hold the lock.
func (s *SimGateway) underlyingPrice(symbol string) float64 {
	s.seedPrice(symbol)
	s.prices[symbol] += (secureFloat64() - 0.5) * 2
	return s.prices[symbol]
}

// priceOption approximates an option's price and delta from its distance to
// the money. Callers must hold the lock.
func (s *SimGateway) priceOption(c models.Contract) (price, delta float64) {
	s.seedPrice(c.Symbol)
	spot := s.prices[c.Symbol]

	distance := math.Abs(c.Strike - spot)
	deltaDecay := math.Exp(-distance * 0.02)

	if c.Right == models.RightPut {
		delta = -0.5 * deltaDecay
		if c.Strike > spot {
			delta = -0.5 * (1 - deltaDecay)
		}
	} else {
		delta = 0.5 * deltaDecay
		if c.Strike < spot {
			delta = 0.5 * (1 - deltaDecay)
		}
	}

	dte := 0.0
	if exp, err := time.Parse("20060102", c.Expiration); err == nil {
		dte = math.Max(0, time.Until(exp).Hours()/24)
	}
	timeValue := dte / 365.0
	vol := s.midIV / 100.0
	price = math.Max(0.5, vol*math.Sqrt(timeValue)*spot*0.01*math.Abs(delta))
	return price, delta
}

func (s *SimGateway) conIDFor(localSymbol string) int64 {
	if id, ok := s.conIDs[localSymbol]; ok {
		return id
	}
	s.nextConID++
	s.conIDs[localSymbol] = s.nextConID
	return s.nextConID
}

// simFeed is a simulated open-interest subscription.
type simFeed struct {
	gateway        *SimGateway
	contract       models.Contract
	mu             sync.Mutex
	remainingEmpty int
	openInterest   float64
	closed         bool
}

func (f *simFeed) Snapshot(_ context.Context) (models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return models.Ticker{}, fmt.Errorf("feed for %s is closed", f.contract.LocalSymbol())
	}

	ticker := models.Ticker{
		Contract:         f.contract,
		PutOpenInterest:  math.NaN(),
		CallOpenInterest: math.NaN(),
	}
	if f.remainingEmpty > 0 {
		f.remainingEmpty--
		return ticker, nil
	}
	ticker.PutOpenInterest = f.openInterest
	ticker.CallOpenInterest = f.openInterest
	return ticker, nil
}

func (f *simFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
